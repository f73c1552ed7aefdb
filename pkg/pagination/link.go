package pagination

import (
	"net/http"
	"net/url"
	"strings"
)

// PageTokenParam is the query parameter carrying the pagination cursor.
const PageTokenParam = "page_token"

// ParseLinkHeader parses an RFC 8288 style Link header value into rel -> URL.
// Entries without a rel parameter are skipped. A rel listing several
// space-separated names registers the URL under each of them.
func ParseLinkHeader(header string) map[string]string {
	links := make(map[string]string)
	for _, part := range splitLinks(header) {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "<") {
			continue
		}
		// The target is everything up to the closing '>', so ';' inside the URL is kept.
		end := strings.IndexByte(part, '>')
		if end < 0 {
			continue
		}
		target := strings.TrimSpace(part[1:end])
		if target == "" {
			continue
		}
		for _, param := range strings.Split(part[end+1:], ";") {
			p := strings.SplitN(strings.TrimSpace(param), "=", 2)
			if len(p) != 2 || !strings.EqualFold(strings.TrimSpace(p[0]), "rel") {
				continue
			}
			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(p[1]), `"`)) {
				rel = strings.ToLower(rel)
				if _, exists := links[rel]; !exists {
					links[rel] = target
				}
			}
		}
	}
	return links
}

// splitLinks splits on commas outside of <...>, so URLs containing commas survive.
func splitLinks(header string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range header {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, header[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, header[start:])
}

// NextLink returns the rel="next" URL. The header name is matched
// case-insensitively, including non-canonical keys such as "link".
func NextLink(h http.Header) (string, bool) {
	for _, value := range linkValues(h) {
		if next, ok := ParseLinkHeader(value)["next"]; ok {
			return next, true
		}
	}
	return "", false
}

func linkValues(h http.Header) []string {
	if v := h.Values("Link"); len(v) > 0 {
		return v
	}
	for key, v := range h {
		if strings.EqualFold(key, "Link") {
			return v
		}
	}
	return nil
}

// PageToken extracts page_token from a next-page URL.
func PageToken(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	token := u.Query().Get(PageTokenParam)
	return token, token != ""
}
