package client

import (
	"net/http"
	"net/url"
	"strings"
)

// Params is an insertion-ordered set of query parameters.
// The zero value is ready to use. The read methods, Del and Clone accept a
// nil *Params; Set needs a non-nil receiver.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams builds Params from alternating key, value pairs.
func NewParams(kv ...string) *Params {
	p := &Params{}
	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}
	return p
}

// Set adds or replaces key. Replacing keeps the original position.
// p must not be nil.
func (p *Params) Set(key, value string) *Params {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// Get returns the value for key.
func (p *Params) Get(key string) (string, bool) {
	if p == nil || p.values == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Del removes key.
func (p *Params) Del(key string) {
	if p == nil || p.values == nil {
		return
	}
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the parameter names in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Clone returns an independent copy. Cloning nil yields empty Params.
func (p *Params) Clone() *Params {
	c := &Params{}
	if p == nil {
		return c
	}
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Values converts to url.Values.
func (p *Params) Values() url.Values {
	v := url.Values{}
	if p == nil {
		return v
	}
	for _, k := range p.keys {
		v.Set(k, p.values[k])
	}
	return v
}

// Encode renders the parameters as a query string in insertion order.
func (p *Params) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[k]))
	}
	return b.String()
}

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string // relative to the client's base URL, e.g. "/cases"
	Params *Params

	// Body is JSON-encoded when non-nil. []byte and json.RawMessage are sent as-is.
	Body any

	// Header holds extra headers; auth and content negotiation headers are set by the client.
	Header http.Header
}

// Endpoint returns "METHOD /path" for logs and errors.
func (r *Request) Endpoint() string {
	return r.Method + " " + r.Path
}
