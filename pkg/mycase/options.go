package mycase

import (
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/Sternrassler/mycase-client/pkg/client"
)

// ListOptions filters a collection. Zero values are not sent.
// Which filters a resource honours is up to the API.
type ListOptions struct {
	Status       string
	Type         string // contacts: client, lead, ...
	Archived     *bool
	UpdatedSince time.Time
	StartDate    time.Time
	EndDate      time.Time
	CaseID       int64
	ContactID    int64
	InvoiceID    int64
	AssigneeID   int64
	UserID       int64

	// Extra carries filters not modelled above, appended in key order.
	Extra map[string]string
}

// Params renders the options as query parameters in a stable order.
func (o ListOptions) Params() *client.Params {
	p := &client.Params{}

	setString(p, "status", o.Status)
	setString(p, "type", o.Type)
	if o.Archived != nil {
		p.Set("archived", strconv.FormatBool(*o.Archived))
	}
	setTime(p, "updated_since", o.UpdatedSince)
	setTime(p, "start_date", o.StartDate)
	setTime(p, "end_date", o.EndDate)
	setID(p, "case_id", o.CaseID)
	setID(p, "contact_id", o.ContactID)
	setID(p, "invoice_id", o.InvoiceID)
	setID(p, "assignee_id", o.AssigneeID)
	setID(p, "user_id", o.UserID)

	for _, k := range slices.Sorted(maps.Keys(o.Extra)) {
		p.Set(k, o.Extra[k])
	}
	return p
}

func setString(p *client.Params, key, v string) {
	if v != "" {
		p.Set(key, v)
	}
}

func setTime(p *client.Params, key string, t time.Time) {
	if !t.IsZero() {
		p.Set(key, t.Format(time.RFC3339))
	}
}

func setID(p *client.Params, key string, id int64) {
	if id > 0 {
		p.Set(key, strconv.FormatInt(id, 10))
	}
}
