// Package mycase maps MyCase resources onto the request layer: paths, list
// filters and the read/write operations each resource supports.
package mycase

import (
	"fmt"
	"sort"
	"strings"
)

// Resource is a top-level MyCase API collection.
type Resource string

const (
	Firm        Resource = "firm"
	Staff       Resource = "staff"
	Cases       Resource = "cases"
	CaseStages  Resource = "case_stages"
	Contacts    Resource = "contacts"
	Clients     Resource = "clients"
	Leads       Resource = "leads"
	Invoices    Resource = "invoices"
	Payments    Resource = "payments"
	Events      Resource = "events"
	Tasks       Resource = "tasks"
	TimeEntries Resource = "time_entries"
	Documents   Resource = "documents"
)

type capability uint8

const (
	canList capability = 1 << iota
	canGet
	canCreate
	canUpdate
)

var capabilities = map[Resource]capability{
	Firm:        canGet,
	Staff:       canList,
	Cases:       canList | canGet,
	CaseStages:  canList,
	Contacts:    canList | canGet | canCreate | canUpdate,
	Clients:     canList | canGet,
	Leads:       canList | canGet,
	Invoices:    canList | canGet,
	Payments:    canList,
	Events:      canList | canGet | canCreate,
	Tasks:       canList | canGet | canCreate | canUpdate,
	TimeEntries: canList,
	Documents:   canGet,
}

// ParseResource accepts a resource name; dashes are read as underscores.
func ParseResource(name string) (Resource, error) {
	r := Resource(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	if _, ok := capabilities[r]; !ok {
		return "", fmt.Errorf("unknown resource %q", name)
	}
	return r, nil
}

// Resources returns all known resources sorted by name.
func Resources() []Resource {
	out := make([]Resource, 0, len(capabilities))
	for r := range capabilities {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Path returns the collection path, e.g. "/cases".
func (r Resource) Path() string {
	return "/" + string(r)
}

// ItemPath returns the path of one record, e.g. "/cases/42".
func (r Resource) ItemPath(id int64) string {
	return fmt.Sprintf("/%s/%d", r, id)
}

// Listable reports whether the resource is a paginated collection.
func (r Resource) Listable() bool { return capabilities[r]&canList != 0 }

// Gettable reports whether single records can be fetched by ID.
func (r Resource) Gettable() bool { return capabilities[r]&canGet != 0 }

// Creatable reports whether records can be created with POST.
func (r Resource) Creatable() bool { return capabilities[r]&canCreate != 0 }

// Updatable reports whether records can be updated with PATCH.
func (r Resource) Updatable() bool { return capabilities[r]&canUpdate != 0 }
