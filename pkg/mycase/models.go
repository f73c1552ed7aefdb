package mycase

import (
	"encoding/json"
	"time"
)

// FirmInfo is the authenticated firm.
type FirmInfo struct {
	ID   int64  `json:"id"`
	UUID string `json:"uuid,omitempty"`
	Name string `json:"name"`
}

// StaffMember is a firm user (attorney, paralegal, ...).
type StaffMember struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Title     string `json:"title,omitempty"`
	Type      string `json:"type,omitempty"`
	Active    bool   `json:"active"`
}

// Case is the subset of case fields the client relies on.
// Raw keeps the full record.
type Case struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	CaseNumber string     `json:"case_number,omitempty"`
	Status     string     `json:"status,omitempty"`
	OpenedDate string     `json:"opened_date,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw record.
func (c *Case) UnmarshalJSON(data []byte) error {
	type plain Case
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Case(p)
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}
