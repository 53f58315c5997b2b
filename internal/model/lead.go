package model

import (
	"strings"
	"time"
)

// FieldName identifies a lead attribute a provider may require.
type FieldName string

const (
	FieldFirstName      FieldName = "firstName"
	FieldLastName       FieldName = "lastName"
	FieldEmail          FieldName = "email"
	FieldJobTitle       FieldName = "jobTitle"
	FieldCompanyWebsite FieldName = "companyWebsite"
)

// Lead is the durable lead record as stored by the lead repository.
type Lead struct {
	ID             int64     `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Phone          *string   `json:"phone,omitempty"`
	JobTitle       *string   `json:"jobTitle,omitempty"`
	CountryCode    *string   `json:"countryCode,omitempty"`
	CompanyName    *string   `json:"companyName,omitempty"`
	CompanyWebsite *string   `json:"companyWebsite,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FullName joins first and last name, trimmed.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Ref snapshots the lead into the immutable form handed to the waterfall.
func (l Lead) Ref() LeadRef {
	return LeadRef{
		ID:             l.ID,
		FirstName:      strings.TrimSpace(l.FirstName),
		LastName:       strings.TrimSpace(l.LastName),
		Email:          strings.TrimSpace(l.Email),
		JobTitle:       deref(l.JobTitle),
		CompanyWebsite: deref(l.CompanyWebsite),
		ExistingPhone:  deref(l.Phone),
	}
}

// LeadRef is a read-only snapshot of the lead attributes providers consume.
// Empty strings mean the attribute is absent.
type LeadRef struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	JobTitle       string `json:"jobTitle,omitempty"`
	CompanyWebsite string `json:"companyWebsite,omitempty"`
	ExistingPhone  string `json:"existingPhone,omitempty"`
}

// FullName joins first and last name, trimmed.
func (r LeadRef) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Has reports whether the named field carries a non-blank value.
func (r LeadRef) Has(f FieldName) bool {
	var v string
	switch f {
	case FieldFirstName:
		v = r.FirstName
	case FieldLastName:
		v = r.LastName
	case FieldEmail:
		v = r.Email
	case FieldJobTitle:
		v = r.JobTitle
	case FieldCompanyWebsite:
		v = r.CompanyWebsite
	default:
		return false
	}
	return strings.TrimSpace(v) != ""
}

// Missing returns the first field in fields the lead does not carry.
func (r LeadRef) Missing(fields []FieldName) (FieldName, bool) {
	for _, f := range fields {
		if !r.Has(f) {
			return f, true
		}
	}
	return "", false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
