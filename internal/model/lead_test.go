package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestLead_Ref(t *testing.T) {
	t.Parallel()

	l := Lead{
		ID:             7,
		FirstName:      " Ada ",
		LastName:       "Lovelace",
		Email:          "ada@example.com",
		Phone:          strPtr(" +15551234567 "),
		JobTitle:       strPtr("CTO"),
		CompanyWebsite: nil,
	}

	ref := l.Ref()
	assert.Equal(t, int64(7), ref.ID)
	assert.Equal(t, "Ada", ref.FirstName)
	assert.Equal(t, "+15551234567", ref.ExistingPhone)
	assert.Equal(t, "CTO", ref.JobTitle)
	assert.Empty(t, ref.CompanyWebsite)
	assert.Equal(t, "Ada Lovelace", ref.FullName())
}

func TestLeadRef_Has(t *testing.T) {
	t.Parallel()

	ref := LeadRef{FirstName: "Ada", LastName: "  ", Email: "ada@example.com"}

	tests := []struct {
		field FieldName
		want  bool
	}{
		{FieldFirstName, true},
		{FieldLastName, false},
		{FieldEmail, true},
		{FieldJobTitle, false},
		{FieldCompanyWebsite, false},
		{FieldName("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ref.Has(tt.field))
		})
	}
}

func TestLeadRef_Missing(t *testing.T) {
	t.Parallel()

	ref := LeadRef{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}

	f, missing := ref.Missing([]FieldName{FieldFirstName, FieldLastName, FieldCompanyWebsite})
	assert.True(t, missing)
	assert.Equal(t, FieldCompanyWebsite, f)

	_, missing = ref.Missing([]FieldName{FieldEmail})
	assert.False(t, missing)

	_, missing = ref.Missing(nil)
	assert.False(t, missing)
}
