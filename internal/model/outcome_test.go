package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentOutcome_Succeed(t *testing.T) {
	t.Parallel()

	o := &EnrichmentOutcome{LeadID: 1}
	o.Succeed("NimbusLookup", "+15551234567")

	require.NotNil(t, o.Phone)
	require.NotNil(t, o.Provider)
	assert.Equal(t, "+15551234567", *o.Phone)
	assert.Equal(t, "NimbusLookup", *o.Provider)
	assert.True(t, o.Success)
}

func TestEnrichmentOutcome_CloneIsDeep(t *testing.T) {
	t.Parallel()

	o := &EnrichmentOutcome{
		LeadID:   1,
		Attempts: []AttemptRecord{{Provider: "OrionConnect", Success: true, Phone: strPtr("+1")}},
	}
	o.Succeed("OrionConnect", "+1")

	c := o.Clone()
	*c.Phone = "+2"
	*c.Attempts[0].Phone = "+3"
	c.Attempts[0].Provider = "changed"

	assert.Equal(t, "+1", *o.Phone)
	assert.Equal(t, "+1", *o.Attempts[0].Phone)
	assert.Equal(t, "OrionConnect", o.Attempts[0].Provider)

	var nilOutcome *EnrichmentOutcome
	assert.Nil(t, nilOutcome.Clone())
}

func TestEnrichmentOutcome_SuccessCount(t *testing.T) {
	t.Parallel()

	o := &EnrichmentOutcome{Attempts: []AttemptRecord{
		{Provider: "a"},
		{Provider: "b", Success: true},
		{Provider: "c", Skipped: true},
	}}
	assert.Equal(t, 1, o.SuccessCount())
}

func TestAttemptRecord_Elapsed(t *testing.T) {
	t.Parallel()
	a := AttemptRecord{ElapsedMS: 1500}
	assert.Equal(t, 1500*time.Millisecond, a.Elapsed())
}

func TestBatchReport_EncodesEmptySlices(t *testing.T) {
	t.Parallel()

	r := NewBatchReport().Fail("leadIds must be a non-empty list")
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, float64(0), decoded["processedCount"])
	assert.Equal(t, []any{}, decoded["results"])
	assert.Len(t, decoded["errors"], 1)
}
