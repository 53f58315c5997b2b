package model

import "time"

// ProviderExisting is reported when the lead already carried a phone number.
const ProviderExisting = "existing"

// AttemptRecord is one provider's outcome for one lead.
type AttemptRecord struct {
	Provider  string  `json:"provider"`
	Success   bool    `json:"success"`
	Phone     *string `json:"phone"`
	Error     string  `json:"error,omitempty"`
	Skipped   bool    `json:"skipped,omitempty"`
	Calls     int     `json:"calls"`
	ElapsedMS int64   `json:"elapsedMs"`
}

// Elapsed returns the recorded duration.
func (a AttemptRecord) Elapsed() time.Duration {
	return time.Duration(a.ElapsedMS) * time.Millisecond
}

// EnrichmentOutcome is the terminal result of one lead's waterfall.
// Provider is nil iff no provider produced a saved phone.
type EnrichmentOutcome struct {
	LeadID   int64           `json:"leadId"`
	Phone    *string         `json:"phone"`
	Provider *string         `json:"provider"`
	Success  bool            `json:"success"`
	Attempts []AttemptRecord `json:"attempts"`
}

// Succeed marks the outcome as resolved by provider.
func (o *EnrichmentOutcome) Succeed(provider, phone string) {
	o.Phone = &phone
	o.Provider = &provider
	o.Success = true
}

// Clone returns a deep copy so joined callers never share mutable state.
func (o *EnrichmentOutcome) Clone() *EnrichmentOutcome {
	if o == nil {
		return nil
	}
	c := *o
	if o.Phone != nil {
		p := *o.Phone
		c.Phone = &p
	}
	if o.Provider != nil {
		p := *o.Provider
		c.Provider = &p
	}
	c.Attempts = make([]AttemptRecord, len(o.Attempts))
	for i, a := range o.Attempts {
		if a.Phone != nil {
			p := *a.Phone
			a.Phone = &p
		}
		c.Attempts[i] = a
	}
	return &c
}

// SuccessCount counts successful attempts.
func (o *EnrichmentOutcome) SuccessCount() int {
	n := 0
	for _, a := range o.Attempts {
		if a.Success {
			n++
		}
	}
	return n
}

// BatchError is a lead isolated from the batch, or a batch-level input failure
// (LeadID 0).
type BatchError struct {
	LeadID   int64           `json:"leadId"`
	LeadName string          `json:"leadName"`
	Error    string          `json:"error"`
	Attempts []AttemptRecord `json:"attempts,omitempty"`
}

// BatchReport aggregates one batch invocation.
type BatchReport struct {
	BatchID        string              `json:"batchId,omitempty"`
	Success        bool                `json:"success"`
	ProcessedCount int                 `json:"processedCount"`
	Results        []EnrichmentOutcome `json:"results"`
	Errors         []BatchError        `json:"errors"`
}

// NewBatchReport returns a report with non-nil slices so it encodes as [] not null.
func NewBatchReport() *BatchReport {
	return &BatchReport{
		Success: true,
		Results: []EnrichmentOutcome{},
		Errors:  []BatchError{},
	}
}

// Fail records a batch-level error and flips Success.
func (r *BatchReport) Fail(msg string) *BatchReport {
	r.Success = false
	r.Errors = append(r.Errors, BatchError{Error: msg})
	return r
}
