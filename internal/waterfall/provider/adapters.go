package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/pkg/astra"
	"github.com/sells-group/lead-enrich/pkg/nimbus"
	"github.com/sells-group/lead-enrich/pkg/orion"
	"github.com/sells-group/lead-enrich/pkg/phone"
)

// OrionAdapter looks up a phone by full name and company website.
type OrionAdapter struct {
	client orion.Client
	region string
}

// NewOrion wraps an Orion Connect client. region seeds phone normalization.
func NewOrion(client orion.Client, region string) *OrionAdapter {
	return &OrionAdapter{client: client, region: region}
}

// Name implements Adapter.
func (a *OrionAdapter) Name() string { return NameOrion }

// RequiredFields implements Adapter.
func (a *OrionAdapter) RequiredFields() []model.FieldName {
	return []model.FieldName{model.FieldFirstName, model.FieldLastName, model.FieldCompanyWebsite}
}

// Lookup implements Adapter.
func (a *OrionAdapter) Lookup(ctx context.Context, lead model.LeadRef) (Result, error) {
	resp, err := a.client.Lookup(ctx, orion.LookupRequest{
		FullName:       lead.FullName(),
		CompanyWebsite: lead.CompanyWebsite,
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "provider: orion lookup")
	}
	return normalized(resp.Phone, a.region), nil
}

// NimbusAdapter looks up a phone by email and job title.
type NimbusAdapter struct {
	client nimbus.Client
	region string
}

// NewNimbus wraps a Nimbus Lookup client.
func NewNimbus(client nimbus.Client, region string) *NimbusAdapter {
	return &NimbusAdapter{client: client, region: region}
}

// Name implements Adapter.
func (a *NimbusAdapter) Name() string { return NameNimbus }

// RequiredFields implements Adapter.
func (a *NimbusAdapter) RequiredFields() []model.FieldName {
	return []model.FieldName{model.FieldEmail, model.FieldJobTitle}
}

// Lookup implements Adapter.
func (a *NimbusAdapter) Lookup(ctx context.Context, lead model.LeadRef) (Result, error) {
	resp, err := a.client.Lookup(ctx, nimbus.LookupRequest{
		Email:    lead.Email,
		JobTitle: lead.JobTitle,
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "provider: nimbus lookup")
	}
	return normalized(string(resp.Phone), a.region), nil
}

// AstraAdapter looks up a phone by email alone.
type AstraAdapter struct {
	client astra.Client
	region string
}

// NewAstra wraps an Astra Dialer client.
func NewAstra(client astra.Client, region string) *AstraAdapter {
	return &AstraAdapter{client: client, region: region}
}

// Name implements Adapter.
func (a *AstraAdapter) Name() string { return NameAstra }

// RequiredFields implements Adapter.
func (a *AstraAdapter) RequiredFields() []model.FieldName {
	return []model.FieldName{model.FieldEmail}
}

// Lookup implements Adapter.
func (a *AstraAdapter) Lookup(ctx context.Context, lead model.LeadRef) (Result, error) {
	resp, err := a.client.Lookup(ctx, astra.LookupRequest{Email: lead.Email})
	if err != nil {
		return Result{}, eris.Wrap(err, "provider: astra lookup")
	}
	return normalized(resp.Phone, a.region), nil
}

// normalized drops values that do not look like a phone number.
func normalized(raw, region string) Result {
	p, ok := phone.Normalize(raw, region)
	if !ok {
		return Result{}
	}
	return Result{Phone: p}
}
