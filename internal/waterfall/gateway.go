package waterfall

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/db"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/internal/store"
	"github.com/sells-group/lead-enrich/pkg/phone"
)

// Save failure messages recorded on attempts.
const (
	ErrLeadNotFound = "lead not found"
	ErrNotSaved     = "phone found but not saved"
)

// SaveResult reports a persistence attempt as data.
type SaveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Saver persists a found phone for a lead.
type Saver interface {
	Save(ctx context.Context, leadID int64, phone string) SaveResult
}

// Gateway is the only component that writes enrichment results. It touches
// the phone field and nothing else.
type Gateway struct {
	repo   store.LeadRepository
	policy SavePolicy
	region string
}

// NewGateway creates a Gateway over repo with the given save policy.
func NewGateway(repo store.LeadRepository, policy SavePolicy, region string) *Gateway {
	return &Gateway{repo: repo, policy: policy, region: region}
}

// Save writes phone to the lead. A lead that already carries the number is a
// no-op success. Store errors classified as retryable are retried under the
// save policy.
func (g *Gateway) Save(ctx context.Context, leadID int64, number string) SaveResult {
	if g.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.policy.Timeout)
		defer cancel()
	}

	retry := g.policy.Retry
	retry.ShouldRetry = func(err error) bool {
		return db.Retryable(err) || resilience.IsTransient(err)
	}
	retry.OnRetry = resilience.RetryLogger("store", "save_phone")

	res, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (SaveResult, error) {
		return g.saveOnce(ctx, leadID, number)
	})
	if err != nil {
		zap.L().Error("waterfall: save phone failed",
			zap.Int64("lead_id", leadID),
			zap.Error(err),
		)
		return SaveResult{Error: fmt.Sprintf("save failed: %v", err)}
	}
	return res
}

func (g *Gateway) saveOnce(ctx context.Context, leadID int64, number string) (SaveResult, error) {
	lead, err := g.repo.FindByID(ctx, leadID)
	if err != nil {
		return SaveResult{}, err
	}
	if lead == nil {
		return SaveResult{Error: ErrLeadNotFound}, nil
	}
	if lead.Phone != nil && phone.Same(*lead.Phone, number, g.region) {
		return SaveResult{Success: true}, nil
	}

	updated, err := g.repo.UpdatePhone(ctx, leadID, number)
	if err != nil {
		return SaveResult{}, err
	}
	if updated == nil {
		return SaveResult{Error: ErrLeadNotFound}, nil
	}
	return SaveResult{Success: true}, nil
}

var _ Saver = (*Gateway)(nil)
