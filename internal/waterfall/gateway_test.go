package waterfall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
	"github.com/sells-group/lead-enrich/internal/store/mocks"
)

func fastSave() SavePolicy {
	return SavePolicy{
		Timeout: time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2,
		},
	}
}

func strPtr(s string) *string { return &s }

func TestGateway_Save_UpdatesPhone(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindByID", mock.Anything, int64(1)).Return(&model.Lead{ID: 1}, nil).Once()
	repo.On("UpdatePhone", mock.Anything, int64(1), "+16502530000").
		Return(&model.Lead{ID: 1, Phone: strPtr("+16502530000")}, nil).Once()

	res := NewGateway(repo, fastSave(), "US").Save(context.Background(), 1, "+16502530000")

	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
}

func TestGateway_Save_LeadNotFound(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindByID", mock.Anything, int64(404)).Return(nil, nil).Once()

	res := NewGateway(repo, fastSave(), "US").Save(context.Background(), 404, "+16502530000")

	assert.False(t, res.Success)
	assert.Equal(t, ErrLeadNotFound, res.Error)
	repo.AssertNotCalled(t, "UpdatePhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateway_Save_DeletedBeforeUpdate(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindByID", mock.Anything, int64(2)).Return(&model.Lead{ID: 2}, nil).Once()
	repo.On("UpdatePhone", mock.Anything, int64(2), "+16502530000").Return(nil, nil).Once()

	res := NewGateway(repo, fastSave(), "US").Save(context.Background(), 2, "+16502530000")

	assert.False(t, res.Success)
	assert.Equal(t, ErrLeadNotFound, res.Error)
}

func TestGateway_Save_SamePhoneIsNoop(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindByID", mock.Anything, int64(3)).
		Return(&model.Lead{ID: 3, Phone: strPtr("(650) 253-0000")}, nil).Once()

	res := NewGateway(repo, fastSave(), "US").Save(context.Background(), 3, "+16502530000")

	assert.True(t, res.Success)
	repo.AssertNotCalled(t, "UpdatePhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateway_Save_RetriesRetryableStoreError(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindByID", mock.Anything, int64(4)).Return(&model.Lead{ID: 4}, nil).Twice()
	repo.On("UpdatePhone", mock.Anything, int64(4), "+16502530000").
		Return(nil, &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}).Once()
	repo.On("UpdatePhone", mock.Anything, int64(4), "+16502530000").
		Return(&model.Lead{ID: 4, Phone: strPtr("+16502530000")}, nil).Once()

	res := NewGateway(repo, fastSave(), "US").Save(context.Background(), 4, "+16502530000")

	assert.True(t, res.Success)
}

func TestGateway_Save_PermanentStoreError(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindByID", mock.Anything, int64(5)).Return(nil, errors.New("permission denied for table leads")).Once()

	res := NewGateway(repo, fastSave(), "US").Save(context.Background(), 5, "+16502530000")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "save failed")
	assert.Contains(t, res.Error, "permission denied")
}

func TestGateway_Save_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindByID", mock.Anything, int64(6)).
		Return(nil, &pgconn.PgError{Code: "08006", Message: "connection failure"}).Times(3)

	res := NewGateway(repo, fastSave(), "US").Save(context.Background(), 6, "+16502530000")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection failure")
}
