package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/store/mocks"
)

type runnerFunc func(ctx context.Context, lead model.LeadRef) (*model.EnrichmentOutcome, error)

func (f runnerFunc) Enrich(ctx context.Context, lead model.LeadRef) (*model.EnrichmentOutcome, error) {
	return f(ctx, lead)
}

func lead(id int64, first, last string) model.Lead {
	return model.Lead{ID: id, FirstName: first, LastName: last, Email: first + "@example.com"}
}

func found(provider, phone string) func(context.Context, model.LeadRef) (*model.EnrichmentOutcome, error) {
	return func(_ context.Context, l model.LeadRef) (*model.EnrichmentOutcome, error) {
		out := &model.EnrichmentOutcome{LeadID: l.ID}
		p := phone
		out.Attempts = []model.AttemptRecord{{Provider: provider, Success: true, Phone: &p}}
		out.Succeed(provider, phone)
		return out, nil
	}
}

func TestExecute_EmptyInput(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	called := false
	c := New(repo, runnerFunc(func(context.Context, model.LeadRef) (*model.EnrichmentOutcome, error) {
		called = true
		return nil, nil
	}), Config{})

	report := c.Execute(context.Background(), nil)

	assert.False(t, report.Success)
	assert.Equal(t, 0, report.ProcessedCount)
	assert.Empty(t, report.Results)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ErrNoLeadIDs, report.Errors[0].Error)
	assert.False(t, called)
	repo.AssertNotCalled(t, "FindManyByIDs", mock.Anything, mock.Anything)
}

func TestExecute_ThreeIDsOneMissing(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{1, 2, 3}).
		Return([]model.Lead{lead(1, "Ann", "Lee"), lead(3, "Bo", "Diaz")}, nil)

	c := New(repo, runnerFunc(found("OrionConnect", "+14155550100")), Config{})
	report := c.Execute(context.Background(), []int64{1, 2, 3})

	assert.True(t, report.Success)
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 2, report.ProcessedCount)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Results, 2)
	assert.Equal(t, int64(1), report.Results[0].LeadID)
	assert.Equal(t, int64(3), report.Results[1].LeadID)
}

func TestExecute_DedupesIDs(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{4, 2}).
		Return([]model.Lead{lead(4, "Cy", "Oh"), lead(2, "Di", "Ng")}, nil).Once()

	c := New(repo, runnerFunc(found("AstraDialer", "+14155550101")), Config{})
	report := c.Execute(context.Background(), []int64{4, 2, 4, 2})

	assert.Equal(t, 2, report.ProcessedCount)
	repo.AssertNumberOfCalls(t, "FindManyByIDs", 1)
}

func TestExecute_ReadFailure(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{1}).Return(nil, errors.New("connection refused"))

	var calls atomic.Int32
	c := New(repo, runnerFunc(func(context.Context, model.LeadRef) (*model.EnrichmentOutcome, error) {
		calls.Add(1)
		return nil, nil
	}), Config{})
	report := c.Execute(context.Background(), []int64{1})

	assert.False(t, report.Success)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Error, "connection refused")
	assert.Zero(t, calls.Load())
}

func TestExecute_NothingResolved(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{7, 8}).Return([]model.Lead{}, nil)

	c := New(repo, runnerFunc(found("x", "y")), Config{})
	report := c.Execute(context.Background(), []int64{7, 8})

	assert.False(t, report.Success)
	assert.Equal(t, 0, report.ProcessedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ErrNoLeadsFound, report.Errors[0].Error)
}

func TestExecute_ResultsFollowResolutionOrder(t *testing.T) {
	leads := []model.Lead{lead(10, "A", "A"), lead(20, "B", "B"), lead(30, "C", "C")}
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{10, 20, 30}).Return(leads, nil)

	// Earlier leads finish later.
	delays := map[int64]time.Duration{10: 60 * time.Millisecond, 20: 30 * time.Millisecond, 30: 0}
	c := New(repo, runnerFunc(func(ctx context.Context, l model.LeadRef) (*model.EnrichmentOutcome, error) {
		time.Sleep(delays[l.ID])
		return found("NimbusLookup", "+14155550102")(ctx, l)
	}), Config{MaxConcurrentLeads: 3})

	report := c.Execute(context.Background(), []int64{10, 20, 30})

	require.Len(t, report.Results, 3)
	for i, want := range []int64{10, 20, 30} {
		assert.Equal(t, want, report.Results[i].LeadID)
	}
}

func TestExecute_PanicIsIsolated(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{1, 2, 3}).
		Return([]model.Lead{lead(1, "Ann", "Lee"), lead(2, "Bob", "Ray"), lead(3, "Cat", "Fox")}, nil)

	c := New(repo, runnerFunc(func(ctx context.Context, l model.LeadRef) (*model.EnrichmentOutcome, error) {
		if l.ID == 2 {
			panic("boom")
		}
		return found("OrionConnect", "+14155550103")(ctx, l)
	}), Config{})

	report := c.Execute(context.Background(), []int64{1, 2, 3})

	assert.True(t, report.Success)
	assert.Equal(t, 2, report.ProcessedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, int64(2), report.Errors[0].LeadID)
	assert.Equal(t, "Bob Ray", report.Errors[0].LeadName)
	assert.Contains(t, report.Errors[0].Error, "boom")
}

func TestExecute_RunnerErrorKeepsAttempts(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{5}).Return([]model.Lead{lead(5, "Eve", "Ho")}, nil)

	c := New(repo, runnerFunc(func(_ context.Context, l model.LeadRef) (*model.EnrichmentOutcome, error) {
		return &model.EnrichmentOutcome{
			LeadID:   l.ID,
			Attempts: []model.AttemptRecord{{Provider: "OrionConnect", Error: "timeout"}},
		}, errors.New("waterfall: interrupted: context canceled")
	}), Config{})

	report := c.Execute(context.Background(), []int64{5})

	assert.Equal(t, 0, report.ProcessedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "Eve Ho", report.Errors[0].LeadName)
	require.Len(t, report.Errors[0].Attempts, 1)
	assert.Equal(t, "OrionConnect", report.Errors[0].Attempts[0].Provider)
}

func TestExecute_DeadlineCutsOffSlowLeads(t *testing.T) {
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, []int64{1, 2}).
		Return([]model.Lead{lead(1, "Fast", "One"), lead(2, "Slow", "Two")}, nil)

	c := New(repo, runnerFunc(func(ctx context.Context, l model.LeadRef) (*model.EnrichmentOutcome, error) {
		if l.ID == 1 {
			return found("OrionConnect", "+14155550104")(ctx, l)
		}
		out := &model.EnrichmentOutcome{
			LeadID:   l.ID,
			Attempts: []model.AttemptRecord{{Provider: "OrionConnect", Error: "no phone found"}},
		}
		<-ctx.Done()
		return out, ctx.Err()
	}), Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	report := c.Execute(context.Background(), []int64{1, 2})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, report.ProcessedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, int64(2), report.Errors[0].LeadID)
	assert.Len(t, report.Errors[0].Attempts, 1)
}

func TestExecute_BoundsConcurrency(t *testing.T) {
	var leads []model.Lead
	var ids []int64
	for i := int64(1); i <= 8; i++ {
		leads = append(leads, lead(i, "L", "N"))
		ids = append(ids, i)
	}
	repo := mocks.NewMockLeadRepository(t)
	repo.On("FindManyByIDs", mock.Anything, ids).Return(leads, nil)

	var mu sync.Mutex
	var active, peak int
	c := New(repo, runnerFunc(func(ctx context.Context, l model.LeadRef) (*model.EnrichmentOutcome, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return found("AstraDialer", "+14155550105")(ctx, l)
	}), Config{MaxConcurrentLeads: 2})

	report := c.Execute(context.Background(), ids)

	assert.Equal(t, 8, report.ProcessedCount)
	assert.LessOrEqual(t, peak, 2)
}

func TestNew_DefaultsConcurrency(t *testing.T) {
	c := New(nil, nil, Config{})
	assert.Equal(t, DefaultMaxConcurrentLeads, c.cfg.MaxConcurrentLeads)
}
