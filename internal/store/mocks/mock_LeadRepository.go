// Package mocks provides test doubles for the lead store.
package mocks

import (
	"context"

	model "github.com/sells-group/lead-enrich/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockLeadRepository is a mock type for the LeadRepository interface.
type MockLeadRepository struct {
	mock.Mock
}

// FindManyByIDs provides a mock function with given fields: ctx, ids
func (_m *MockLeadRepository) FindManyByIDs(ctx context.Context, ids []int64) ([]model.Lead, error) {
	ret := _m.Called(ctx, ids)

	if len(ret) == 0 {
		panic("no return value specified for FindManyByIDs")
	}

	var r0 []model.Lead
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []int64) ([]model.Lead, error)); ok {
		return rf(ctx, ids)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []int64) []model.Lead); ok {
		r0 = rf(ctx, ids)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.Lead)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, []int64) error); ok {
		r1 = rf(ctx, ids)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *MockLeadRepository) FindByID(ctx context.Context, id int64) (*model.Lead, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for FindByID")
	}

	var r0 *model.Lead
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int64) (*model.Lead, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int64) *model.Lead); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Lead)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int64) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdatePhone provides a mock function with given fields: ctx, id, phone
func (_m *MockLeadRepository) UpdatePhone(ctx context.Context, id int64, phone string) (*model.Lead, error) {
	ret := _m.Called(ctx, id, phone)

	if len(ret) == 0 {
		panic("no return value specified for UpdatePhone")
	}

	var r0 *model.Lead
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int64, string) (*model.Lead, error)); ok {
		return rf(ctx, id, phone)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int64, string) *model.Lead); ok {
		r0 = rf(ctx, id, phone)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Lead)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int64, string) error); ok {
		r1 = rf(ctx, id, phone)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockLeadRepository creates a new instance of MockLeadRepository.
func NewMockLeadRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockLeadRepository {
	mock := &MockLeadRepository{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
