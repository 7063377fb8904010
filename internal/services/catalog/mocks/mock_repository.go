package mocks

import (
	"context"
	"time"

	"github.com/BearBump/FareBox/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock type for the catalog Repository type
type MockRepository struct {
	mock.Mock
}

func (_m *MockRepository) CreateTargetDate(ctx context.Context, in models.TargetDateInput, destinationIDs []int64) (*models.TargetDate, error) {
	ret := _m.Called(ctx, in, destinationIDs)
	return targetDateAt(ret, 0), ret.Error(1)
}

func (_m *MockRepository) UpdateTargetDate(ctx context.Context, id int64, in models.TargetDateInput, destinationIDs []int64) (*models.TargetDate, models.AssociationChange, error) {
	ret := _m.Called(ctx, id, in, destinationIDs)
	var change models.AssociationChange
	if v, ok := ret.Get(1).(models.AssociationChange); ok {
		change = v
	}
	return targetDateAt(ret, 0), change, ret.Error(2)
}

func (_m *MockRepository) GetTargetDate(ctx context.Context, id int64) (*models.TargetDate, error) {
	ret := _m.Called(ctx, id)
	return targetDateAt(ret, 0), ret.Error(1)
}

func (_m *MockRepository) FindActiveTargetDate(ctx context.Context, outbound, ret time.Time) (*models.TargetDate, error) {
	r := _m.Called(ctx, outbound, ret)
	return targetDateAt(r, 0), r.Error(1)
}

func (_m *MockRepository) ListTargetDates(ctx context.Context, filter models.TargetDateFilter) ([]*models.TargetDate, error) {
	ret := _m.Called(ctx, filter)
	return targetDatesAt(ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListUpcomingTargetDates(ctx context.Context, today time.Time) ([]*models.TargetDate, error) {
	ret := _m.Called(ctx, today)
	return targetDatesAt(ret, 0), ret.Error(1)
}

func (_m *MockRepository) RenameTargetDate(ctx context.Context, id int64, name string) error {
	ret := _m.Called(ctx, id, name)
	return ret.Error(0)
}

func (_m *MockRepository) SetTargetDateLifecycle(ctx context.Context, id int64, from, to models.Lifecycle) (*models.TargetDate, error) {
	ret := _m.Called(ctx, id, from, to)
	return targetDateAt(ret, 0), ret.Error(1)
}

func (_m *MockRepository) ListTargetDateDestinations(ctx context.Context, targetDateID int64) ([]*models.Destination, error) {
	ret := _m.Called(ctx, targetDateID)
	return destinationsAt(ret, 0), ret.Error(1)
}

func (_m *MockRepository) CreateDestination(ctx context.Context, code, name string) (*models.Destination, error) {
	ret := _m.Called(ctx, code, name)
	var r0 *models.Destination
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Destination)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) UpdateDestinationName(ctx context.Context, id int64, name string) error {
	ret := _m.Called(ctx, id, name)
	return ret.Error(0)
}

func (_m *MockRepository) GetDestinationByCode(ctx context.Context, code string) (*models.Destination, error) {
	ret := _m.Called(ctx, code)
	var r0 *models.Destination
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Destination)
	}
	return r0, ret.Error(1)
}

func (_m *MockRepository) ListDestinations(ctx context.Context) ([]*models.Destination, error) {
	ret := _m.Called(ctx)
	return destinationsAt(ret, 0), ret.Error(1)
}

// MockLatestInvalidator is a mock type for the LatestInvalidator type
type MockLatestInvalidator struct {
	mock.Mock
}

func (_m *MockLatestInvalidator) InvalidateLatest(ctx context.Context, targetDateID int64) error {
	ret := _m.Called(ctx, targetDateID)
	return ret.Error(0)
}

func targetDateAt(args mock.Arguments, i int) *models.TargetDate {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*models.TargetDate)
}

func targetDatesAt(args mock.Arguments, i int) []*models.TargetDate {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).([]*models.TargetDate)
}

func destinationsAt(args mock.Arguments, i int) []*models.Destination {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).([]*models.Destination)
}
