package mocks

import (
	"context"
	"time"

	"github.com/BearBump/FareBox/internal/integrations/flights"
	"github.com/BearBump/FareBox/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockCatalog is a mock type for the pricecheck Catalog type
type MockCatalog struct {
	mock.Mock
}

func (_m *MockCatalog) ListUpcoming(ctx context.Context) ([]*models.TargetDate, error) {
	ret := _m.Called(ctx)
	var r0 []*models.TargetDate
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.TargetDate)
	}
	return r0, ret.Error(1)
}

func (_m *MockCatalog) GetActiveDateRange(ctx context.Context, id int64) (*models.TargetDate, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.TargetDate
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.TargetDate)
	}
	return r0, ret.Error(1)
}

func (_m *MockCatalog) GetAssociatedDestinations(ctx context.Context, targetDateID int64) ([]*models.Destination, error) {
	ret := _m.Called(ctx, targetDateID)
	var r0 []*models.Destination
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.Destination)
	}
	return r0, ret.Error(1)
}

func (_m *MockCatalog) FindDestinationByCode(ctx context.Context, code string) (*models.Destination, error) {
	ret := _m.Called(ctx, code)
	var r0 *models.Destination
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Destination)
	}
	return r0, ret.Error(1)
}

func (_m *MockCatalog) FindActiveByDates(ctx context.Context, outbound, ret time.Time) (*models.TargetDate, error) {
	r := _m.Called(ctx, outbound, ret)
	var r0 *models.TargetDate
	if r.Get(0) != nil {
		r0 = r.Get(0).(*models.TargetDate)
	}
	return r0, r.Error(1)
}

// MockHistory is a mock type for the pricecheck History type
type MockHistory struct {
	mock.Mock
}

func (_m *MockHistory) Append(ctx context.Context, pc *models.PriceCheck) error {
	ret := _m.Called(ctx, pc)
	return ret.Error(0)
}

func (_m *MockHistory) RecentWithin(ctx context.Context, targetDateID, destinationID int64, maxAgeHours int) (*models.PriceCheck, error) {
	ret := _m.Called(ctx, targetDateID, destinationID, maxAgeHours)
	var r0 *models.PriceCheck
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.PriceCheck)
	}
	return r0, ret.Error(1)
}

// MockProducer is a mock type for the Producer type
type MockProducer struct {
	mock.Mock
}

func (_m *MockProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	ret := _m.Called(ctx, topic, key, value)
	return ret.Error(0)
}

// MockRateLimiter is a mock type for the RateLimiter type
type MockRateLimiter struct {
	mock.Mock
}

func (_m *MockRateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	ret := _m.Called(ctx, key, limit, window)
	return ret.Bool(0), ret.Get(1).(int64), ret.Error(2)
}

// MockFlightsClient is a mock type for the flights.Client type
type MockFlightsClient struct {
	mock.Mock
}

func (_m *MockFlightsClient) SearchFlights(ctx context.Context, origin, destination string, outbound, ret time.Time) (flights.SearchResult, error) {
	r := _m.Called(ctx, origin, destination, outbound, ret)
	var r0 flights.SearchResult
	if v, ok := r.Get(0).(flights.SearchResult); ok {
		r0 = v
	}
	return r0, r.Error(1)
}
