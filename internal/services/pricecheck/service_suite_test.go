package pricecheck

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/FareBox/internal/broker/messages"
	"github.com/BearBump/FareBox/internal/integrations/flights"
	"github.com/BearBump/FareBox/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	pricecheckmocks "github.com/BearBump/FareBox/internal/services/pricecheck/mocks"
)

type ServiceSuite struct {
	suite.Suite

	catalog  *pricecheckmocks.MockCatalog
	history  *pricecheckmocks.MockHistory
	producer *pricecheckmocks.MockProducer
	client   *pricecheckmocks.MockFlightsClient
	svc      *Service

	now    time.Time
	sleeps []time.Duration
}

func (s *ServiceSuite) SetupTest() {
	s.catalog = &pricecheckmocks.MockCatalog{}
	s.history = &pricecheckmocks.MockHistory{}
	s.producer = &pricecheckmocks.MockProducer{}
	s.client = &pricecheckmocks.MockFlightsClient{}
	s.now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.sleeps = nil

	s.svc = New(s.catalog, s.history, s.client, s.producer, nil, "price.checked")
	s.svc.now = func() time.Time { return s.now }
	s.svc.sleep = func(ctx context.Context, d time.Duration) error {
		s.sleeps = append(s.sleeps, d)
		return ctx.Err()
	}
}

var (
	easter = &models.TargetDate{
		ID:           1,
		Name:         "Easter",
		OutboundDate: time.Date(2026, 4, 18, 0, 0, 0, 0, time.UTC),
		ReturnDate:   time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC),
	}
	pmi = &models.Destination{ID: 10, AirportCode: "PMI", Name: "Palma de Mallorca"}
	arn = &models.Destination{ID: 11, AirportCode: "ARN", Name: "Stockholm"}
	tfs = &models.Destination{ID: 12, AirportCode: "TFS", Name: "Tenerife South"}
)

func option(price, airline string, dep time.Time) flights.Option {
	return flights.Option{
		Price:         decimal.RequireFromString(price),
		Currency:      "EUR",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(135 * time.Minute),
		Airline:       airline,
	}
}

func okResult(opts ...flights.Option) flights.SearchResult {
	return flights.SearchResult{Success: true, Options: opts}
}

func (s *ServiceSuite) TestFetchAndSave_EasterPalma() {
	dep := time.Date(2026, 4, 18, 6, 30, 0, 0, time.UTC)
	s.catalog.On("FindDestinationByCode", mock.Anything, "PMI").Return(pmi, nil).Once()
	s.catalog.On("FindActiveByDates", mock.Anything, easter.OutboundDate, easter.ReturnDate).Return(easter, nil).Once()
	s.client.On("SearchFlights", mock.Anything, "FRA", "PMI", easter.OutboundDate, easter.ReturnDate).
		Return(okResult(
			option("120.50", "Lufthansa", dep.Add(3*time.Hour)),
			option("89.00", "Ryanair", dep),
			option("89.00", "Eurowings", dep.Add(time.Hour)),
		), nil).Once()
	s.history.On("Append", mock.Anything, mock.MatchedBy(func(pc *models.PriceCheck) bool {
		return pc.TargetDateID == 1 && pc.DestinationID == 10 &&
			pc.Price.StringFixed(2) == "89.00" &&
			pc.Currency == "EUR" && pc.Airline == "Ryanair" &&
			pc.DepartureTime == models.ClockTime{Hour: 6, Minute: 30} &&
			pc.ArrivalTime == models.ClockTime{Hour: 8, Minute: 45} &&
			pc.CheckTimestamp.Equal(s.now)
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.PriceCheck).ID = 77
	}).Return(nil).Once()
	s.producer.On("Publish", mock.Anything, "price.checked", []byte("1:10"), mock.MatchedBy(func(b []byte) bool {
		var msg messages.PriceChecked
		return json.Unmarshal(b, &msg) == nil && msg.PriceCheckID == 77 && msg.Price == "89.00" && msg.DestinationCode == "PMI"
	})).Return(nil).Once()

	pc, err := s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().NoError(err)
	s.Require().NotNil(pc)
	s.Require().Equal(int64(77), pc.ID)
	s.Require().Equal("Ryanair", pc.Airline)

	s.catalog.AssertExpectations(s.T())
	s.client.AssertExpectations(s.T())
	s.history.AssertExpectations(s.T())
	s.producer.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestFetchAndSave_PublishFailureIsNotFatal() {
	s.catalog.On("FindDestinationByCode", mock.Anything, "PMI").Return(pmi, nil)
	s.catalog.On("FindActiveByDates", mock.Anything, mock.Anything, mock.Anything).Return(easter, nil)
	s.client.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResult(option("89.00", "Ryanair", s.now)), nil)
	s.history.On("Append", mock.Anything, mock.Anything).Return(nil)
	s.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	pc, err := s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().NoError(err)
	s.Require().NotNil(pc)
}

func (s *ServiceSuite) TestFetchAndSave_ProviderError() {
	s.catalog.On("FindDestinationByCode", mock.Anything, "PMI").Return(pmi, nil)
	s.catalog.On("FindActiveByDates", mock.Anything, mock.Anything, mock.Anything).Return(easter, nil)
	s.client.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(flights.SearchResult{}, errors.New("connection refused"))

	pc, err := s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().ErrorIs(err, models.ErrProvider)
	s.Require().Nil(pc)
	s.history.AssertNotCalled(s.T(), "Append", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestFetchAndSave_NoResults() {
	s.catalog.On("FindDestinationByCode", mock.Anything, "PMI").Return(pmi, nil)
	s.catalog.On("FindActiveByDates", mock.Anything, mock.Anything, mock.Anything).Return(easter, nil)
	s.client.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(flights.SearchResult{Success: false, ErrorMessage: "quota"}, nil).Once()

	pc, err := s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().NoError(err)
	s.Require().Nil(pc)

	s.client.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResult(), nil).Once()
	pc, err = s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().NoError(err)
	s.Require().Nil(pc)

	s.history.AssertNotCalled(s.T(), "Append", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestFetchAndSave_UntrackedRoute() {
	// котировку получаем всегда, маршрут ищем уже после
	s.client.On("SearchFlights", mock.Anything, "FRA", "XYZ", easter.OutboundDate, easter.ReturnDate).
		Return(okResult(option("150.00", "Condor", s.now)), nil).Once()
	s.catalog.On("FindDestinationByCode", mock.Anything, "XYZ").Return(nil, models.NotFoundf("XYZ")).Once()
	pc, err := s.svc.FetchAndSave(context.Background(), "FRA", "XYZ", easter.OutboundDate, easter.ReturnDate)
	s.Require().NoError(err)
	s.Require().Nil(pc)

	s.client.On("SearchFlights", mock.Anything, "FRA", "PMI", easter.OutboundDate, easter.ReturnDate).
		Return(okResult(option("89.00", "Ryanair", s.now)), nil).Once()
	s.catalog.On("FindDestinationByCode", mock.Anything, "PMI").Return(pmi, nil).Once()
	s.catalog.On("FindActiveByDates", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()
	pc, err = s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().NoError(err)
	s.Require().Nil(pc)

	s.client.AssertNumberOfCalls(s.T(), "SearchFlights", 2)
	s.catalog.AssertExpectations(s.T())
	s.history.AssertNotCalled(s.T(), "Append", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestFetchAndSave_ProviderErrorOnUntrackedRoute() {
	s.client.On("SearchFlights", mock.Anything, "FRA", "XYZ", mock.Anything, mock.Anything).
		Return(flights.SearchResult{}, errors.New("connection refused")).Once()

	pc, err := s.svc.FetchAndSave(context.Background(), "FRA", "XYZ", easter.OutboundDate, easter.ReturnDate)
	s.Require().ErrorIs(err, models.ErrProvider)
	s.Require().Nil(pc)
	s.client.AssertNumberOfCalls(s.T(), "SearchFlights", 1)
	s.catalog.AssertNotCalled(s.T(), "FindDestinationByCode", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestFetchAndSave_PersistenceError() {
	s.catalog.On("FindDestinationByCode", mock.Anything, "PMI").Return(pmi, nil)
	s.catalog.On("FindActiveByDates", mock.Anything, mock.Anything, mock.Anything).Return(easter, nil)
	s.client.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResult(option("89.00", "Ryanair", s.now)), nil)
	s.history.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().ErrorIs(err, models.ErrPersistence)
	s.producer.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCheckAllRoutes_PartialFailure() {
	empty := &models.TargetDate{ID: 2, Name: "Empty", OutboundDate: easter.OutboundDate, ReturnDate: easter.ReturnDate}
	s.catalog.On("ListUpcoming", mock.Anything).Return([]*models.TargetDate{empty, easter}, nil).Once()
	s.catalog.On("GetAssociatedDestinations", mock.Anything, int64(2)).Return([]*models.Destination{}, nil).Once()
	s.catalog.On("GetAssociatedDestinations", mock.Anything, int64(1)).Return([]*models.Destination{pmi, arn, tfs}, nil).Once()

	s.client.On("SearchFlights", mock.Anything, "FRA", "PMI", mock.Anything, mock.Anything).
		Return(okResult(option("89.00", "Ryanair", s.now)), nil).Once()
	s.client.On("SearchFlights", mock.Anything, "FRA", "ARN", mock.Anything, mock.Anything).
		Return(flights.SearchResult{}, errors.New("timeout")).Once()
	s.client.On("SearchFlights", mock.Anything, "FRA", "TFS", mock.Anything, mock.Anything).
		Return(okResult(option("156.00", "Condor", s.now)), nil).Once()
	s.history.On("Append", mock.Anything, mock.Anything).Return(nil).Twice()
	s.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	n, err := s.svc.CheckAllRoutes(context.Background(), "FRA")
	s.Require().NoError(err)
	s.Require().Equal(2, n)
	// three live fetches, two gaps
	s.Require().Equal([]time.Duration{DefaultInterCallDelay, DefaultInterCallDelay}, s.sleeps)

	st := s.svc.Stats()
	s.Require().Equal(int64(1), st.TotalSweeps)
	s.Require().Equal(int64(3), st.TotalFetched)
	s.Require().Equal(int64(2), st.TotalSaved)
	s.Require().Equal(int64(1), st.TotalFailures)
	s.Require().Contains(st.LastError, "timeout")
	s.Require().NotNil(st.LastSweepAt)
	s.client.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCheckAllRoutes_ListError() {
	s.catalog.On("ListUpcoming", mock.Anything).Return(nil, models.Persistence(errors.New("conn reset"), "select")).Once()

	n, err := s.svc.CheckAllRoutes(context.Background(), "FRA")
	s.Require().ErrorIs(err, models.ErrPersistence)
	s.Require().Zero(n)
}

func (s *ServiceSuite) TestCheckAllRoutes_CancelledBetweenCalls() {
	ctx, cancel := context.WithCancel(context.Background())

	s.catalog.On("ListUpcoming", mock.Anything).Return([]*models.TargetDate{easter}, nil).Once()
	s.catalog.On("GetAssociatedDestinations", mock.Anything, int64(1)).Return([]*models.Destination{pmi, arn}, nil).Once()
	s.client.On("SearchFlights", mock.Anything, "FRA", "PMI", mock.Anything, mock.Anything).
		Return(okResult(option("89.00", "Ryanair", s.now)), nil).Once()
	s.history.On("Append", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil).Once()
	s.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	n, err := s.svc.CheckAllRoutes(ctx, "FRA")
	s.Require().ErrorIs(err, context.Canceled)
	s.Require().Equal(1, n)
	s.client.AssertNotCalled(s.T(), "SearchFlights", mock.Anything, "FRA", "ARN", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCheckDateRangeOnDemand_CacheOrFetch() {
	recent := &models.PriceCheck{ID: 5, TargetDateID: 1, DestinationID: 10, Price: decimal.NewFromInt(89)}

	s.catalog.On("GetActiveDateRange", mock.Anything, int64(1)).Return(easter, nil).Once()
	s.catalog.On("GetAssociatedDestinations", mock.Anything, int64(1)).Return([]*models.Destination{pmi, arn, tfs}, nil).Once()
	s.history.On("RecentWithin", mock.Anything, int64(1), int64(10), 6).Return(recent, nil).Once()
	s.history.On("RecentWithin", mock.Anything, int64(1), int64(11), 6).Return(nil, nil).Once()
	s.history.On("RecentWithin", mock.Anything, int64(1), int64(12), 6).Return(nil, nil).Once()
	s.client.On("SearchFlights", mock.Anything, "FRA", "ARN", mock.Anything, mock.Anything).
		Return(okResult(option("142.00", "SAS", s.now)), nil).Once()
	s.client.On("SearchFlights", mock.Anything, "FRA", "TFS", mock.Anything, mock.Anything).
		Return(okResult(), nil).Once()
	s.history.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
	s.producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res, err := s.svc.CheckDateRangeOnDemand(context.Background(), "FRA", 1, 0)
	s.Require().NoError(err)
	s.Require().Equal(1, res.Cached)
	s.Require().Equal(1, res.Fetched)
	s.Require().Equal(1, res.Failed)
	s.Require().Len(res.Results, 3)
	s.Require().True(res.Results[0].FromCache)
	s.Require().Equal(int64(5), res.Results[0].PriceCheck.ID)
	s.Require().Equal("SAS", res.Results[1].PriceCheck.Airline)
	s.Require().NotEmpty(res.Results[2].Error)
	// the cached destination does not cost a delay
	s.Require().Len(s.sleeps, 1)
	s.Require().Equal(int64(1), s.svc.Stats().TotalCached)
}

func (s *ServiceSuite) TestCheckDateRangeOnDemand_Missing() {
	s.catalog.On("GetActiveDateRange", mock.Anything, int64(404)).Return(nil, models.NotFoundf("target date 404")).Once()

	_, err := s.svc.CheckDateRangeOnDemand(context.Background(), "FRA", 404, 6)
	s.Require().ErrorIs(err, models.ErrNotFound)

	_, err = s.svc.CheckDateRangeOnDemand(context.Background(), "FRA", 1, -1)
	s.Require().ErrorIs(err, models.ErrValidation)
}

func (s *ServiceSuite) TestRateLimit_BacksOff() {
	rl := &pricecheckmocks.MockRateLimiter{}
	s.svc.rl = rl
	s.svc.WithSettings(0, 5).WithProviderName("mock")

	rl.On("Allow", mock.Anything, "rl:provider:mock:202603010800", int64(5), 70*time.Second).
		Return(false, int64(6), nil).Once()
	s.catalog.On("FindDestinationByCode", mock.Anything, "PMI").Return(pmi, nil)
	s.catalog.On("FindActiveByDates", mock.Anything, mock.Anything, mock.Anything).Return(easter, nil)
	s.client.On("SearchFlights", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResult(), nil)

	_, err := s.svc.FetchAndSave(context.Background(), "FRA", "PMI", easter.OutboundDate, easter.ReturnDate)
	s.Require().NoError(err)
	s.Require().Equal([]time.Duration{rateLimitBackoff}, s.sleeps)
	rl.AssertExpectations(s.T())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
