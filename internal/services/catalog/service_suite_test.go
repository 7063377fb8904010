package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/FareBox/config"
	cachemocks "github.com/BearBump/FareBox/internal/cache/mocks"
	"github.com/BearBump/FareBox/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	catalogmocks "github.com/BearBump/FareBox/internal/services/catalog/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo   *catalogmocks.MockRepository
	latest *catalogmocks.MockLatestInvalidator
	cache  *cachemocks.MockBytesCache
	svc    *Service
	now    time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &catalogmocks.MockRepository{}
	s.latest = &catalogmocks.MockLatestInvalidator{}
	s.cache = &cachemocks.MockBytesCache{}
	s.now = time.Date(2026, 4, 17, 23, 30, 0, 0, time.UTC)
	s.svc = New(s.repo, s.cache, 24*time.Hour).
		WithLocation(time.FixedZone("CEST", 2*60*60)).
		WithLatestInvalidator(s.latest)
	s.svc.now = func() time.Time { return s.now }
}

func day(s string) time.Time {
	d, _ := models.ParseDate(s)
	return d
}

func (s *ServiceSuite) TestCreateDateRange_Validation() {
	ctx := context.Background()

	_, err := s.svc.CreateDateRange(ctx, "   ", day("2026-04-18"), day("2026-04-21"), []int64{1})
	s.Require().ErrorIs(err, models.ErrValidation)

	_, err = s.svc.CreateDateRange(ctx, "Easter", day("2026-04-21"), day("2026-04-21"), []int64{1})
	s.Require().ErrorIs(err, models.ErrValidation)

	_, err = s.svc.CreateDateRange(ctx, "Easter", day("2026-04-22"), day("2026-04-21"), []int64{1})
	s.Require().ErrorIs(err, models.ErrValidation)

	_, err = s.svc.CreateDateRange(ctx, "Easter", day("2026-04-18"), day("2026-04-21"), nil)
	s.Require().ErrorIs(err, models.ErrValidation)

	s.repo.AssertNotCalled(s.T(), "CreateTargetDate", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateDateRange_TrimsAndDedups() {
	want := models.TargetDateInput{Name: "Easter", OutboundDate: day("2026-04-18"), ReturnDate: day("2026-04-21")}
	s.repo.On("CreateTargetDate", mock.Anything, want, []int64{3, 1}).
		Return(&models.TargetDate{ID: 5, Name: "Easter", OutboundDate: want.OutboundDate, ReturnDate: want.ReturnDate}, nil).
		Once()

	td, err := s.svc.CreateDateRange(context.Background(), " Easter ", day("2026-04-18").Add(10*time.Hour), day("2026-04-21"), []int64{3, 1, 3})
	s.Require().NoError(err)
	s.Require().Equal(int64(5), td.ID)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateDateRange_DuplicateDates() {
	s.repo.On("CreateTargetDate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.Validationf("already exists")).
		Once()

	_, err := s.svc.CreateDateRange(context.Background(), "Easter", day("2026-04-18"), day("2026-04-21"), []int64{1})
	s.Require().ErrorIs(err, models.ErrValidation)
}

func (s *ServiceSuite) TestUpdateDateRange_InvalidatesLatest() {
	s.repo.On("UpdateTargetDate", mock.Anything, int64(5), mock.Anything, []int64{3, 4}).
		Return(&models.TargetDate{ID: 5}, models.AssociationChange{Added: []int64{3, 4}, Removed: []int64{1, 2}, PurgedChecks: 7}, nil).
		Once()
	s.latest.On("InvalidateLatest", mock.Anything, int64(5)).Return(nil).Once()

	td, err := s.svc.UpdateDateRange(context.Background(), 5, "Easter", day("2026-04-18"), day("2026-04-21"), []int64{3, 4})
	s.Require().NoError(err)
	s.Require().Equal(int64(5), td.ID)
	s.repo.AssertExpectations(s.T())
	s.latest.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestUpdateDateRange_NotFound() {
	s.repo.On("UpdateTargetDate", mock.Anything, int64(9), mock.Anything, mock.Anything).
		Return(nil, models.AssociationChange{}, models.NotFoundf("target date 9")).
		Once()

	_, err := s.svc.UpdateDateRange(context.Background(), 9, "X", day("2026-04-18"), day("2026-04-21"), []int64{1})
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.latest.AssertNotCalled(s.T(), "InvalidateLatest", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestSoftDeleteAndRestore() {
	active := &models.TargetDate{ID: 5, Lifecycle: models.Active()}
	deleted := &models.TargetDate{ID: 5, Lifecycle: models.DeletedAt(s.now)}

	s.repo.On("GetTargetDate", mock.Anything, int64(5)).Return(active, nil).Once()
	s.repo.On("SetTargetDateLifecycle", mock.Anything, int64(5), models.Active(), models.DeletedAt(s.now)).
		Return(deleted, nil).Once()
	s.Require().NoError(s.svc.SoftDelete(context.Background(), 5))

	s.repo.On("GetTargetDate", mock.Anything, int64(5)).Return(deleted, nil).Once()
	s.repo.On("SetTargetDateLifecycle", mock.Anything, int64(5), models.DeletedAt(s.now), models.Active()).
		Return(active, nil).Once()
	s.Require().NoError(s.svc.Restore(context.Background(), 5))

	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestIllegalTransitions_NoWrite() {
	s.repo.On("GetTargetDate", mock.Anything, int64(5)).
		Return(&models.TargetDate{ID: 5, Lifecycle: models.DeletedAt(s.now)}, nil).Once()
	s.Require().ErrorIs(s.svc.SoftDelete(context.Background(), 5), models.ErrNotFound)

	s.repo.On("GetTargetDate", mock.Anything, int64(6)).
		Return(&models.TargetDate{ID: 6, Lifecycle: models.Active()}, nil).Once()
	s.Require().ErrorIs(s.svc.Restore(context.Background(), 6), models.ErrNotFound)

	s.repo.On("GetTargetDate", mock.Anything, int64(7)).
		Return(nil, models.NotFoundf("target date 7")).Once()
	s.Require().ErrorIs(s.svc.SoftDelete(context.Background(), 7), models.ErrNotFound)

	s.repo.AssertNotCalled(s.T(), "SetTargetDateLifecycle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestListUpcoming_UsesLocalToday() {
	// 23:30 UTC is already the 18th in +02:00
	s.repo.On("ListUpcomingTargetDates", mock.Anything, day("2026-04-18")).
		Return([]*models.TargetDate{{ID: 1}}, nil).Once()

	out, err := s.svc.ListUpcoming(context.Background())
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetActiveDateRange_DeletedIsNotFound() {
	s.repo.On("GetTargetDate", mock.Anything, int64(5)).
		Return(&models.TargetDate{ID: 5, Lifecycle: models.DeletedAt(s.now)}, nil).Once()

	_, err := s.svc.GetActiveDateRange(context.Background(), 5)
	s.Require().ErrorIs(err, models.ErrNotFound)
}

func (s *ServiceSuite) TestListDestinations_CacheHit_NoDB() {
	b, _ := json.Marshal([]*models.Destination{{ID: 1, AirportCode: "PMI", Name: "Palma de Mallorca"}})
	s.cache.On("Get", mock.Anything, "destinations:all").Return(b, true, nil).Once()

	out, err := s.svc.ListDestinations(context.Background())
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Require().Equal("PMI", out[0].AirportCode)
	s.repo.AssertNotCalled(s.T(), "ListDestinations", mock.Anything)
}

func (s *ServiceSuite) TestListDestinations_CacheErrorFallsBackToDB() {
	s.cache.On("Get", mock.Anything, "destinations:all").Return(nil, false, errors.New("redis down")).Once()
	s.repo.On("ListDestinations", mock.Anything).
		Return([]*models.Destination{{ID: 2, AirportCode: "ARN", Name: "Stockholm"}}, nil).Once()
	s.cache.On("Set", mock.Anything, "destinations:all", mock.Anything, 24*time.Hour).Return(nil).Once()

	out, err := s.svc.ListDestinations(context.Background())
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestSearchDestinations() {
	all := []*models.Destination{
		{ID: 1, AirportCode: "PMI", Name: "Palma de Mallorca"},
		{ID: 2, AirportCode: "LPA", Name: "Gran Canaria"},
		{ID: 3, AirportCode: "TFS", Name: "Tenerife South"},
		{ID: 4, AirportCode: "ARN", Name: "Stockholm"},
	}
	s.cache.On("Get", mock.Anything, "destinations:all").Return(nil, false, nil)
	s.cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s.repo.On("ListDestinations", mock.Anything).Return(all, nil)

	out, err := s.svc.SearchDestinations(context.Background(), "pa", 0)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Require().Equal("PMI", out[0].AirportCode)

	// code prefix matches go before name matches
	out, err = s.svc.SearchDestinations(context.Background(), "l", 0)
	s.Require().NoError(err)
	s.Require().Len(out, 3)
	s.Require().Equal("LPA", out[0].AirportCode)
	s.Require().Equal("PMI", out[1].AirportCode)

	out, err = s.svc.SearchDestinations(context.Background(), "", 2)
	s.Require().NoError(err)
	s.Require().Len(out, 2)

	out, err = s.svc.SearchDestinations(context.Background(), "zzz", 0)
	s.Require().NoError(err)
	s.Require().Empty(out)
}

func (s *ServiceSuite) TestSyncFromConfig() {
	cfg := config.FareBoxConfig{
		Destinations: []config.DestinationConfig{
			{Code: "pmi", Name: "Palma de Mallorca"},
			{Code: "ARN", Name: "Stockholm Arlanda"},
			{Code: "TOOLONG", Name: "bad"},
		},
		TargetDates: []config.TargetDateConfig{
			{Name: "Easter", Outbound: "2026-04-18", Return: "2026-04-21"},
			{Name: "Summer", Outbound: "2026-07-01", Return: "2026-07-10"},
			{Name: "Broken", Outbound: "18.04.2026", Return: "2026-04-21"},
		},
	}

	s.repo.On("GetDestinationByCode", mock.Anything, "PMI").Return(nil, models.NotFoundf("PMI")).Once()
	s.repo.On("CreateDestination", mock.Anything, "PMI", "Palma de Mallorca").
		Return(&models.Destination{ID: 1, AirportCode: "PMI", Name: "Palma de Mallorca"}, nil).Once()
	s.repo.On("GetDestinationByCode", mock.Anything, "ARN").
		Return(&models.Destination{ID: 2, AirportCode: "ARN", Name: "Stockholm"}, nil).Once()
	s.repo.On("UpdateDestinationName", mock.Anything, int64(2), "Stockholm Arlanda").Return(nil).Once()
	s.cache.On("Del", mock.Anything, "destinations:all").Return(nil).Once()

	s.repo.On("FindActiveTargetDate", mock.Anything, day("2026-04-18"), day("2026-04-21")).Return(nil, nil).Once()
	s.repo.On("CreateTargetDate", mock.Anything,
		models.TargetDateInput{Name: "Easter", OutboundDate: day("2026-04-18"), ReturnDate: day("2026-04-21")},
		[]int64{1, 2}).
		Return(&models.TargetDate{ID: 10, Name: "Easter"}, nil).Once()
	s.repo.On("FindActiveTargetDate", mock.Anything, day("2026-07-01"), day("2026-07-10")).
		Return(&models.TargetDate{ID: 11, Name: "Sommer"}, nil).Once()
	s.repo.On("RenameTargetDate", mock.Anything, int64(11), "Summer").Return(nil).Once()

	s.Require().NoError(s.svc.SyncFromConfig(context.Background(), cfg))
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetAssociatedDestinations_MissingRange() {
	s.repo.On("GetTargetDate", mock.Anything, int64(3)).Return(nil, models.NotFoundf("target date 3")).Once()

	_, err := s.svc.GetAssociatedDestinations(context.Background(), 3)
	s.Require().ErrorIs(err, models.ErrNotFound)
	s.repo.AssertNotCalled(s.T(), "ListTargetDateDestinations", mock.Anything, mock.Anything)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
