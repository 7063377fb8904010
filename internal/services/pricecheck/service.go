package pricecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FareBox/internal/broker/messages"
	"github.com/BearBump/FareBox/internal/integrations/flights"
	"github.com/BearBump/FareBox/internal/models"
	"github.com/pkg/errors"
)

const (
	DefaultInterCallDelay = 2 * time.Second
	DefaultMaxAgeHours    = 6

	rateLimitBackoff = 500 * time.Millisecond
)

type Catalog interface {
	ListUpcoming(ctx context.Context) ([]*models.TargetDate, error)
	GetActiveDateRange(ctx context.Context, id int64) (*models.TargetDate, error)
	GetAssociatedDestinations(ctx context.Context, targetDateID int64) ([]*models.Destination, error)
	FindDestinationByCode(ctx context.Context, code string) (*models.Destination, error)
	FindActiveByDates(ctx context.Context, outbound, ret time.Time) (*models.TargetDate, error)
}

type History interface {
	Append(ctx context.Context, pc *models.PriceCheck) error
	RecentWithin(ctx context.Context, targetDateID, destinationID int64, maxAgeHours int) (*models.PriceCheck, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Service struct {
	catalog  Catalog
	history  History
	client   flights.Client
	producer Producer
	rl       RateLimiter

	topic              string
	providerName       string
	interCallDelay     time.Duration
	rateLimitPerMinute int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	totalSweeps   atomic.Int64
	totalFetched  atomic.Int64
	totalSaved    atomic.Int64
	totalCached   atomic.Int64
	totalFailures atomic.Int64
	lastSweepNano atomic.Int64
	lastErrorMu   sync.Mutex
	lastError     string
}

func New(catalog Catalog, history History, client flights.Client, producer Producer, rl RateLimiter, topic string) *Service {
	return &Service{
		catalog:        catalog,
		history:        history,
		client:         client,
		producer:       producer,
		rl:             rl,
		topic:          topic,
		providerName:   "default",
		interCallDelay: DefaultInterCallDelay,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

func (s *Service) WithSettings(interCallDelay time.Duration, rlPerMin int64) *Service {
	if interCallDelay > 0 {
		s.interCallDelay = interCallDelay
	}
	if rlPerMin > 0 {
		s.rateLimitPerMinute = rlPerMin
	}
	return s
}

// WithProviderName names the rate limiter window of the quote source.
func (s *Service) WithProviderName(name string) *Service {
	if name != "" {
		s.providerName = name
	}
	return s
}

// FetchAndSave queries the quote source for one route and stores the cheapest
// option. It returns nil without error when the source has nothing to offer or
// the quote cannot be attributed to a tracked route.
func (s *Service) FetchAndSave(ctx context.Context, origin, destinationCode string, outbound, ret time.Time) (*models.PriceCheck, error) {
	best, ok, err := s.searchCheapest(ctx, origin, destinationCode, outbound, ret)
	if err != nil || !ok {
		return nil, err
	}

	dest, err := s.catalog.FindDestinationByCode(ctx, destinationCode)
	if errors.Is(err, models.ErrNotFound) {
		slog.Warn("destination not tracked, quote dropped", "code", destinationCode)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	td, err := s.catalog.FindActiveByDates(ctx, outbound, ret)
	if err != nil {
		return nil, err
	}
	if td == nil {
		slog.Warn("date range not tracked, quote dropped",
			"outbound", outbound.Format(models.DateLayout),
			"return", ret.Format(models.DateLayout),
		)
		return nil, nil
	}

	return s.save(ctx, origin, dest, td, best)
}

func (s *Service) fetchAndSave(ctx context.Context, origin string, dest *models.Destination, td *models.TargetDate) (*models.PriceCheck, error) {
	best, ok, err := s.searchCheapest(ctx, origin, dest.AirportCode, td.OutboundDate, td.ReturnDate)
	if err != nil || !ok {
		return nil, err
	}
	return s.save(ctx, origin, dest, td, best)
}

// searchCheapest reports ok=false when the source answered without a usable option.
func (s *Service) searchCheapest(ctx context.Context, origin, destinationCode string, outbound, ret time.Time) (flights.Option, bool, error) {
	if err := s.waitRateLimit(ctx); err != nil {
		return flights.Option{}, false, err
	}

	s.totalFetched.Add(1)
	res, err := s.client.SearchFlights(ctx, origin, destinationCode, outbound, ret)
	if err != nil {
		return flights.Option{}, false, fmt.Errorf("search %s-%s: %w: %w", origin, destinationCode, models.ErrProvider, err)
	}
	if !res.Success {
		slog.Warn("flight search failed", "origin", origin, "destination", destinationCode, "reason", res.ErrorMessage)
		return flights.Option{}, false, nil
	}

	best, ok := flights.Cheapest(res.Options)
	if !ok {
		slog.Warn("no flights found", "origin", origin, "destination", destinationCode,
			"outbound", outbound.Format(models.DateLayout))
		return flights.Option{}, false, nil
	}
	return best, true, nil
}

func (s *Service) save(ctx context.Context, origin string, dest *models.Destination, td *models.TargetDate, best flights.Option) (*models.PriceCheck, error) {
	pc := &models.PriceCheck{
		TargetDateID:   td.ID,
		DestinationID:  dest.ID,
		CheckTimestamp: s.now().UTC(),
		Price:          models.RoundPrice(best.Price),
		Currency:       best.Currency,
		DepartureTime:  models.ClockOf(best.DepartureTime),
		ArrivalTime:    models.ClockOf(best.ArrivalTime),
		Airline:        best.Airline,
		Stops:          best.Stops,
		BookingURL:     best.BookingURL,
	}
	if err := s.history.Append(ctx, pc); err != nil {
		return nil, models.Persistence(err, "save price check")
	}
	s.totalSaved.Add(1)

	slog.Info("price check saved",
		"origin", origin,
		"destination", dest.AirportCode,
		"target_date_id", td.ID,
		"price", pc.Price.StringFixed(2),
		"currency", pc.Currency,
		"airline", pc.Airline,
	)

	s.publish(ctx, origin, dest, pc)
	return pc, nil
}

func (s *Service) waitRateLimit(ctx context.Context) error {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return nil
	}
	key := fmt.Sprintf("rl:provider:%s:%s", s.providerName, s.now().UTC().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, key, s.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		// Лимитер недоступен: не блокируем проверку цен.
		slog.Warn("rate limiter unavailable", "err", err)
		return nil
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "provider", s.providerName, "count", n)
		return s.sleep(ctx, rateLimitBackoff)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, origin string, dest *models.Destination, pc *models.PriceCheck) {
	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.PriceChecked{
		PriceCheckID:    pc.ID,
		TargetDateID:    pc.TargetDateID,
		DestinationID:   pc.DestinationID,
		Origin:          origin,
		DestinationCode: dest.AirportCode,
		CheckedAt:       pc.CheckTimestamp,
		Price:           pc.Price.StringFixed(2),
		Currency:        pc.Currency,
		Airline:         pc.Airline,
		Stops:           pc.Stops,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal price checked", "err", err)
		return
	}
	key := []byte(fmt.Sprintf("%d:%d", pc.TargetDateID, pc.DestinationID))
	if err := s.producer.Publish(ctx, s.topic, key, b); err != nil {
		slog.Warn("publish price checked failed", "price_check_id", pc.ID, "err", err)
	}
}

func (s *Service) recordFailure(err error) {
	s.totalFailures.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
