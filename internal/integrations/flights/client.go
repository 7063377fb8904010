package flights

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Option struct {
	Price         decimal.Decimal
	Currency      string
	DepartureTime time.Time
	ArrivalTime   time.Time
	Airline       string
	Stops         int
	BookingURL    *string
}

// SearchResult is a provider answer. Provider-side failures are reported with
// Success=false and ErrorMessage; transport failures are returned as errors.
type SearchResult struct {
	Success      bool
	ErrorMessage string
	Options      []Option
}

type Client interface {
	SearchFlights(ctx context.Context, origin, destination string, outbound, ret time.Time) (SearchResult, error)
}

// Cheapest returns the option with the strictly lowest price. On equal prices
// the first one in provider order wins.
func Cheapest(opts []Option) (Option, bool) {
	if len(opts) == 0 {
		return Option{}, false
	}
	best := opts[0]
	for _, o := range opts[1:] {
		if o.Price.LessThan(best.Price) {
			best = o
		}
	}
	return best, true
}
