package bookingcom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/FareBox/internal/integrations/flights"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Client talks to the Booking.com flights API published on RapidAPI.
type Client struct {
	baseURL string
	apiKey  string
	apiHost string
	httpc   *http.Client
}

func New(baseURL, apiKey, apiHost string) *Client {
	if apiHost == "" {
		apiHost = "booking-com15.p.rapidapi.com"
	}
	if baseURL == "" {
		baseURL = "https://" + apiHost
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		apiHost: apiHost,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searchResp struct {
	Data *struct {
		Flights []json.RawMessage `json:"flights"`
	} `json:"data"`
}

type respFlight struct {
	Price *struct {
		Total    json.RawMessage `json:"total"` // number or numeric string
		Currency string          `json:"currency"`
	} `json:"price"`
	Legs     []respLeg `json:"legs"`
	DeepLink string    `json:"deepLink"`
}

type respLeg struct {
	DepartureTime string   `json:"departureTime"`
	ArrivalTime   string   `json:"arrivalTime"`
	Carriers      []string `json:"carriers"`
	Stops         *int     `json:"stops"`
}

func (c *Client) SearchFlights(ctx context.Context, origin, destination string, outbound, ret time.Time) (flights.SearchResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return flights.SearchResult{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/flights/search"

	q := u.Query()
	q.Set("fromId", origin)
	q.Set("toId", destination)
	q.Set("departDate", outbound.Format("2006-01-02"))
	q.Set("returnDate", ret.Format("2006-01-02"))
	q.Set("adults", "1")
	q.Set("cabinClass", "ECONOMY")
	q.Set("currency", "EUR")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return flights.SearchResult{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return flights.SearchResult{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		slog.Error("booking.com request failed", "status", resp.StatusCode, "origin", origin, "destination", destination)
		return flights.SearchResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("booking.com http %d: %s", resp.StatusCode, string(body)),
		}, nil
	}

	var sr searchResp
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return flights.SearchResult{}, errors.Wrap(err, "decode")
	}
	if sr.Data == nil || len(sr.Data.Flights) == 0 {
		return flights.SearchResult{Success: true}, nil
	}

	opts := make([]flights.Option, 0, len(sr.Data.Flights))
	for _, raw := range sr.Data.Flights {
		var f respFlight
		if err := json.Unmarshal(raw, &f); err != nil {
			slog.Warn("skip malformed booking.com flight", "destination", destination, "error", err.Error())
			continue
		}
		o, ok := parseFlight(f)
		if !ok {
			slog.Warn("skip unparsable booking.com flight", "destination", destination)
			continue
		}
		opts = append(opts, o)
	}
	return flights.SearchResult{Success: true, Options: opts}, nil
}

// parseFlight maps the outbound leg; flights without legs, a positive price
// or parseable times are dropped.
func parseFlight(f respFlight) (flights.Option, bool) {
	if len(f.Legs) == 0 || f.Price == nil {
		return flights.Option{}, false
	}
	price, ok := parsePrice(f.Price.Total)
	if !ok {
		return flights.Option{}, false
	}
	leg := f.Legs[0]
	dep, err := time.Parse(time.RFC3339, leg.DepartureTime)
	if err != nil {
		dep, err = time.Parse("2006-01-02T15:04:05", leg.DepartureTime)
		if err != nil {
			return flights.Option{}, false
		}
	}
	arr, err := time.Parse(time.RFC3339, leg.ArrivalTime)
	if err != nil {
		arr, err = time.Parse("2006-01-02T15:04:05", leg.ArrivalTime)
		if err != nil {
			return flights.Option{}, false
		}
	}

	currency := f.Price.Currency
	if currency == "" {
		currency = "EUR"
	}
	airline := "Unknown"
	if len(leg.Carriers) > 0 && leg.Carriers[0] != "" {
		airline = leg.Carriers[0]
	}
	stops := 0
	if leg.Stops != nil {
		stops = *leg.Stops
	}
	link := f.DeepLink
	if link == "" {
		link = "https://www.booking.com/flights/"
	}

	return flights.Option{
		Price:         price,
		Currency:      currency,
		DepartureTime: dep,
		ArrivalTime:   arr,
		Airline:       airline,
		Stops:         stops,
		BookingURL:    &link,
	}, true
}

func parsePrice(raw json.RawMessage) (decimal.Decimal, bool) {
	txt := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if txt == "" || txt == "null" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(txt)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
