package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// ClockFromMicros converts microseconds since midnight (postgres TIME).
func ClockFromMicros(us int64) ClockTime {
	m := us / int64(time.Minute/time.Microsecond)
	return ClockTime{Hour: int(m / 60), Minute: int(m % 60)}
}

func (c ClockTime) Micros() int64 {
	return int64(c.Hour*60+c.Minute) * int64(time.Minute/time.Microsecond)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	t, err := time.Parse("15:04", string(b))
	if err != nil {
		return err
	}
	*c = ClockOf(t)
	return nil
}

type PriceCheck struct {
	ID             int64           `json:"id"`
	TargetDateID   int64           `json:"targetDateId"`
	DestinationID  int64           `json:"destinationId"`
	CheckTimestamp time.Time       `json:"checkTimestamp"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	DepartureTime  ClockTime       `json:"departureTime"`
	ArrivalTime    ClockTime       `json:"arrivalTime"`
	Airline        string          `json:"airline"`
	Stops          int             `json:"stops"`
	BookingURL     *string         `json:"bookingUrl,omitempty"`
}

// RoundPrice keeps the two-decimal precision of stored prices.
func RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(2)
}
