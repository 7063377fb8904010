package messages

import "time"

// PriceChecked is published after a price check row is stored.
type PriceChecked struct {
	PriceCheckID    int64     `json:"price_check_id"`
	TargetDateID    int64     `json:"target_date_id"`
	DestinationID   int64     `json:"destination_id"`
	Origin          string    `json:"origin"`
	DestinationCode string    `json:"destination_code"`
	CheckedAt       time.Time `json:"checked_at"`

	Price    string `json:"price"`
	Currency string `json:"currency"`
	Airline  string `json:"airline"`
	Stops    int    `json:"stops"`
}
