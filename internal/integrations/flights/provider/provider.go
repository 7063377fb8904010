package provider

import (
	"strings"

	"github.com/BearBump/FareBox/config"
	"github.com/BearBump/FareBox/internal/integrations/flights"
	"github.com/BearBump/FareBox/internal/integrations/flights/bookingcom"
	"github.com/BearBump/FareBox/internal/integrations/flights/mock"
)

const (
	TypeMock       = "mock"
	TypeBookingCom = "bookingcom"
)

// New picks the flight search client for cfg.ProviderType.
// Without an API key the live provider falls back to the mock.
func New(cfg config.FareBoxConfig) (flights.Client, string) {
	switch strings.ToLower(strings.TrimSpace(cfg.ProviderType)) {
	case TypeBookingCom:
		if cfg.ProviderAPIKey != "" {
			return bookingcom.New(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderAPIHost), TypeBookingCom
		}
	}
	return mock.New(), TypeMock
}
