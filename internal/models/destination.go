package models

import "strings"

type Destination struct {
	ID          int64  `json:"id"`
	AirportCode string `json:"airportCode"`
	Name        string `json:"name"`
}

// NormalizeAirportCode upper-cases and trims an IATA code.
func NormalizeAirportCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidAirportCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
