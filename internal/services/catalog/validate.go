package catalog

import (
	"strings"
	"time"

	"github.com/BearBump/FareBox/internal/models"
)

func validateDateRange(name string, outbound, ret time.Time, destinationIDs []int64) (models.TargetDateInput, []int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.TargetDateInput{}, nil, models.Validationf("name is required")
	}

	out := models.DateOnly(outbound)
	back := models.DateOnly(ret)
	if !back.After(out) {
		return models.TargetDateInput{}, nil, models.Validationf("return date %s must be after outbound date %s",
			back.Format(models.DateLayout), out.Format(models.DateLayout))
	}

	ids := models.UniqueIDs(destinationIDs)
	if len(ids) == 0 {
		return models.TargetDateInput{}, nil, models.Validationf("at least one destination must be selected")
	}
	for _, id := range ids {
		if id <= 0 {
			return models.TargetDateInput{}, nil, models.Validationf("invalid destination id %d", id)
		}
	}

	return models.TargetDateInput{Name: name, OutboundDate: out, ReturnDate: back}, ids, nil
}
