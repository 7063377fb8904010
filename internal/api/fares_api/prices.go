package fares_api

import (
	"net/http"

	"github.com/BearBump/FareBox/internal/models"
	"github.com/shopspring/decimal"
)

const defaultHistoryDays = 30

// priceCheckView renders prices with their two stored decimals.
type priceCheckView struct {
	*models.PriceCheck
	Price string `json:"price"`
}

func toPriceView(pc *models.PriceCheck) *priceCheckView {
	if pc == nil {
		return nil
	}
	return &priceCheckView{PriceCheck: pc, Price: pc.Price.StringFixed(2)}
}

func fixed(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

type latestPriceView struct {
	Destination *models.Destination `json:"destination"`
	Latest      *priceCheckView     `json:"latest"`
	ChangePct   *string             `json:"changePct,omitempty"`
}

func (a *FaresAPI) latestPrices(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()

	dests, err := a.catalog.GetAssociatedDestinations(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	latest, err := a.history.LatestPerDestination(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	byDest := make(map[int64]*models.PriceCheck, len(latest))
	for _, pc := range latest {
		byDest[pc.DestinationID] = pc
	}

	out := make([]latestPriceView, 0, len(dests))
	for _, d := range dests {
		pc, ok := byDest[d.ID]
		if !ok {
			continue
		}
		v := latestPriceView{Destination: d, Latest: toPriceView(pc)}
		if change, err := a.history.PriceChange(ctx, id, d.ID); err == nil {
			v.ChangePct = fixed(change)
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

type historyView struct {
	TargetDateID  int64             `json:"targetDateId"`
	DestinationID int64             `json:"destinationId"`
	Days          int               `json:"days"`
	Checks        []*priceCheckView `json:"checks"`
	Lowest        *priceCheckView   `json:"lowest,omitempty"`
	Average       *string           `json:"average,omitempty"`
	ChangePct     *string           `json:"changePct,omitempty"`
}

func (a *FaresAPI) priceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	destID, err := pathID(r, "destinationId")
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := intQuery(r, "days", defaultHistoryDays)
	if err != nil {
		writeError(w, err)
		return
	}
	if days == 0 {
		days = defaultHistoryDays
	}
	ctx := r.Context()

	checks, err := a.history.HistoryForDays(ctx, id, destID, days)
	if err != nil {
		writeError(w, err)
		return
	}
	lowest, err := a.history.Lowest(ctx, id, destID, days)
	if err != nil {
		writeError(w, err)
		return
	}
	avg, err := a.history.Average(ctx, id, destID, days)
	if err != nil {
		writeError(w, err)
		return
	}
	change, err := a.history.PriceChange(ctx, id, destID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := historyView{
		TargetDateID:  id,
		DestinationID: destID,
		Days:          days,
		Checks:        make([]*priceCheckView, 0, len(checks)),
		Lowest:        toPriceView(lowest),
		Average:       fixed(avg),
		ChangePct:     fixed(change),
	}
	for _, pc := range checks {
		out.Checks = append(out.Checks, toPriceView(pc))
	}
	writeJSON(w, http.StatusOK, out)
}
