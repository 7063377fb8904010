package fares_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/FareBox/internal/models"
	"github.com/BearBump/FareBox/internal/services/pricecheck"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Catalog interface {
	SearchDestinations(ctx context.Context, query string, limit int) ([]*models.Destination, error)
	ListActive(ctx context.Context) ([]*models.TargetDate, error)
	ListDeleted(ctx context.Context) ([]*models.TargetDate, error)
	ListAll(ctx context.Context) ([]*models.TargetDate, error)
	ListUpcoming(ctx context.Context) ([]*models.TargetDate, error)
	GetDateRange(ctx context.Context, id int64) (*models.TargetDate, error)
	CreateDateRange(ctx context.Context, name string, outbound, ret time.Time, destinationIDs []int64) (*models.TargetDate, error)
	UpdateDateRange(ctx context.Context, id int64, name string, outbound, ret time.Time, destinationIDs []int64) (*models.TargetDate, error)
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	GetAssociatedDestinations(ctx context.Context, targetDateID int64) ([]*models.Destination, error)
}

type History interface {
	LatestPerDestination(ctx context.Context, targetDateID int64) ([]*models.PriceCheck, error)
	HistoryForDays(ctx context.Context, targetDateID, destinationID int64, daysBack int) ([]*models.PriceCheck, error)
	PriceChange(ctx context.Context, targetDateID, destinationID int64) (*decimal.Decimal, error)
	Lowest(ctx context.Context, targetDateID, destinationID int64, daysBack int) (*models.PriceCheck, error)
	Average(ctx context.Context, targetDateID, destinationID int64, daysBack int) (*decimal.Decimal, error)
}

type PriceChecker interface {
	CheckDateRangeOnDemand(ctx context.Context, origin string, targetDateID int64, maxAgeHours int) (pricecheck.OnDemandResult, error)
}

type FaresAPI struct {
	catalog Catalog
	history History
	checker PriceChecker
	origin  string

	defaultMaxAgeHours int
}

func New(catalog Catalog, history History, checker PriceChecker, origin string) *FaresAPI {
	return &FaresAPI{
		catalog:            catalog,
		history:            history,
		checker:            checker,
		origin:             origin,
		defaultMaxAgeHours: pricecheck.DefaultMaxAgeHours,
	}
}

func (a *FaresAPI) WithDefaultMaxAgeHours(h int) *FaresAPI {
	if h > 0 {
		a.defaultMaxAgeHours = h
	}
	return a
}

// Routes mounts the v1 API on r.
func (a *FaresAPI) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/destinations", a.searchDestinations)

		r.Route("/target-dates", func(r chi.Router) {
			r.Get("/", a.listTargetDates)
			r.Post("/", a.createTargetDate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getTargetDate)
				r.Put("/", a.updateTargetDate)
				r.Delete("/", a.deleteTargetDate)
				r.Post("/restore", a.restoreTargetDate)
				r.Get("/destinations", a.listTargetDateDestinations)
				r.Get("/prices", a.latestPrices)
				r.Post("/check", a.checkNow)
				r.Get("/destinations/{destinationId}/history", a.priceHistory)
			})
		})
	})
}

type targetDateRequest struct {
	Name           string  `json:"name"`
	OutboundDate   string  `json:"outboundDate"`
	ReturnDate     string  `json:"returnDate"`
	DestinationIDs []int64 `json:"destinationIds"`
}

func (req targetDateRequest) dates() (time.Time, time.Time, error) {
	out, err := models.ParseDate(req.OutboundDate)
	if err != nil {
		return time.Time{}, time.Time{}, models.Validationf("outboundDate must be YYYY-MM-DD, got %q", req.OutboundDate)
	}
	ret, err := models.ParseDate(req.ReturnDate)
	if err != nil {
		return time.Time{}, time.Time{}, models.Validationf("returnDate must be YYYY-MM-DD, got %q", req.ReturnDate)
	}
	return out, ret, nil
}

func (a *FaresAPI) searchDestinations(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.catalog.SearchDestinations(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *FaresAPI) listTargetDates(w http.ResponseWriter, r *http.Request) {
	var (
		out []*models.TargetDate
		err error
	)
	switch state := r.URL.Query().Get("state"); state {
	case "", "active":
		out, err = a.catalog.ListActive(r.Context())
	case "deleted":
		out, err = a.catalog.ListDeleted(r.Context())
	case "all":
		out, err = a.catalog.ListAll(r.Context())
	case "upcoming":
		out, err = a.catalog.ListUpcoming(r.Context())
	default:
		err = models.Validationf("unknown state %q", state)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *FaresAPI) createTargetDate(w http.ResponseWriter, r *http.Request) {
	var req targetDateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, ret, err := req.dates()
	if err != nil {
		writeError(w, err)
		return
	}
	td, err := a.catalog.CreateDateRange(r.Context(), req.Name, out, ret, req.DestinationIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, td)
}

func (a *FaresAPI) getTargetDate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	td, err := a.catalog.GetDateRange(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, td)
}

func (a *FaresAPI) updateTargetDate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req targetDateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, ret, err := req.dates()
	if err != nil {
		writeError(w, err)
		return
	}
	td, err := a.catalog.UpdateDateRange(r.Context(), id, req.Name, out, ret, req.DestinationIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, td)
}

func (a *FaresAPI) deleteTargetDate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.catalog.SoftDelete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *FaresAPI) restoreTargetDate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.catalog.Restore(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	td, err := a.catalog.GetDateRange(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, td)
}

func (a *FaresAPI) listTargetDateDestinations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.catalog.GetAssociatedDestinations(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *FaresAPI) checkNow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	maxAge, err := intQuery(r, "maxAgeHours", a.defaultMaxAgeHours)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := a.checker.CheckDateRangeOnDemand(r.Context(), a.origin, id, maxAge)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return models.Validationf("invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, models.Validationf("invalid %s %q", name, raw)
	}
	return v, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
