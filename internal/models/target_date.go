package models

import (
	"encoding/json"
	"time"
)

type LifecycleState int

const (
	LifecycleActive LifecycleState = iota
	LifecycleDeleted
)

func (s LifecycleState) String() string {
	if s == LifecycleDeleted {
		return "deleted"
	}
	return "active"
}

// Lifecycle is the soft-delete state of a target date: Active, or Deleted at
// DeletedAt. The zero value is Active.
type Lifecycle struct {
	State     LifecycleState
	DeletedAt time.Time
}

func Active() Lifecycle { return Lifecycle{State: LifecycleActive} }

func DeletedAt(at time.Time) Lifecycle {
	return Lifecycle{State: LifecycleDeleted, DeletedAt: at.UTC()}
}

func (l Lifecycle) IsDeleted() bool { return l.State == LifecycleDeleted }

// SoftDelete moves Active -> Deleted. Deleting twice is ErrNotFound.
func (l Lifecycle) SoftDelete(now time.Time) (Lifecycle, error) {
	if l.IsDeleted() {
		return l, NotFoundf("target date already deleted")
	}
	return DeletedAt(now), nil
}

// Restore moves Deleted -> Active. Restoring an active row is ErrNotFound.
func (l Lifecycle) Restore() (Lifecycle, error) {
	if !l.IsDeleted() {
		return l, NotFoundf("target date is not deleted")
	}
	return Active(), nil
}

// DeletedAtPtr is the nullable column value.
func (l Lifecycle) DeletedAtPtr() *time.Time {
	if !l.IsDeleted() {
		return nil
	}
	t := l.DeletedAt
	return &t
}

func LifecycleFromColumns(isDeleted bool, deletedAt *time.Time) Lifecycle {
	if !isDeleted {
		return Active()
	}
	if deletedAt == nil {
		return Lifecycle{State: LifecycleDeleted}
	}
	return DeletedAt(*deletedAt)
}

const DateLayout = "2006-01-02"

type TargetDate struct {
	ID           int64
	Name         string
	OutboundDate time.Time
	ReturnDate   time.Time
	Lifecycle    Lifecycle
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

type targetDateJSON struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	OutboundDate string     `json:"outboundDate"`
	ReturnDate   string     `json:"returnDate"`
	IsDeleted    bool       `json:"isDeleted"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func (t TargetDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(targetDateJSON{
		ID:           t.ID,
		Name:         t.Name,
		OutboundDate: t.OutboundDate.Format(DateLayout),
		ReturnDate:   t.ReturnDate.Format(DateLayout),
		IsDeleted:    t.Lifecycle.IsDeleted(),
		DeletedAt:    t.Lifecycle.DeletedAtPtr(),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	})
}

// TargetDateInput carries the mutable fields of a target date.
type TargetDateInput struct {
	Name         string
	OutboundDate time.Time
	ReturnDate   time.Time
}

// DateOnly drops the clock part, keeping the calendar day of t in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// TargetDateFilter selects which lifecycle states a listing includes.
type TargetDateFilter string

const (
	FilterActive  TargetDateFilter = "active"
	FilterDeleted TargetDateFilter = "deleted"
	FilterAll     TargetDateFilter = "all"
)

func ParseTargetDateFilter(s string) (TargetDateFilter, error) {
	switch TargetDateFilter(s) {
	case "", FilterActive:
		return FilterActive, nil
	case FilterDeleted, FilterAll:
		return TargetDateFilter(s), nil
	}
	return "", Validationf("unknown state filter %q", s)
}
