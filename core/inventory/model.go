// Package inventory is the stock ledger. It keeps one StockRecord per product, tracking how many units exist
// and how many are promised to in-flight orders, and the pending Reservations that make up the promise.
package inventory

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core"
)

// StockRecord is an entity. Invariant after every committed change: 0 <= TotalReserved <= TotalQuantity.
type StockRecord struct {
	ID            string    `json:"id"`
	ProductID     int64     `json:"productId"`
	TotalQuantity int64     `json:"totalQuantity"`
	TotalReserved int64     `json:"totalReserved"`
	Version       int64     `json:"version"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

// Available is the sellable remainder.
func (s StockRecord) Available() int64 {
	return s.TotalQuantity - s.TotalReserved
}

func (s *StockRecord) reserve(quantity int64) error {
	if quantity > s.Available() {
		return errors.Wrapf(core.ErrInsufficientStock, "available: %d, requested: %d", s.Available(), quantity)
	}
	s.TotalReserved += quantity
	return nil
}

// release never drives reserved below zero, so compensating releases stay idempotent.
func (s *StockRecord) release(quantity int64) {
	s.TotalReserved -= quantity
	if s.TotalReserved < 0 {
		s.TotalReserved = 0
	}
}

func (s *StockRecord) fulfill(quantity int64) error {
	if quantity > s.TotalReserved {
		return errors.Wrapf(core.ErrInvalidState, "cannot fulfill %d, only %d reserved", quantity, s.TotalReserved)
	}
	s.TotalReserved -= quantity
	s.TotalQuantity -= quantity
	return nil
}

func (s *StockRecord) add(quantity int64) error {
	if quantity > math.MaxInt64-s.TotalQuantity {
		return errors.Wrapf(core.ErrInvalidArgument, "adding %d to %d would overflow the total", quantity, s.TotalQuantity)
	}
	s.TotalQuantity += quantity
	return nil
}

func (s *StockRecord) setQuantity(quantity int64) error {
	if quantity < 0 {
		return errors.Wrap(core.ErrInvalidArgument, "quantity cannot be negative")
	}
	if quantity < s.TotalReserved {
		return errors.Wrapf(core.ErrInvalidState, "quantity %d is less than the %d currently reserved", quantity, s.TotalReserved)
	}
	s.TotalQuantity = quantity
	return nil
}

// Reservation is an entity. A timed hold of Quantity units of one product for one order. Reservations are
// never updated; confirmation, release and expiry all end in deletion.
type Reservation struct {
	ID        string    `json:"id"`
	ProductID int64     `json:"productId"`
	Quantity  int64     `json:"quantity"`
	OrderID   string    `json:"orderId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Created   time.Time `json:"created"`
}

func (r Reservation) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

type ReservationOutcome string

const (
	Reserved  ReservationOutcome = "created"
	Confirmed ReservationOutcome = "confirmed"
	Released  ReservationOutcome = "released"
	Expired   ReservationOutcome = "expired"
)

// ReservationEvent is published whenever a reservation is created or resolved.
type ReservationEvent struct {
	Reservation
	Outcome ReservationOutcome `json:"outcome"`
	At      time.Time          `json:"at"`
}

type StockLevel string

const (
	AllLevels   StockLevel = ""
	LowLevel    StockLevel = "low"
	OutLevel    StockLevel = "out"
	NormalLevel StockLevel = "normal"
)

// LowStockCeiling is the highest available quantity still considered low when listing by level.
const LowStockCeiling = 4

func ParseStockLevel(v string) (StockLevel, error) {
	switch StockLevel(strings.ToLower(v)) {
	case AllLevels, "all":
		return AllLevels, nil
	case LowLevel:
		return LowLevel, nil
	case OutLevel:
		return OutLevel, nil
	case NormalLevel:
		return NormalLevel, nil
	default:
		return AllLevels, errors.Wrapf(core.ErrInvalidArgument, "invalid stock level %q", v)
	}
}

type StockFilter struct {
	// Search matches product name (case insensitive) or category.
	Search string
	Level  StockLevel
}

type StockSummary struct {
	Total     int64 `json:"total"`
	Low       int64 `json:"low"`
	OutOf     int64 `json:"outOfStock"`
	InStock   int64 `json:"inStock"`
	Threshold int64 `json:"threshold"`
}
