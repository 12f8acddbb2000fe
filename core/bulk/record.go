// Package bulk applies batches of external stock updates. Every record is an independent unit of work with
// its own transaction; a failing record never undoes its siblings.
package bulk

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
)

// Record is one requested stock delta for a product identified by name. Quantity and Price are pointers so
// that absent values can be told apart from zero.
type Record struct {
	Line        int              `json:"line,omitempty"`
	ProductName string           `json:"productName"`
	Quantity    *int64           `json:"quantity"`
	Category    string           `json:"category,omitempty"`
	Description string           `json:"description,omitempty"`
	Status      catalog.Status   `json:"status,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`

	parseErr error
}

func (r Record) String() string {
	if r.Line > 0 {
		return fmt.Sprintf("line %d (%q)", r.Line, r.ProductName)
	}
	return fmt.Sprintf("%q", r.ProductName)
}

func (r Record) Validate() error {
	if r.parseErr != nil {
		return errors.Wrap(core.ErrValidation, r.parseErr.Error())
	}
	if strings.TrimSpace(r.ProductName) == "" {
		return errors.Wrap(core.ErrValidation, "product name is required")
	}
	if r.Quantity == nil {
		return errors.Wrap(core.ErrValidation, "quantity is required")
	}
	if *r.Quantity < 0 {
		return errors.Wrapf(core.ErrValidation, "quantity cannot be negative, got %d", *r.Quantity)
	}
	if _, err := catalog.ParseStatus(string(r.Status)); err != nil {
		return errors.Wrap(core.ErrValidation, err.Error())
	}
	if r.Price != nil && r.Price.IsNegative() {
		return errors.Wrap(core.ErrValidation, "price cannot be negative")
	}
	return nil
}

// Product is the catalog entry created for the record when its product does not exist yet.
func (r Record) Product() catalog.Product {
	p := catalog.Product{
		Name:        strings.TrimSpace(r.ProductName),
		Category:    r.Category,
		Description: r.Description,
		Status:      r.Status,
		Price:       decimal.Zero,
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	return p.WithDefaults()
}
