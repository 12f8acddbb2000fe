// Package catalog is the narrow view of the product catalog that the stock ledger depends on. The catalog is
// owned elsewhere; the ledger only ever looks products up, and the bulk update path creates missing ones.
package catalog

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Status string

const (
	Active       Status = "ACTIVE"
	Inactive     Status = "INACTIVE"
	Discontinued Status = "DISCONTINUED"
	None         Status = ""
)

func ParseStatus(v string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(v))) {
	case Active:
		return Active, nil
	case Inactive:
		return Inactive, nil
	case Discontinued:
		return Discontinued, nil
	case None:
		return None, nil
	default:
		return None, errors.Errorf("invalid product status %q", v)
	}
}

// Product is a value object. Only the fields the ledger needs to create a product on the fly are carried.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Status      Status          `json:"status"`
	Price       decimal.Decimal `json:"price"`
}

// WithDefaults fills the fields a newly created product must not leave empty.
func (p Product) WithDefaults() Product {
	if p.Status == None {
		p.Status = Active
	}
	return p
}
