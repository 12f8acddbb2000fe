package bulk

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/catalog"
)

const (
	colProductName = "product_name"
	colQuantity    = "quantity"
	colCategory    = "category"
	colDescription = "description"
	colStatus      = "status"
	colPrice       = "price"
)

// ReadCSV reads stock update records from a CSV with a header row. Columns are matched by name and may come
// in any order; product_name and quantity are required. A value that cannot be parsed does not fail the
// whole file, it only makes that record invalid.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(core.ErrInvalidArgument, "file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(core.ErrInvalidArgument, err.Error())
	}

	columns := make(map[string]int)
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{colProductName, colQuantity} {
		if _, ok := columns[required]; !ok {
			return nil, errors.Wrapf(core.ErrInvalidArgument, "missing required column %s", required)
		}
	}

	records := make([]Record, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(core.ErrInvalidArgument, err.Error())
		}
		line, _ := reader.FieldPos(0)
		if blank(row) {
			continue
		}

		get := func(col string) string {
			i, ok := columns[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := Record{
			Line:        line,
			ProductName: get(colProductName),
			Category:    get(colCategory),
			Description: get(colDescription),
		}

		if v := get(colQuantity); v != "" {
			if q, err := strconv.ParseInt(v, 10, 64); err == nil {
				rec.Quantity = &q
			}
		}

		if v := get(colStatus); v != "" {
			status, err := catalog.ParseStatus(v)
			if err != nil {
				rec.parseErr = err
			}
			rec.Status = status
		}

		if v := get(colPrice); v != "" {
			price, err := decimal.NewFromString(v)
			if err != nil {
				rec.parseErr = errors.Errorf("invalid price %q", v)
			} else {
				rec.Price = &price
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
