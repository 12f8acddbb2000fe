package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core/bulk"
	"github.com/sksmith/stock-ledger/core/inventory"
)

type StockResponse struct {
	inventory.StockRecord
	Available int64 `json:"available"`
}

func NewStockResponse(stock inventory.StockRecord) *StockResponse {
	return &StockResponse{StockRecord: stock, Available: stock.Available()}
}

func (s *StockResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func NewStockListResponse(stock []inventory.StockRecord) []render.Renderer {
	list := make([]render.Renderer, 0)
	for _, s := range stock {
		list = append(list, NewStockResponse(s))
	}
	return list
}

type SummaryResponse struct {
	inventory.StockSummary
}

func (s *SummaryResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type AvailabilityResponse struct {
	ProductID   int64 `json:"productId"`
	Available   int64 `json:"available"`
	Requested   int64 `json:"requested,omitempty"`
	IsAvailable bool  `json:"isAvailable"`
}

func (a *AvailabilityResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

type QuantityRequest struct {
	Quantity *int64 `json:"quantity"`
}

func (q *QuantityRequest) Bind(_ *http.Request) error {
	if q.Quantity == nil {
		return errors.New("quantity is required")
	}
	if *q.Quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	return nil
}

type UploadResponse struct {
	bulk.Result
	Failures []string `json:"failures"`
}

func NewUploadResponse(result bulk.Result, batchErr *bulk.BatchError) *UploadResponse {
	resp := &UploadResponse{Result: result, Failures: make([]string, 0, batchErr.Failed)}
	for _, f := range batchErr.Failures() {
		resp.Failures = append(resp.Failures, f.Error())
	}
	return resp
}

func (u *UploadResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
