package api

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/sksmith/stock-ledger/core/inventory"
)

type ReserveItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

type ReserveOrderRequest struct {
	Items []ReserveItem `json:"items"`
}

func (o *ReserveOrderRequest) Bind(_ *http.Request) error {
	if len(o.Items) == 0 {
		return errors.New("at least one item is required")
	}

	seen := make(map[int64]bool, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID < 1 {
			return errors.Errorf("invalid product id %d", item.ProductID)
		}
		if item.Quantity < 1 {
			return errors.Errorf("quantity for product %d must be greater than zero", item.ProductID)
		}
		if seen[item.ProductID] {
			return errors.Errorf("product %d is listed more than once", item.ProductID)
		}
		seen[item.ProductID] = true
	}
	return nil
}

func (o *ReserveOrderRequest) Quantities() map[int64]int64 {
	quantities := make(map[int64]int64, len(o.Items))
	for _, item := range o.Items {
		quantities[item.ProductID] = item.Quantity
	}
	return quantities
}

type OrderStatus string

const (
	OrderReserved  OrderStatus = "reserved"
	OrderConfirmed OrderStatus = "confirmed"
	OrderReleased  OrderStatus = "released"
)

type OrderReservationResponse struct {
	OrderID      string                  `json:"orderId"`
	Status       OrderStatus             `json:"status"`
	Reservations []inventory.Reservation `json:"reservations,omitempty"`
}

func NewOrderReservationResponse(orderID string, status OrderStatus, reservations []inventory.Reservation) *OrderReservationResponse {
	return &OrderReservationResponse{OrderID: orderID, Status: status, Reservations: reservations}
}

func (o *OrderReservationResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}
