package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sksmith/stock-ledger/api"
	"github.com/sksmith/stock-ledger/config"
	"github.com/sksmith/stock-ledger/testutil"
)

var admin = testutil.RequestOptions{Username: "admin", Password: "integration-pass"}

func TestMain(m *testing.M) {
	testutil.ConfigLogging()
	os.Exit(m.Run())
}

type harness struct {
	*httptest.Server
	app *application
}

func (h *harness) url(format string, args ...interface{}) string {
	return h.URL + api.ApiPath + fmt.Sprintf(format, args...)
}

func newHarness(t *testing.T) *harness {
	cfg := config.LoadDefaults()
	cfg.Db.InMemory = true
	cfg.RabbitMQ.Mock = true
	cfg.Queue.Kind = config.QueueRabbitMQ
	cfg.Admin.Username = admin.Username
	cfg.Admin.Password = admin.Password
	cfg.Bulk.Workers = 2
	cfg.Bulk.QueueSize = 10

	app, err := newApplication(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to build application: %v", err)
	}
	h := &harness{Server: httptest.NewServer(app.router), app: app}
	t.Cleanup(func() {
		h.Close()
		if err := app.close(context.Background()); err != nil {
			t.Errorf("failed to close application: %v", err)
		}
	})
	return h
}

func (h *harness) findStock(name string, t *testing.T) api.StockResponse {
	t.Helper()
	res := testutil.Get(h.url("/stock?search=%s", name), t, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status code got=%d want=%d", res.StatusCode, http.StatusOK)
	}
	var got []api.StockResponse
	testutil.Unmarshal(res, &got, t)
	if len(got) != 1 {
		t.Fatalf("stock for %s got=%d records want=1", name, len(got))
	}
	return got[0]
}

func (h *harness) getStock(productID int64, t *testing.T) api.StockResponse {
	t.Helper()
	res := testutil.Get(h.url("/stock/%d", productID), t, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status code got=%d want=%d", res.StatusCode, http.StatusOK)
	}
	got := api.StockResponse{}
	testutil.Unmarshal(res, &got, t)
	return got
}

func TestOrderLifecycle(t *testing.T) {
	h := newHarness(t)

	res := testutil.Upload(h.url("/stock/upload"), "stock.csv",
		[]byte("product_name,category,quantity\nbolt,hardware,10\nnut,hardware,5\n"), t, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload status code got=%d want=%d", res.StatusCode, http.StatusOK)
	}

	bolt := h.findStock("bolt", t)
	nut := h.findStock("nut", t)
	if bolt.TotalQuantity != 10 || nut.TotalQuantity != 5 {
		t.Fatalf("unexpected stock bolt=%+v nut=%+v", bolt, nut)
	}

	order := api.ReserveOrderRequest{Items: []api.ReserveItem{
		{ProductID: bolt.ProductID, Quantity: 4},
		{ProductID: nut.ProductID, Quantity: 5},
	}}
	res = testutil.Put(h.url("/order/o-1/reservation"), order, t, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("reserve status code got=%d want=%d", res.StatusCode, http.StatusCreated)
	}

	if got := h.getStock(bolt.ProductID, t); got.TotalReserved != 4 || got.Available != 6 {
		t.Errorf("reserved bolt got=%+v", got)
	}

	over := api.ReserveOrderRequest{Items: []api.ReserveItem{{ProductID: nut.ProductID, Quantity: 1}}}
	res = testutil.Put(h.url("/order/o-2/reservation"), over, t, admin)
	if res.StatusCode != http.StatusConflict {
		t.Errorf("oversell status code got=%d want=%d", res.StatusCode, http.StatusConflict)
	}

	res = testutil.Post(h.url("/order/o-1/reservation/confirm"), nil, t, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm status code got=%d want=%d", res.StatusCode, http.StatusOK)
	}

	if got := h.getStock(bolt.ProductID, t); got.TotalQuantity != 6 || got.TotalReserved != 0 {
		t.Errorf("confirmed bolt got=%+v", got)
	}
	if got := h.getStock(nut.ProductID, t); got.TotalQuantity != 0 || got.Available != 0 {
		t.Errorf("confirmed nut got=%+v", got)
	}

	res = testutil.Get(h.url("/order/o-1/reservation"), t, admin)
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("resolved order status code got=%d want=%d", res.StatusCode, http.StatusNotFound)
	}
}

func TestExpiredReservationsAreReleased(t *testing.T) {
	h := newHarness(t)

	res := testutil.Upload(h.url("/stock/upload"), "stock.csv", []byte("product_name,quantity\nwasher,8\n"), t, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload status code got=%d want=%d", res.StatusCode, http.StatusOK)
	}
	washer := h.findStock("washer", t)

	order := api.ReserveOrderRequest{Items: []api.ReserveItem{{ProductID: washer.ProductID, Quantity: 3}}}
	res = testutil.Put(h.url("/order/o-9/reservation"), order, t, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("reserve status code got=%d want=%d", res.StatusCode, http.StatusCreated)
	}

	released, err := h.app.reservations.SweepExpired(context.Background(), time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected sweep error: %v", err)
	}
	if released != 1 {
		t.Errorf("released got=%d want=1", released)
	}

	if got := h.getStock(washer.ProductID, t); got.TotalQuantity != 8 || got.TotalReserved != 0 {
		t.Errorf("swept washer got=%+v", got)
	}
}

func TestAdminIsCreatedOnce(t *testing.T) {
	h := newHarness(t)

	if err := ensureAdmin(context.Background(), h.app.users, config.AdminConfig{Username: admin.Username, Password: admin.Password}); err != nil {
		t.Errorf("unexpected error creating an existing admin: %v", err)
	}

	u, err := h.app.users.Login(context.Background(), admin.Username, admin.Password)
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if !u.IsAdmin {
		t.Errorf("bootstrap user is not an admin")
	}

	res := testutil.Get(h.url("/stock"), t, testutil.RequestOptions{Username: admin.Username, Password: "wrong-password"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("status code got=%d want=%d", res.StatusCode, http.StatusUnauthorized)
	}
}
