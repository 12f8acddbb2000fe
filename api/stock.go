package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/stock-ledger/core"
	"github.com/sksmith/stock-ledger/core/bulk"
	"github.com/sksmith/stock-ledger/core/inventory"
)

const (
	CtxKeyProductID CtxKey = "productID"

	maxUploadSize = 10 << 20
)

type StockApi struct {
	service   inventory.Service
	updater   bulk.Updater
	threshold int64
}

func NewStockApi(service inventory.Service, updater bulk.Updater, lowStockThreshold int64) *StockApi {
	return &StockApi{service: service, updater: updater, threshold: lowStockThreshold}
}

func (a *StockApi) ConfigureRouter(r chi.Router) {
	r.With(Paginate).Get("/", a.List)
	r.Get("/summary", a.Summary)
	r.Get("/low", a.Low)
	r.With(AdminOnly).Post("/upload", a.Upload)

	r.Route("/{productID}", func(r chi.Router) {
		r.Use(a.ProductIDCtx)
		r.Get("/", a.Get)
		r.Get("/available", a.Available)

		r.Group(func(r chi.Router) {
			r.Use(AdminOnly)
			r.Put("/", a.Create)
			r.Delete("/", a.Delete)
			r.Post("/reserve", a.mutation(a.service.Reserve))
			r.Post("/release", a.mutation(a.service.Release))
			r.Post("/fulfill", a.mutation(a.service.Fulfill))
			r.Post("/add", a.mutation(a.service.AddStock))
			r.Post("/quantity", a.SetQuantity)
		})
	})
}

func (a *StockApi) ProductIDCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "productID")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id < 1 {
			Render(w, r, ErrInvalidRequest(errors.Errorf("invalid product id %q", idStr)))
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyProductID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *StockApi) List(w http.ResponseWriter, r *http.Request) {
	limit := r.Context().Value(CtxKeyLimit).(int)
	offset := r.Context().Value(CtxKeyOffset).(int)

	level, err := inventory.ParseStockLevel(r.URL.Query().Get("level"))
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}
	filter := inventory.StockFilter{Search: r.URL.Query().Get("search"), Level: level}

	stock, err := a.service.ListStock(r.Context(), filter, limit, offset)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	RenderList(w, r, NewStockListResponse(stock))
}

func (a *StockApi) Summary(w http.ResponseWriter, r *http.Request) {
	threshold, err := a.thresholdParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	summary, err := a.service.Summary(r.Context(), threshold)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	Render(w, r, &SummaryResponse{StockSummary: summary})
}

func (a *StockApi) Low(w http.ResponseWriter, r *http.Request) {
	threshold, err := a.thresholdParam(r)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	stock, err := a.service.LowStock(r.Context(), threshold)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	RenderList(w, r, NewStockListResponse(stock))
}

func (a *StockApi) Get(w http.ResponseWriter, r *http.Request) {
	productID := r.Context().Value(CtxKeyProductID).(int64)

	stock, err := a.service.GetStock(r.Context(), productID)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	Render(w, r, NewStockResponse(stock))
}

func (a *StockApi) Available(w http.ResponseWriter, r *http.Request) {
	productID := r.Context().Value(CtxKeyProductID).(int64)

	available, err := a.service.AvailableQuantity(r.Context(), productID)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	resp := &AvailabilityResponse{ProductID: productID, Available: available}
	if r.URL.Query().Get("quantity") != "" {
		quantity, err := quantityParam(r)
		if err != nil {
			Render(w, r, ErrInvalidRequest(err))
			return
		}
		resp.Requested = quantity
		resp.IsAvailable = quantity <= available
	}

	Render(w, r, resp)
}

func (a *StockApi) Create(w http.ResponseWriter, r *http.Request) {
	productID := r.Context().Value(CtxKeyProductID).(int64)

	data := &QuantityRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	stock, err := a.service.CreateStock(r.Context(), productID, *data.Quantity)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewStockResponse(stock))
}

func (a *StockApi) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID := r.Context().Value(CtxKeyProductID).(int64)

	data := &QuantityRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	stock, err := a.service.SetQuantity(r.Context(), productID, *data.Quantity)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	Render(w, r, NewStockResponse(stock))
}

func (a *StockApi) Delete(w http.ResponseWriter, r *http.Request) {
	productID := r.Context().Value(CtxKeyProductID).(int64)

	if err := a.service.Delete(r.Context(), productID); err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type stockMutation func(ctx context.Context, productID, quantity int64, options ...core.UpdateOptions) (inventory.StockRecord, error)

// mutation serves the endpoints that apply a positive ?quantity= to a product's stock.
func (a *StockApi) mutation(fn stockMutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := r.Context().Value(CtxKeyProductID).(int64)

		quantity, err := quantityParam(r)
		if err != nil {
			Render(w, r, ErrInvalidRequest(err))
			return
		}

		stock, err := fn(r.Context(), productID, quantity)
		if err != nil {
			Render(w, r, ErrFromService(err))
			return
		}

		Render(w, r, NewStockResponse(stock))
	}
}

// Upload applies a CSV of stock updates. A file where some records failed answers 207 with the failures.
func (a *StockApi) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		Render(w, r, ErrInvalidRequest(errors.WithMessage(err, "a csv file is required in form field 'file'")))
		return
	}
	defer file.Close()

	records, err := bulk.ReadCSV(file)
	if err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	log.Info().Str("file", header.Filename).Int("records", len(records)).Msg("applying uploaded stock updates")

	result, err := a.updater.Update(r.Context(), records)

	var batchErr *bulk.BatchError
	switch {
	case err == nil:
		Render(w, r, &UploadResponse{Result: result, Failures: []string{}})
	case errors.As(err, &batchErr):
		render.Status(r, http.StatusMultiStatus)
		Render(w, r, NewUploadResponse(result, batchErr))
	default:
		Render(w, r, ErrFromService(err))
	}
}

func (a *StockApi) thresholdParam(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("threshold")
	if v == "" {
		return a.threshold, nil
	}
	threshold, err := strconv.ParseInt(v, 10, 64)
	if err != nil || threshold < 0 {
		return 0, errors.Errorf("invalid threshold %q", v)
	}
	return threshold, nil
}

func quantityParam(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("quantity")
	if v == "" {
		return 0, errors.New("quantity is required")
	}
	quantity, err := strconv.ParseInt(v, 10, 64)
	if err != nil || quantity < 1 {
		return 0, errors.Errorf("quantity must be a positive integer, got %q", v)
	}
	return quantity, nil
}
