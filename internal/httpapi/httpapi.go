package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/backend/internal/backend"
	"storefront/backend/internal/board"
	"storefront/backend/internal/dashboard"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/export"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/notify"
	"storefront/backend/internal/service"
)

type Option func(*API)

func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(a *API) { a.metrics = m }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *API) {
		if logger != nil {
			a.log = logger
		}
	}
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	notes         *notify.Localizer
	metrics       *metrics.HTTPMetrics
	allowedOrigin string
	log           logrus.FieldLogger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, opts ...Option) *API {
	a := &API{
		service:       svc,
		auth:          auth,
		notes:         notify.NewLocalizer(),
		allowedOrigin: allowedOrigin,
		log:           logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.withMiddleware)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/promotions", a.handlePromotions)
		r.Get("/promotions/countdown", a.handleCountdown)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Get("/discounts", a.handleDiscounts)
			r.Get("/orders", a.handleBuyerOrders)

			r.Route("/seller", func(r chi.Router) {
				r.Get("/orders", a.handleSellerOrders)
				r.Get("/orders/export", a.handleSellerOrderExport)
				r.Patch("/orders/{id}/status", a.handleOrderStatus)
				r.Get("/products", a.handleSellerProducts)
				r.Post("/products", a.handleCreateProduct)
				r.Put("/products/{id}", a.handleUpdateProduct)
				r.Delete("/products/{id}", a.handleDeleteProduct)
				r.Get("/dashboard", a.handleDashboard)
			})
		})
	})

	return r
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, refreshed, err := a.auth.Authenticate(r)
		if err != nil {
			a.writeFailure(w, r, err)
			return
		}
		if refreshed != "" {
			w.Header().Set(accessTokenHeader, refreshed)
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handlePromotions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Promotions(r.Context()))
}

// handleCountdown streams one snapshot per second as Server-Sent Events until
// the client goes away.
func (a *API) handleCountdown(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var buf bytes.Buffer
	err := a.service.WatchPromotions(ctx, func(snap domain.RotationSnapshot) {
		buf.Reset()
		if err := json.NewEncoder(&buf).Encode(snap); err != nil {
			a.log.WithError(err).Warn("encode countdown frame")
			return
		}
		if _, err := fmt.Fprintf(w, "event: countdown\ndata: %s\n\n", bytes.TrimSpace(buf.Bytes())); err != nil {
			cancel()
			return
		}
		flusher.Flush()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.log.WithError(err).Debug("countdown stream ended")
	}
}

func (a *API) handleDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := a.service.Discounts(r.Context())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"discounts": discounts,
		"count":     len(discounts),
	})
}

func (a *API) handleBuyerOrders(w http.ResponseWriter, r *http.Request) {
	filter, order, err := parseOrderQuery(r.URL.Query())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	resp, err := a.service.BuyerOrders(r.Context(), filter, order)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSellerOrders(w http.ResponseWriter, r *http.Request) {
	filter, order, err := parseOrderQuery(r.URL.Query())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	resp, err := a.service.SellerOrders(r.Context(), filter, order)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSellerOrderExport(w http.ResponseWriter, r *http.Request) {
	filter, order, err := parseOrderQuery(r.URL.Query())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	orders, err := a.service.SellerOrderExport(r.Context(), filter, order)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}

	now := time.Now()
	var buf bytes.Buffer
	if err := export.WriteOrders(&buf, orders, now); err != nil {
		a.log.WithError(err).Error("order export failed")
		a.writeNotification(w, r, http.StatusInternalServerError, domain.NotificationError, notify.KeyExportFailed)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req domain.StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeFailure(w, r, invalidInput(err))
		return
	}

	updated, err := a.service.UpdateOrderStatus(r.Context(), orderID, req)
	if err != nil {
		if errors.Is(err, board.ErrPendingChange) {
			a.writeNotification(w, r, http.StatusConflict, domain.NotificationWarning, notify.KeyStatusInProgress, orderID)
			return
		}
		a.writeFailureAs(w, r, err, notify.KeyStatusFailed, orderID)
		return
	}

	p := updated.Status.Presentation()
	writeJSON(w, http.StatusOK, map[string]any{
		"order": domain.OrderRow{
			Order:       updated,
			StatusLabel: p.Label,
			StatusColor: p.ColorClass,
			StatusIcon:  p.Icon,
		},
		"notification": a.notes.Notify(r.Header.Get("Accept-Language"), domain.NotificationSuccess, notify.KeyStatusUpdated, updated.ID, p.Label),
	})
}

func (a *API) handleSellerProducts(w http.ResponseWriter, r *http.Request) {
	filter, order, err := parseProductQuery(r.URL.Query())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	resp, err := a.service.SellerProducts(r.Context(), filter, order)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	if err := decodeJSON(r, &input); err != nil {
		a.writeFailure(w, r, invalidInput(err))
		return
	}
	created, err := a.service.CreateProduct(r.Context(), input)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"product":      created,
		"notification": a.notes.Notify(r.Header.Get("Accept-Language"), domain.NotificationSuccess, notify.KeyProductCreated, created.Name),
	})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	if err := decodeJSON(r, &input); err != nil {
		a.writeFailure(w, r, invalidInput(err))
		return
	}
	updated, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product":      updated,
		"notification": a.notes.Notify(r.Header.Get("Accept-Language"), domain.NotificationSuccess, notify.KeyProductUpdated, updated.Name),
	})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notification": a.notes.Notify(r.Header.Get("Accept-Language"), domain.NotificationSuccess, notify.KeyProductDeleted),
	})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language, "+refreshHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", accessTokenHeader+", Content-Disposition")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(startedAt)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if a.metrics != nil {
			a.metrics.Observe(route, r.Method, status, elapsed)
		}
		a.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		}).Info("request")
	})
}

// writeFailure maps an error to a localized notification and a status code
// reflecting the failure class.
func (a *API) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	a.writeFailureAs(w, r, err, "")
}

// writeFailureAs is writeFailure with a request-specific message for backend
// outages and malformed answers.
func (a *API) writeFailureAs(w http.ResponseWriter, r *http.Request, err error, backendKey notify.Key, args ...any) {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, backend.ErrUnauthorized):
		a.writeNotification(w, r, http.StatusUnauthorized, domain.NotificationError, notify.KeySessionExpired)
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, board.ErrUnknownOrder):
		a.writeNotification(w, r, http.StatusNotFound, domain.NotificationError, notify.KeyNotFound)
	case errors.Is(err, service.ErrInvalidInput):
		a.writeNotification(w, r, http.StatusUnprocessableEntity, domain.NotificationError, notify.KeyInvalidRequest, inputDetail(err))
	case errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
		a.writeNotification(w, r, http.StatusUnprocessableEntity, domain.NotificationError, notify.KeyInvalidRequest, statusErr.Detail)
	case errors.Is(err, backend.ErrMalformedResponse):
		a.log.WithError(err).Warn("backend returned malformed data")
		a.writeBackendFailure(w, r, notify.KeyMalformed, backendKey, args...)
	case errors.Is(err, backend.ErrUnavailable):
		a.log.WithError(err).Warn("backend unavailable")
		a.writeBackendFailure(w, r, notify.KeyUnavailable, backendKey, args...)
	default:
		a.log.WithError(err).Error("request failed")
		a.writeNotification(w, r, http.StatusInternalServerError, domain.NotificationError, notify.KeyInternal)
	}
}

func (a *API) writeBackendFailure(w http.ResponseWriter, r *http.Request, generic notify.Key, specific notify.Key, args ...any) {
	if specific == "" {
		a.writeNotification(w, r, http.StatusBadGateway, domain.NotificationError, generic)
		return
	}
	a.writeNotification(w, r, http.StatusBadGateway, domain.NotificationError, specific, args...)
}

func (a *API) writeNotification(w http.ResponseWriter, r *http.Request, status int, level string, key notify.Key, args ...any) {
	writeJSON(w, status, a.notes.Notify(r.Header.Get("Accept-Language"), level, key, args...))
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
}

func inputDetail(err error) string {
	msg := err.Error()
	prefix := service.ErrInvalidInput.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	if rest, ok := strings.CutSuffix(msg, ": "+service.ErrInvalidInput.Error()); ok {
		return rest
	}
	return msg
}

func parseOrderQuery(q url.Values) (dashboard.OrderFilter, dashboard.Sort, error) {
	var filter dashboard.OrderFilter
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return filter, dashboard.Sort{}, invalidInput(err)
		}
		filter.Status = status
	}
	filter.Search = q.Get("q")

	price, err := parsePriceRange(q)
	if err != nil {
		return filter, dashboard.Sort{}, err
	}
	filter.Price = price

	if filter.From, err = parseTimeBound(q.Get("from"), false); err != nil {
		return filter, dashboard.Sort{}, invalidInput(err)
	}
	if filter.To, err = parseTimeBound(q.Get("to"), true); err != nil {
		return filter, dashboard.Sort{}, invalidInput(err)
	}

	order, err := dashboard.ParseSort(q.Get("sort"), q.Get("dir"))
	if err != nil {
		return filter, dashboard.Sort{}, invalidInput(err)
	}
	return filter, order, nil
}

func parseProductQuery(q url.Values) (dashboard.ProductFilter, dashboard.Sort, error) {
	filter := dashboard.ProductFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   q.Get("q"),
	}
	switch stock := dashboard.StockFilter(strings.ToLower(strings.TrimSpace(q.Get("stock")))); stock {
	case dashboard.StockAny, dashboard.StockIn, dashboard.StockOut:
		filter.Stock = stock
	default:
		return filter, dashboard.Sort{}, invalidInput(fmt.Errorf("unsupported stock filter %q", stock))
	}

	price, err := parsePriceRange(q)
	if err != nil {
		return filter, dashboard.Sort{}, err
	}
	filter.Price = price

	order, err := dashboard.ParseSort(q.Get("sort"), q.Get("dir"))
	if err != nil {
		return filter, dashboard.Sort{}, invalidInput(err)
	}
	return filter, order, nil
}

func parsePriceRange(q url.Values) (*dashboard.PriceRange, error) {
	minRaw, maxRaw := strings.TrimSpace(q.Get("min_price")), strings.TrimSpace(q.Get("max_price"))
	if minRaw == "" && maxRaw == "" {
		return nil, nil
	}
	var r dashboard.PriceRange
	if minRaw != "" {
		v, err := decimal.NewFromString(minRaw)
		if err != nil {
			return nil, invalidInput(fmt.Errorf("min_price %q is not a number", minRaw))
		}
		r.Min = &v
	}
	if maxRaw != "" {
		v, err := decimal.NewFromString(maxRaw)
		if err != nil {
			return nil, invalidInput(fmt.Errorf("max_price %q is not a number", maxRaw))
		}
		r.Max = &v
	}
	return &r, nil
}

// parseTimeBound accepts RFC3339 or a bare date. A bare upper bound covers
// the whole day.
func parseTimeBound(raw string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", raw)
	}
	if upper {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		logrus.WithError(err).WithField("status", status).Error("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
