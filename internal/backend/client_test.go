package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/backend/internal/domain"
)

const sampleOrders = `[
  {
    "id": 41,
    "user": 7,
    "user_name": "Ayu",
    "items": [{"product": 3, "product_name": "Kopi Arabica", "quantity": 2, "price": "45000.00", "seller": 9}],
    "total_price": "81000.00",
    "original_price": "90000.00",
    "discount_percentage": 10,
    "discount_code": "WELCOME10",
    "status": "completed",
    "created_at": "2026-03-04T10:00:00Z"
  },
  {
    "id": "42",
    "user": {"id": 8},
    "user_name": "Budi",
    "items": [],
    "total_price": 12000,
    "status": "Pending",
    "created_at": "2026-03-05T09:30:00+07:00"
  }
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api/", time.Second)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("/api", time.Second)
	require.Error(t, err)

	_, err = NewClient("ftp://example.com", time.Second)
	require.Error(t, err)
}

func TestListSellerOrdersParsesBackendShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/by-seller/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, sampleOrders)
	})

	orders, err := c.ListSellerOrders(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, "41", first.ID)
	assert.Equal(t, "7", first.BuyerID)
	assert.Equal(t, domain.OrderStatusCompleted, first.Status)
	assert.True(t, decimal.RequireFromString("81000").Equal(first.TotalPrice))
	require.NotNil(t, first.OriginalPrice)
	require.NotNil(t, first.DiscountPercentage)
	assert.Equal(t, 10, *first.DiscountPercentage)
	require.Len(t, first.Items, 1)
	assert.Equal(t, 2, first.Items[0].Quantity)
	assert.Equal(t, "9", first.Items[0].SellerID)

	second := orders[1]
	assert.Equal(t, "8", second.BuyerID)
	assert.Equal(t, domain.OrderStatusPending, second.Status)
	assert.Nil(t, second.OriginalPrice)
	assert.Equal(t, time.UTC, second.CreatedAt.Location())
	assert.True(t, second.CreatedAt.Equal(time.Date(2026, 3, 5, 2, 30, 0, 0, time.UTC)))
}

func TestListAcceptsPaginatedEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"count": 2, "results": `+sampleOrders+`}`)
	})

	orders, err := c.ListBuyerOrders(context.Background(), "tok")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestListRejectsMalformedRecords(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not a list", `{"detail": "ok"}`},
		{"unknown status", `[{"id":1,"user":1,"total_price":"1","status":"shipped","created_at":"2026-01-01T00:00:00Z"}]`},
		{"negative total", `[{"id":1,"user":1,"total_price":"-1","status":"pending","created_at":"2026-01-01T00:00:00Z"}]`},
		{"missing created_at", `[{"id":1,"user":1,"total_price":"1","status":"pending"}]`},
		{"zero quantity", `[{"id":1,"user":1,"total_price":"1","status":"pending","created_at":"2026-01-01T00:00:00Z","items":[{"product":1,"quantity":0,"price":"1"}]}]`},
		{"discount above original", `[{"id":1,"user":1,"total_price":"100","original_price":"50","discount_percentage":10,"status":"pending","created_at":"2026-01-01T00:00:00Z"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.ListSellerOrders(context.Background(), "tok")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse), "got %v", err)
		})
	}
}

func TestStatusErrorsMapToSentinels(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
			_, _ = io.WriteString(w, `{"detail":"nope"}`)
		})
		_, err := c.ListProducts(context.Background(), "tok")
		require.Error(t, err)
		assert.True(t, errors.Is(err, tc.want), "code %d got %v", tc.code, err)

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, "nope", statusErr.Detail)
	}
}

func TestUpdateOrderStatusSendsPatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/orders/41/update-status/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "approved", body["status"])

		_, _ = io.WriteString(w, `{"id":41,"user":7,"total_price":"10","status":"approved","created_at":"2026-01-01T00:00:00Z"}`)
	})

	ack, err := c.UpdateOrderStatus(context.Background(), "tok", "41", domain.OrderStatusApproved)
	require.NoError(t, err)
	require.NotNil(t, ack)
	assert.Equal(t, domain.OrderStatusApproved, ack.Status)
}

func TestUpdateOrderStatusWithoutEchoedOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"updated"}`)
	})

	ack, err := c.UpdateOrderStatus(context.Background(), "tok", "41", domain.OrderStatusApproved)
	require.NoError(t, err)
	assert.Nil(t, ack)
}

func TestProductCRUD(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"id":5,"name":"Teh Hijau","category":{"name":"Minuman"},"subcategory":"Teh","price":"15000","stock":"12"}`)
	})
	ctx := context.Background()
	input := domain.ProductInput{Name: "Teh Hijau", Category: "Minuman", Price: decimal.NewFromInt(15000), Stock: 12}

	created, err := c.CreateProduct(ctx, "tok", input)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/products/", gotPath)
	assert.Equal(t, "Minuman", created.Category)
	assert.Equal(t, 12, created.Stock)

	_, err = c.UpdateProduct(ctx, "tok", "5", input)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/products/5/", gotPath)

	require.NoError(t, c.DeleteProduct(ctx, "tok", "5"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestListDiscounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"code":"FLASH20","discount_percentage":20,"description":"Flash","valid_until":"2026-12-31T23:59:59Z"}]`)
	})

	discounts, err := c.ListDiscounts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, discounts, 1)
	assert.Equal(t, 20, discounts[0].Percentage)
	require.NotNil(t, discounts[0].ValidUntil)
}

func TestRefreshToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/token/refresh/", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["refresh"] != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"access":"fresh-token"}`)
	})

	token, err := c.RefreshToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)

	_, err = c.RefreshToken(context.Background(), "bad")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
