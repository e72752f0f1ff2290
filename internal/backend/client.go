package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/xid"
)

const maxResponseBytes = 4 << 20

var (
	ErrMalformedResponse = errors.New("malformed backend response")
	ErrUnauthorized      = errors.New("backend rejected credentials")
	ErrNotFound          = errors.New("backend resource not found")
	ErrUnavailable       = errors.New("backend unavailable")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend responded %d", e.StatusCode)
	}
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Detail)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnavailable:
		return e.StatusCode >= 500
	}
	return false
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "parse backend url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("backend url must be absolute http(s), got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListBuyerOrders(ctx context.Context, token string) ([]domain.Order, error) {
	var raw []wireOrder
	if err := c.getList(ctx, "/orders/by-user/", token, &raw); err != nil {
		return nil, err
	}
	return parseOrders(raw)
}

func (c *Client) ListSellerOrders(ctx context.Context, token string) ([]domain.Order, error) {
	var raw []wireOrder
	if err := c.getList(ctx, "/orders/by-seller/", token, &raw); err != nil {
		return nil, err
	}
	return parseOrders(raw)
}

// UpdateOrderStatus asks the backend to move an order. When the backend echoes
// a well-formed order it is returned; otherwise the acknowledgment carries no
// order and the result is nil.
func (c *Client) UpdateOrderStatus(ctx context.Context, token string, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	path := fmt.Sprintf("/orders/%s/update-status/", url.PathEscape(orderID))
	body, err := c.do(ctx, http.MethodPatch, path, token, map[string]string{"status": string(status)})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var raw wireOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		c.log.WithError(err).WithField("order_id", orderID).Debug("status update acknowledged without order body")
		return nil, nil
	}
	order, err := raw.toDomain()
	if err != nil {
		c.log.WithError(err).WithField("order_id", orderID).Debug("status update echoed an invalid order")
		return nil, nil
	}
	return &order, nil
}

func (c *Client) ListProducts(ctx context.Context, token string) ([]domain.Product, error) {
	var raw []wireProduct
	if err := c.getList(ctx, "/products/", token, &raw); err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(raw))
	for i, item := range raw {
		p, err := item.toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "product %d", i)
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, token string, productID string) (domain.Product, error) {
	return c.productCall(ctx, http.MethodGet, "/products/"+url.PathEscape(productID)+"/", token, nil)
}

func (c *Client) CreateProduct(ctx context.Context, token string, input domain.ProductInput) (domain.Product, error) {
	return c.productCall(ctx, http.MethodPost, "/products/", token, input)
}

func (c *Client) UpdateProduct(ctx context.Context, token string, productID string, input domain.ProductInput) (domain.Product, error) {
	return c.productCall(ctx, http.MethodPut, "/products/"+url.PathEscape(productID)+"/", token, input)
}

func (c *Client) DeleteProduct(ctx context.Context, token string, productID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(productID)+"/", token, nil)
	return err
}

func (c *Client) ListDiscounts(ctx context.Context, token string) ([]domain.Discount, error) {
	var raw []wireDiscount
	if err := c.getList(ctx, "/discounts/", token, &raw); err != nil {
		return nil, err
	}
	discounts := make([]domain.Discount, 0, len(raw))
	for i, item := range raw {
		d, err := item.toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "discount %d", i)
		}
		discounts = append(discounts, d)
	}
	return discounts, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/token/refresh/", "", map[string]string{"refresh": refresh})
	if err != nil {
		return "", err
	}
	var resp struct {
		Access *string `json:"access"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if resp.Access == nil || strings.TrimSpace(*resp.Access) == "" {
		return "", errors.Wrap(ErrMalformedResponse, "refresh response has no access token")
	}
	return *resp.Access, nil
}

func (c *Client) productCall(ctx context.Context, method string, path string, token string, payload any) (domain.Product, error) {
	body, err := c.do(ctx, method, path, token, payload)
	if err != nil {
		return domain.Product{}, err
	}
	var raw wireProduct
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Product{}, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return raw.toDomain()
}

// getList accepts either a bare JSON array or a paginated {"results": [...]}
// envelope.
func (c *Client) getList(ctx context.Context, path string, token string, dest any) error {
	body, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return errors.Wrap(ErrMalformedResponse, err.Error())
		}
		if len(page.Results) == 0 {
			return errors.Wrap(ErrMalformedResponse, "object response without results")
		}
		trimmed = page.Results
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return errors.Wrap(ErrMalformedResponse, "expected a JSON array")
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, path string, token string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", xid.New("req"))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	startedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	c.log.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}).Debug("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}
	return body, nil
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
