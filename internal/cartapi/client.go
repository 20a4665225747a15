package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CartAPI is the remote cart store. *Client implements it; tests substitute
// fakes.
type CartAPI interface {
	FetchItems(ctx context.Context) ([]CartItem, error)
	AddItem(ctx context.Context, item NewItem) (CartItem, error)
	UpdateItem(ctx context.Context, itemID string, quantity int) (CartItem, error)
	RemoveItem(ctx context.Context, itemID string) error
	ClearAll(ctx context.Context) error
	FetchProducts(ctx context.Context) ([]Product, error)
}

// Ensure Client implements CartAPI at compile time.
var _ CartAPI = (*Client)(nil)

// Client talks to the storefront HTTP API.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	userAgent   string
	logger      logrus.FieldLogger
	backoffUnit time.Duration
}

const (
	DefaultBaseURL        = "http://127.0.0.1:8082/api/v1"
	DefaultRequestTimeout = 10 * time.Second

	defaultUserAgent   = "shopfront/0.1"
	defaultBackoffUnit = 200 * time.Millisecond
	addAttempts        = 3
	maxBodyBytes       = 64 * 1024
	duplicateIDMarker  = "duplicate id"
)

// Option customizes a Client.
type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBackoffUnit sets the linear backoff step between AddItem attempts.
func WithBackoffUnit(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoffUnit = d
		}
	}
}

// NewClient builds a Client for the API rooted at baseURL
// (e.g. http://localhost:8082/api/v1).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:     base,
		http:        &http.Client{Timeout: DefaultRequestTimeout},
		userAgent:   defaultUserAgent,
		logger:      logrus.StandardLogger(),
		backoffUnit: defaultBackoffUnit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return strings.TrimSuffix(c.baseURL.String(), "/")
}

// FetchItems retrieves the whole remote cart.
func (c *Client) FetchItems(ctx context.Context) ([]CartItem, error) {
	var items []CartItem
	if err := c.do(ctx, "fetch cart", http.MethodGet, "carts/items", nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []CartItem{}
	}
	return items, nil
}

// FetchProducts retrieves the catalog.
func (c *Client) FetchProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, "fetch products", http.MethodGet, "products", nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// AddItem posts item, retrying transient failures with a linear backoff. A
// "duplicate id" rejection is answered with the item already in the cart.
func (c *Client) AddItem(ctx context.Context, item NewItem) (CartItem, error) {
	if strings.TrimSpace(item.ItemID) == "" {
		return CartItem{}, fmt.Errorf("add item: item id required")
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	var lastErr error
	for attempt := 1; attempt <= addAttempts; attempt++ {
		var created CartItem
		err := c.do(ctx, "add item", http.MethodPost, "carts/items", item, &created)
		if err == nil {
			return created, nil
		}
		lastErr = err

		var netErr *NetworkError
		if errors.As(err, &netErr) && netErr.Status != 0 &&
			strings.Contains(strings.ToLower(netErr.Body), duplicateIDMarker) {
			if existing, ok := c.findExisting(ctx, item.ItemID); ok {
				return existing, nil
			}
		}
		if !errors.As(err, &netErr) || !netErr.Transient() || attempt == addAttempts {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"item_id": item.ItemID,
			"attempt": attempt,
		}).WithError(err).Warn("add item attempt failed, retrying")
		if err := sleepCtx(ctx, c.backoffUnit*time.Duration(attempt)); err != nil {
			return CartItem{}, &NetworkError{Op: "add item", Err: err}
		}
	}
	return CartItem{}, lastErr
}

func (c *Client) findExisting(ctx context.Context, itemID string) (CartItem, bool) {
	items, err := c.FetchItems(ctx)
	if err != nil {
		return CartItem{}, false
	}
	for _, it := range items {
		if it.ItemID == itemID {
			return it, true
		}
	}
	return CartItem{}, false
}

// UpdateItem replaces the quantity of an item that must already be in the
// remote cart.
func (c *Client) UpdateItem(ctx context.Context, itemID string, quantity int) (CartItem, error) {
	items, err := c.FetchItems(ctx)
	if err != nil {
		return CartItem{}, err
	}
	var current *CartItem
	for i := range items {
		if items[i].ItemID == itemID {
			current = &items[i]
			break
		}
	}
	if current == nil {
		return CartItem{}, fmt.Errorf("update %s: %w", itemID, ErrItemNotFound)
	}

	body := UpdateItem{
		ItemID:   current.ItemID,
		Quantity: quantity,
		Price:    current.Price,
		Name:     current.Name,
	}
	var updated CartItem
	err = c.doURL(ctx, "update item", http.MethodPut, itemURL(itemID), body, &updated)
	if isStatus(err, http.StatusNotFound) {
		return CartItem{}, fmt.Errorf("update %s: %w", itemID, ErrItemNotFound)
	}
	if err != nil {
		return CartItem{}, err
	}
	return updated, nil
}

// RemoveItem deletes the item addressed by id.
func (c *Client) RemoveItem(ctx context.Context, id string) error {
	err := c.doURL(ctx, "remove item", http.MethodDelete, itemURL(id), nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("remove %s: %w", id, ErrItemNotFound)
	}
	return err
}

// ClearAll removes every item one by one. It is not atomic: on failure the
// items deleted so far stay deleted.
func (c *Client) ClearAll(ctx context.Context) error {
	items, err := c.FetchItems(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrClearFailed, err)
	}
	for _, item := range items {
		id := item.PersistenceID()
		if id == "" {
			continue
		}
		if err := c.RemoveItem(ctx, id); err != nil && !errors.Is(err, ErrItemNotFound) {
			return fmt.Errorf("%w: %s: %w", ErrClearFailed, item.ItemID, err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, dest any) error {
	return c.doURL(ctx, op, method, &url.URL{Path: path}, body, dest)
}

func (c *Client) doURL(ctx context.Context, op, method string, rel *url.URL, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return &NetworkError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8*maxBodyBytes)).Decode(dest); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func itemURL(id string) *url.URL {
	return &url.URL{
		Path:    "carts/items/" + id,
		RawPath: "carts/items/" + url.PathEscape(id),
	}
}

func isStatus(err error, status int) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Status == status
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api base url %q: missing host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
