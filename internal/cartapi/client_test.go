package cartapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultBaseURL+"/" {
		t.Fatalf("url = %q, want %q", u.String(), DefaultBaseURL+"/")
	}

	u, err = parseBaseURL("example.com:1234/api/v1?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Path != "/api/v1/" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("http://"); err == nil {
		t.Fatalf("parseBaseURL accepted url without host")
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL+"/api/v1", WithBackoffUnit(time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestClient_FetchItemsAndProducts(t *testing.T) {
	var gotUserAgent string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/api/v1/carts/items":
			_ = json.NewEncoder(w).Encode([]CartItem{{ID: "SKU1", ItemID: "SKU1", Quantity: 2, Price: 9.99, Name: "Widget"}})
		case "/api/v1/products":
			_ = json.NewEncoder(w).Encode([]Product{{SKU: "SKU1", Name: "Widget", Price: 9.99}})
		default:
			http.NotFound(w, r)
		}
	}))

	items, err := c.FetchItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "SKU1", items[0].ItemID)
	assert.Equal(t, 2, items[0].Quantity)

	products, err := c.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)

	assert.True(t, strings.HasPrefix(gotUserAgent, "shopfront/"), "User-Agent = %q", gotUserAgent)
}

func TestClient_FetchItemsNullBodyIsEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	items, err := c.FetchItems(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestClient_Non2xxIsNetworkError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	_, err := c.FetchItems(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusInternalServerError, netErr.Status)
	assert.Equal(t, "nope", netErr.Body)
	assert.True(t, netErr.Transient())
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	c, err := NewClient("127.0.0.1:1", WithTimeout(500*time.Millisecond))
	require.NoError(t, err)

	_, err = c.FetchItems(context.Background())
	assert.True(t, IsNetworkError(err), "err = %v", err)
}

func TestClient_AddItemRetriesWithLinearBackoff(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var body NewItem
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(CartItem{ID: body.ItemID, ItemID: body.ItemID, Quantity: body.Quantity, Name: body.Name})
	}))

	got, err := c.AddItem(context.Background(), NewItem{ItemID: "SKU1", Name: "Widget", Price: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, got.Quantity, "quantity defaults to 1")
}

func TestClient_AddItemGivesUpAfterThreeAttempts(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))

	_, err := c.AddItem(context.Background(), NewItem{ItemID: "SKU1"})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_AddItemDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))

	_, err := c.AddItem(context.Background(), NewItem{ItemID: "SKU1"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_AddItemDuplicateIDReturnsExisting(t *testing.T) {
	var posts int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			atomic.AddInt32(&posts, 1)
			http.Error(w, "Error: Insert failed, Duplicate ID", http.StatusInternalServerError)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]CartItem{{ID: "SKU1", ItemID: "SKU1", Quantity: 4}})
		}
	}))

	got, err := c.AddItem(context.Background(), NewItem{ItemID: "SKU1", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts), "duplicate id short-circuits retry")
}

func TestClient_AddItemRequiresID(t *testing.T) {
	c, err := NewClient("")
	require.NoError(t, err)
	_, err = c.AddItem(context.Background(), NewItem{})
	require.Error(t, err)
}

func TestClient_AddItemHonoursContextDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL, WithBackoffUnit(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.AddItem(ctx, NewItem{ItemID: "SKU1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_UpdateItemSendsFullReplaceBody(t *testing.T) {
	var mu sync.Mutex
	var gotBody UpdateItem
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]CartItem{{ID: "SKU1", ItemID: "SKU1", Quantity: 1, Price: 9.99, Name: "Widget"}})
		case http.MethodPut:
			mu.Lock()
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(CartItem{ID: "SKU1", ItemID: "SKU1", Quantity: gotBody.Quantity, Price: 9.99, Name: "Widget"})
		}
	}))

	got, err := c.UpdateItem(context.Background(), "SKU1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/v1/carts/items/SKU1", gotPath)
	assert.Equal(t, UpdateItem{ItemID: "SKU1", Quantity: 5, Price: 9.99, Name: "Widget"}, gotBody)
}

func TestClient_UpdateItemMissingIsItemNotFound(t *testing.T) {
	var puts int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			atomic.AddInt32(&puts, 1)
		}
		_ = json.NewEncoder(w).Encode([]CartItem{})
	}))

	_, err := c.UpdateItem(context.Background(), "SKU_X", 3)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Zero(t, atomic.LoadInt32(&puts), "no implicit creation")
}

func TestClient_RemoveItem404IsItemNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Item not found"}`, http.StatusNotFound)
	}))
	err := c.RemoveItem(context.Background(), "SKU1")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClient_RemoveItemEscapesID(t *testing.T) {
	var gotRaw string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRaw = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	require.NoError(t, c.RemoveItem(context.Background(), "a/b c"))
	assert.Equal(t, "/api/v1/carts/items/a%2Fb%20c", gotRaw)
}

func TestClient_ClearAllIsBestEffort(t *testing.T) {
	var mu sync.Mutex
	var deleted []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]CartItem{
				{ID: "p1", ItemID: "A"},
				{ItemID: "B"},
				{ID: "p3", ItemID: "C"},
			})
		case http.MethodDelete:
			id := strings.TrimPrefix(r.URL.Path, "/api/v1/carts/items/")
			if id == "p3" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			mu.Lock()
			deleted = append(deleted, id)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}
	}))

	err := c.ClearAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClearFailed)
	assert.True(t, IsNetworkError(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"p1", "B"}, deleted, "earlier deletes stay deleted, id falls back to itemId")
}

func TestNetworkError_Messages(t *testing.T) {
	assert.Equal(t, "op: status 500: x", (&NetworkError{Op: "op", Status: 500, Body: "x"}).Error())
	assert.Equal(t, "op: status 404", (&NetworkError{Op: "op", Status: 404}).Error())
	assert.Equal(t, "op: eof", (&NetworkError{Op: "op", Err: errors.New("eof")}).Error())
	assert.False(t, (&NetworkError{Status: 404}).Transient())
	assert.True(t, (&NetworkError{Status: 429}).Transient())
}

func TestTypes_Helpers(t *testing.T) {
	assert.Equal(t, "SKU1", CartItem{ItemID: "SKU1"}.PersistenceID())
	assert.Equal(t, "p", CartItem{ID: "p", ItemID: "SKU1"}.PersistenceID())
	assert.InDelta(t, 19.98, CartItem{Price: 9.99, Quantity: 2}.Subtotal(), 1e-9)
	assert.Equal(t, 1, NewItem{ItemID: "x"}.CartItem().Quantity)

	p := Product{SKU: "S", Name: "N", Price: 2, ImageURL: "i"}
	assert.Equal(t, NewItem{ItemID: "S", Name: "N", Price: 2, Quantity: 3, ImageURL: "i"}, p.NewItem(3))
	assert.Nil(t, CloneItems(nil))
}
