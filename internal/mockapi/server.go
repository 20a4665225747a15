// Package mockapi is an in-memory storefront backend for local development
// and tests. It serves the cart and product endpoints under /api/v1 and can be
// told to fail upcoming requests.
package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/five82/shopfront/internal/cartapi"
)

// Seed is the on-disk fixture format.
type Seed struct {
	Products []cartapi.Product `json:"products"`
	Carts    struct {
		Items []cartapi.CartItem `json:"items"`
	} `json:"carts"`
}

// Server holds the catalog and a single cart.
type Server struct {
	mu          sync.Mutex
	products    []cartapi.Product
	items       []cartapi.CartItem
	failNext    map[string]int
	hits        map[string]int
	duplicateID bool
	logger      logrus.FieldLogger
}

// New returns a server seeded with seed, or the built-in catalog when seed is
// nil.
func New(seed *Seed, logger logrus.FieldLogger) *Server {
	if seed == nil {
		seed = &Seed{Products: DefaultCatalog()}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		products: append([]cartapi.Product(nil), seed.Products...),
		items:    cartapi.CloneItems(seed.Carts.Items),
		failNext: make(map[string]int),
		hits:     make(map[string]int),
		logger:   logger,
	}
	return s
}

// LoadSeed reads a fixture file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// DefaultCatalog is the product list served when no seed file is given.
func DefaultCatalog() []cartapi.Product {
	return []cartapi.Product{
		{SKU: "SKU-1001", Name: "Espresso Beans", Description: "1kg whole bean, dark roast", Price: 18.5, Category: "coffee", Quantity: 40},
		{SKU: "SKU-1002", Name: "Pour Over Kettle", Description: "Gooseneck, 1l", Price: 42, Category: "equipment", Quantity: 12},
		{SKU: "SKU-1003", Name: "Burr Grinder", Description: "Conical burrs, 40 settings", Price: 129.99, Category: "equipment", Quantity: 5},
		{SKU: "SKU-1004", Name: "Paper Filters", Description: "Pack of 100", Price: 6.25, Category: "supplies", Quantity: 200},
		{SKU: "SKU-1005", Name: "Ceramic Mug", Description: "350ml, matte black", Price: 14, Category: "supplies", Quantity: 60},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.faults)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", s.listProducts)
		r.Get("/carts/items", s.listItems)
		r.Post("/carts/items", s.addItem)
		r.Put("/carts/items/{itemId}", s.updateItem)
		r.Delete("/carts/items/{itemId}", s.deleteItem)
	})
	return r
}

// FailNext makes the next n requests with method answer 503.
func (s *Server) FailNext(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[strings.ToUpper(method)] = n
}

// SetDuplicateID makes POST reject items already in the cart with a
// "duplicate id" error instead of merging.
func (s *Server) SetDuplicateID(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicateID = on
}

// Items returns a copy of the cart.
func (s *Server) Items() []cartapi.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartapi.CloneItems(s.items)
}

// Hits returns how many requests with method reached the server, failed ones
// included.
func (s *Server) Hits(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[strings.ToUpper(method)]
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": ww.Status(),
		}).Debug("mock api request")
	})
}

func (s *Server) faults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method]++
		fail := s.failNext[r.Method] > 0
		if fail {
			s.failNext[r.Method]--
		}
		s.mu.Unlock()

		if fail {
			writeError(w, http.StatusServiceUnavailable, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	products := append([]cartapi.Product{}, s.products...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) listItems(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Items())
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req cartapi.NewItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ItemID) == "" {
		writeError(w, http.StatusBadRequest, "itemId is required")
		return
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(req.ItemID); i >= 0 {
		if s.duplicateID {
			writeError(w, http.StatusConflict, "duplicate id: "+req.ItemID)
			return
		}
		s.items[i].Quantity += qty
		if req.ImageURL != "" {
			s.items[i].ImageURL = req.ImageURL
		}
		writeJSON(w, http.StatusOK, s.items[i])
		return
	}

	item := req.CartItem()
	item.ID = req.ItemID
	s.items = append(s.items, item)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID := itemParam(r)
	var req struct {
		Quantity int     `json:"quantity"`
		Price    float64 `json:"price"`
		Name     string  `json:"name"`
		ImageURL string  `json:"imageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(itemID)
	if i < 0 {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	cur := s.items[i]
	updated := cartapi.CartItem{
		ID:       cur.ItemID,
		ItemID:   cur.ItemID,
		Quantity: firstPositive(req.Quantity, cur.Quantity),
		Price:    firstPositiveFloat(req.Price, cur.Price),
		Name:     firstNonEmpty(req.Name, cur.Name),
		ImageURL: firstNonEmpty(req.ImageURL, cur.ImageURL),
	}
	s.items[i] = updated
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := itemParam(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(itemID)
	if i < 0 {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// indexLocked matches on itemId first and then on the persistence id.
func (s *Server) indexLocked(id string) int {
	for i, item := range s.items {
		if item.ItemID == id {
			return i
		}
	}
	for i, item := range s.items {
		if item.ID != "" && item.ID == id {
			return i
		}
	}
	return -1
}

func itemParam(r *http.Request) string {
	raw := chi.URLParam(r, "itemId")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstPositiveFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
