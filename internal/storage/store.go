// Package storage persists JSON values under namespaced keys.
//
// Store never returns errors to callers. Marshal failures, quota or disk
// errors, and corrupt payloads are reported as storage errors and the call
// degrades: Save becomes a no-op and Load reports a miss. A Store without a
// Medium behaves as if nothing was ever written.
package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/five82/shopfront/internal/report"
)

// Well-known keys.
const (
	KeyProducts       = "products"
	KeyCartItems      = "cart_items"
	KeyLastSync       = "last_sync"
	KeyPendingChanges = "pending_changes"
	KeyPrefs          = "prefs"
)

const defaultNamespace = "shopfront"

// Store is a JSON key-value store on top of a Medium.
type Store struct {
	medium    Medium
	namespace string
	reporter  report.Reporter
}

// New builds a Store. medium may be nil; reporter may be nil.
func New(medium Medium, namespace string, reporter report.Reporter) *Store {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &Store{medium: medium, namespace: namespace, reporter: reporter}
}

// Available reports whether a durable medium backs the store.
func (s *Store) Available() bool {
	return s != nil && s.medium != nil
}

// Save serializes value under key.
func (s *Store) Save(key string, value any) {
	if !s.Available() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.fail("serialize value", key, err)
		return
	}
	if err := s.medium.Set(s.fullKey(key), data); err != nil {
		s.fail("write value", key, err)
	}
}

// Load decodes the value stored under key into dest. It returns false when the
// key is absent, unreadable or corrupt; dest is left untouched in that case.
func (s *Store) Load(key string, dest any) bool {
	if !s.Available() {
		return false
	}
	data, ok, err := s.medium.Get(s.fullKey(key))
	if err != nil {
		s.fail("read value", key, err)
		return false
	}
	if !ok {
		return false
	}
	target := reflect.ValueOf(dest)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		s.fail("decode value", key, fmt.Errorf("destination %T is not a non-nil pointer", dest))
		return false
	}
	// Decode into a fresh value so a payload with wrong types cannot leave
	// dest half filled.
	fresh := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		s.fail("decode value", key, err)
		return false
	}
	target.Elem().Set(fresh.Elem())
	return true
}

// Remove deletes key.
func (s *Store) Remove(key string) {
	if !s.Available() {
		return
	}
	if err := s.medium.Delete(s.fullKey(key)); err != nil {
		s.fail("remove value", key, err)
	}
}

func (s *Store) fullKey(key string) string {
	return s.namespace + "_" + key
}

func (s *Store) fail(msg, key string, err error) {
	s.reporter.Report(report.Report{
		Severity: report.SeverityError,
		Kind:     report.KindStorage,
		Message:  msg,
		Err:      err,
		Fields:   map[string]any{"key": s.fullKey(key)},
	})
}
