// Package prefs handles shopfront user preferences. Preferences live in the
// same storage medium as the cart cache, under the "prefs" key.
package prefs

import (
	"strings"

	"github.com/five82/shopfront/internal/storage"
)

// Prefs holds user preferences.
type Prefs struct {
	Theme string `json:"theme"`
}

const defaultTheme = "Nightfox"

// DefaultTheme is the theme used when none has been saved.
func DefaultTheme() string {
	return defaultTheme
}

// Load reads preferences from store, falling back to defaults when missing or
// unreadable.
func Load(store *storage.Store) Prefs {
	prefs := Prefs{Theme: defaultTheme}
	if store == nil {
		return prefs
	}
	if !store.Load(storage.KeyPrefs, &prefs) {
		return Prefs{Theme: defaultTheme}
	}
	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	return prefs
}

// Save writes preferences to store. A nil store is a no-op.
func Save(store *storage.Store, p Prefs) {
	if store == nil {
		return
	}
	p.Theme = strings.TrimSpace(p.Theme)
	store.Save(storage.KeyPrefs, p)
}
