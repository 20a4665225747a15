package ui

import (
	"fmt"

	"github.com/five82/shopfront/internal/events"
	"github.com/five82/shopfront/internal/toast"
)

// Notify turns connectivity and dropped-change events into toasts.
// hasBeenOffline gates the "Back online" notice so a fresh session that
// starts online stays quiet. The returned func unsubscribes.
func Notify(bus *events.Bus, center *toast.Center, hasBeenOffline func() bool) func() {
	subs := []events.Subscription{
		bus.On(events.OfflineModeEntered, func(events.Event) {
			center.Push(toast.Warning, "You are offline")
		}),
		bus.On(events.OnlineModeEntered, func(events.Event) {
			if hasBeenOffline == nil || hasBeenOffline() {
				center.Push(toast.Success, "Back online")
			}
		}),
		bus.On(events.ChangeDropped, func(ev events.Event) {
			if ev.Dropped == nil {
				return
			}
			center.Push(toast.Error, droppedText(*ev.Dropped))
		}),
	}
	return func() {
		for _, sub := range subs {
			bus.Off(sub)
		}
	}
}

func droppedText(d events.DroppedChange) string {
	if d.ItemID == "" {
		return fmt.Sprintf("Gave up on %s after %d attempts", d.Kind, d.Attempts)
	}
	return fmt.Sprintf("Gave up on %s for %s after %d attempts", d.Kind, d.ItemID, d.Attempts)
}
