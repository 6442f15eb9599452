package events_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/dealplanner/internal/events"
)

func TestPublishFiltersByKind(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())

	var all, created []events.Event
	bus.Subscribe("", func(ev events.Event) { all = append(all, ev) })
	bus.Subscribe(events.KindBundleCreated, func(ev events.Event) { created = append(created, ev) })

	bus.Publish(events.Event{Kind: events.KindBundleCreated, BundleID: "a"})
	bus.Publish(events.Event{Kind: events.KindCustomerChanged})

	require.Len(t, all, 2)
	require.Len(t, created, 1)
	require.Equal(t, "a", created[0].BundleID)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())

	calls := 0
	off := bus.Subscribe(events.KindBundleDeleted, func(events.Event) { calls++ })
	bus.Publish(events.Event{Kind: events.KindBundleDeleted})
	off()
	bus.Publish(events.Event{Kind: events.KindBundleDeleted})

	require.Equal(t, 1, calls)
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())

	delivered := false
	bus.Subscribe("", func(events.Event) { panic("boom") })
	bus.Subscribe("", func(events.Event) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(events.Event{Kind: events.KindBundleChanged})
	})
	require.True(t, delivered)
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *events.Bus
	require.NotPanics(t, func() { bus.Publish(events.Event{Kind: events.KindReset}) })
}
