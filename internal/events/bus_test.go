package events

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishFiltersByType(t *testing.T) {
	bus := NewBus(hclog.NewNullLogger())

	var all, jobs []Event
	_, err := bus.Subscribe("all", EventFilter{}, func(e Event) { all = append(all, e) })
	require.NoError(t, err)
	_, err = bus.Subscribe("jobs", EventFilter{Types: []EventType{EventJobCompleted}}, func(e Event) { jobs = append(jobs, e) })
	require.NoError(t, err)

	bus.Publish(Event{Type: EventJobStarted, Source: "scan"})
	bus.Publish(Event{Type: EventJobCompleted, Source: "scan", Data: map[string]interface{}{"processed": 4}})

	require.Len(t, all, 2)
	require.Len(t, jobs, 1)
	assert.NotEmpty(t, jobs[0].ID)
	assert.False(t, jobs[0].Timestamp.IsZero())
	assert.Equal(t, 4, jobs[0].Data["processed"])
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	sub, err := bus.Subscribe("x", EventFilter{}, func(Event) { calls++ })
	require.NoError(t, err)

	require.NoError(t, bus.Unsubscribe(sub.ID))
	assert.Error(t, bus.Unsubscribe(sub.ID))
	bus.Publish(Event{Type: EventJobQueued})
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, bus.SubscriptionCount())
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewBus(hclog.NewNullLogger())
	delivered := false
	_, _ = bus.Subscribe("bad", EventFilter{}, func(Event) { panic("boom") })
	_, _ = bus.Subscribe("good", EventFilter{}, func(Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish(Event{Type: EventLayerCleared}) })
	assert.True(t, delivered)
}

func TestBus_SubscribeRejectsNilHandler(t *testing.T) {
	_, err := NewBus(nil).Subscribe("x", EventFilter{}, nil)
	assert.Error(t, err)
}
