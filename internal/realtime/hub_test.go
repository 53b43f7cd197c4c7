package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/esg-pipeline/internal/domain/model"
)

func update(id string, status model.AnalysisStatus) model.StatusUpdate {
	return model.StatusUpdate{AnalysisID: id, OrganizationID: "org-1", Status: status}
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(HubOptions{})
	unsubA, a := hub.Subscribe()
	defer unsubA()
	unsubB, b := hub.Subscribe()
	defer unsubB()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish(context.Background(), update("a-1", model.AnalysisStatusCompleted))

	for _, ch := range []<-chan model.StatusUpdate{a, b} {
		got := <-ch
		assert.Equal(t, "a-1", got.AnalysisID)
		assert.Equal(t, model.AnalysisStatusCompleted, got.Status)
	}
}

func TestHub_NoReplay(t *testing.T) {
	hub := NewHub(HubOptions{})
	hub.Publish(context.Background(), update("early", model.AnalysisStatusProcessing))

	unsub, ch := hub.Subscribe()
	defer unsub()

	select {
	case u := <-ch:
		t.Fatalf("unexpected replay of %s", u.AnalysisID)
	default:
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(HubOptions{Buffer: 1})
	unsubSlow, slow := hub.Subscribe()
	defer unsubSlow()
	unsubFast, fast := hub.Subscribe()
	defer unsubFast()

	hub.Publish(context.Background(), update("a-1", model.AnalysisStatusProcessing))
	<-fast
	hub.Publish(context.Background(), update("a-1", model.AnalysisStatusFailed))

	assert.Equal(t, model.AnalysisStatusFailed, (<-fast).Status)
	assert.Equal(t, model.AnalysisStatusProcessing, (<-slow).Status)
	assert.Equal(t, int64(1), hub.Dropped())
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(HubOptions{})
	unsub, ch := hub.Subscribe()
	unsub()
	unsub()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())

	hub.Publish(context.Background(), update("a-1", model.AnalysisStatusFailed))
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(HubOptions{})
	unsub, ch := hub.Subscribe()
	hub.Close()
	unsub()

	_, open := <-ch
	assert.False(t, open)

	_, late := hub.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub := NewHub(HubOptions{Buffer: 100})
	unsub, ch := hub.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				hub.Deliver(update("a", model.AnalysisStatusProcessing))
			}
		}()
	}
	wg.Wait()

	require.Len(t, ch, 100)
	assert.Zero(t, hub.Dropped())
}
