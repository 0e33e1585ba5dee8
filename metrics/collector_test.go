package metrics

import (
	"sync"
	"testing"
)

func TestCollector_CountersAccumulate(t *testing.T) {
	c := NewCollector()

	c.IncFramesRead()
	c.IncFramesRead()
	c.IncFramesDiscarded()
	c.IncReconnects()
	c.IncPublishes()
	c.IncPublishSkips()
	c.IncPublishSkips()
	c.IncPublishSkips()
	c.SetActiveProvider("mpris")

	snap := c.Snapshot()
	if snap.FramesRead != 2 {
		t.Errorf("FramesRead = %d, want 2", snap.FramesRead)
	}
	if snap.FramesDiscarded != 1 {
		t.Errorf("FramesDiscarded = %d, want 1", snap.FramesDiscarded)
	}
	if snap.Reconnects != 1 {
		t.Errorf("Reconnects = %d, want 1", snap.Reconnects)
	}
	if snap.Publishes != 1 {
		t.Errorf("Publishes = %d, want 1", snap.Publishes)
	}
	if snap.PublishSkips != 3 {
		t.Errorf("PublishSkips = %d, want 3", snap.PublishSkips)
	}
	if snap.ActiveProvider != "mpris" {
		t.Errorf("ActiveProvider = %q, want %q", snap.ActiveProvider, "mpris")
	}
}

func TestCollector_NilReceiverSafe(t *testing.T) {
	var c *Collector

	// None of these may panic.
	c.IncFramesRead()
	c.IncFramesDiscarded()
	c.IncReconnects()
	c.IncHandshakeErrors()
	c.IncJoinEvents()
	c.IncJoinRequests()
	c.IncInvitesSent()
	c.IncPublishes()
	c.IncPublishSkips()
	c.IncSinkErrors()
	c.IncClearsIssued()
	c.IncPolls()
	c.IncEmptyPolls()
	c.IncProviderFails()
	c.IncCoverUploads()
	c.IncCoverCacheHits()
	c.SetActiveProvider("spotify")

	snap := c.Snapshot()
	if snap.FramesRead != 0 {
		t.Errorf("nil collector snapshot FramesRead = %d, want 0", snap.FramesRead)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncPolls()
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().Polls; got != 5000 {
		t.Errorf("Polls = %d, want 5000", got)
	}
}
