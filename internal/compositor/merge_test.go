package compositor

import (
	"testing"
	"time"
)

type stubClient struct {
	events chan Event
}

func (c *stubClient) Outputs() []Output { return nil }

func (c *stubClient) Events() <-chan Event { return c.events }

func (c *stubClient) Close() { close(c.events) }

func (c *stubClient) CreateSurface(string) (Surface, error) { return nil, nil }

func TestMergeInterleavesAndCloses(t *testing.T) {
	inner := &stubClient{events: make(chan Event, 4)}
	extra := make(chan Event, 4)
	merged := Merge(inner, extra)

	inner.events <- Event{Kind: OutputAdded, Output: Output{Name: "DP-1"}}
	extra <- Event{Kind: VisibilityChanged, Name: "DP-1", Occluded: true}

	seen := make(map[EventKind]bool)
	for i := 0; i < 2; i++ {
		select {
		case ev := <-merged.Events():
			seen[ev.Kind] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for merged event")
		}
	}
	if !seen[OutputAdded] || !seen[VisibilityChanged] {
		t.Fatalf("missing event kinds: %v", seen)
	}

	merged.Close()
	close(extra)
	select {
	case _, ok := <-merged.Events():
		if ok {
			t.Fatal("unexpected event after close")
		}
	case <-time.After(time.Second):
		t.Fatal("merged stream did not close")
	}
}
