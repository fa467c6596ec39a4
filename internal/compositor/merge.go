package compositor

import "sync"

type mergedClient struct {
	Client
	events chan Event
}

// Merge returns a client whose event stream interleaves the wrapped
// client's events with extra. Visibility tracking lives outside the
// wayland connection, so the engine gets one ordered stream regardless
// of where an event came from. The merged stream closes once both
// sources have closed.
func Merge(c Client, extra <-chan Event) Client {
	m := &mergedClient{Client: c, events: make(chan Event, 16)}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for ev := range c.Events() {
			m.events <- ev
		}
	}()
	go func() {
		defer wg.Done()
		for ev := range extra {
			m.events <- ev
		}
	}()
	go func() {
		wg.Wait()
		close(m.events)
	}()
	return m
}

func (m *mergedClient) Events() <-chan Event { return m.events }
