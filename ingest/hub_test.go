package ingest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubBroadcastSkipsRemovedClient(t *testing.T) {
	h := NewHub()
	c := &hubClient{send: make(chan interface{}, 1)}
	h.clients[c] = struct{}{}

	h.remove(c)
	assert.Equal(t, 0, h.Broadcast("receipt"))
	assert.Equal(t, 0, h.ClientCount())

	// Removing again and shutting down both hit the already-closed client.
	h.remove(c)
	h.Close()
}

func TestHubBroadcastDuringDisconnect(t *testing.T) {
	h := NewHub()
	c := &hubClient{send: make(chan interface{}, 1)}
	h.clients[c] = struct{}{}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			h.Broadcast(i)
		}
	}()
	h.remove(c)
	wg.Wait() // a send must never land on the closed channel
}
