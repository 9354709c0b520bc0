// Package server coordinates client registration, inbound chat events, and
// broadcast delivery for the relay via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/roomrelay/roomrelay/internal/chat"
)

// inboundEvent is a decoded client event queued for the hub loop. Exactly
// one of the request fields is set.
type inboundEvent struct {
	client *Client
	join   *JoinRequest
	send   *SendMessageRequest
	rename *RenameRequest
}

// Hub owns the chat state and every connected client. All state access runs
// on the single Run loop: each inbound event is handled to completion,
// mutation plus resulting broadcasts, before the next one starts, so the
// chat package needs no locks.
type Hub struct {
	clients    map[chat.ConnID]*Client
	state      *chat.State
	register   chan *Client
	unregister chan *Client
	events     chan inboundEvent
	directory  chan chan []chat.RoomInfo
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with fresh chat state.
// The returned Hub manages nothing until Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[chat.ConnID]*Client),
		state:      chat.NewState(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan inboundEvent),
		directory:  make(chan chan []chat.RoomInfo),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Directory returns the current room directory, served from the hub loop so
// the snapshot is consistent with in-flight events. Returns nil once the
// hub is shut down.
func (h *Hub) Directory() []chat.RoomInfo {
	reply := make(chan []chat.RoomInfo, 1)
	select {
	case h.directory <- reply:
		return <-reply
	case <-h.ctx.Done():
		return nil
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, inbound chat events, and directory queries. This method
// should be called in a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.clients[client.id] = client
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, len(h.clients))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				if !client.closed {
					client.closed = true
					close(client.send)
				}
				log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, len(h.clients))
			}
			// The member, if any, leaves its room even when the client was
			// already dropped for a full send buffer.
			h.deliver(h.state.Disconnect(client.id))

		case ev := <-h.events:
			h.dispatch(ev)

		case reply := <-h.directory:
			reply <- h.state.Directory()
		}
	}
}

var (
	hub     = NewHub()
	hubOnce sync.Once
)

// dispatch applies one decoded inbound event to the chat state and delivers
// the resulting broadcasts.
func (h *Hub) dispatch(ev inboundEvent) {
	switch {
	case ev.join != nil:
		h.deliver(h.state.Join(ev.client.id, ev.join.Username, ev.join.Room))
	case ev.send != nil:
		h.deliver(h.state.Send(ev.client.id, ev.send.Text))
	case ev.rename != nil:
		h.deliver(h.state.Rename(ev.client.id, ev.rename.Username))
	}
}

// deliver encodes each emission once and fans it out to the resolved
// audience. Clients whose send buffers are full are dropped.
func (h *Hub) deliver(emissions []chat.Emission) {
	var failed []*Client

	for _, em := range emissions {
		frame, err := encodeEvent(em.Event, em.Data)
		if err != nil {
			log.Printf("Error encoding %s event: %v", em.Event, err)
			continue
		}
		for _, target := range h.audience(em) {
			if !h.safeSend(target, frame) {
				failed = append(failed, target)
			}
		}
	}

	h.removeFailedClients(failed)
}

// audience resolves an emission's scope to the live clients it targets.
func (h *Hub) audience(em chat.Emission) []*Client {
	switch em.Scope {
	case chat.ScopeConn:
		if client, ok := h.clients[em.Conn]; ok {
			return []*Client{client}
		}
		return nil

	case chat.ScopeRoom, chat.ScopeRoomExcept:
		conns := h.state.RoomConns(em.Room)
		targets := make([]*Client, 0, len(conns))
		for _, id := range conns {
			if em.Scope == chat.ScopeRoomExcept && id == em.Conn {
				continue
			}
			if client, ok := h.clients[id]; ok {
				targets = append(targets, client)
			}
		}
		return targets

	case chat.ScopeAll:
		targets := make([]*Client, 0, len(h.clients))
		for _, client := range h.clients {
			targets = append(targets, client)
		}
		return targets
	}

	return nil
}

func (h *Hub) safeSend(client *Client, frame []byte) bool {
	if client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// removeFailedClients drops clients that failed to receive a frame. Their
// read pumps will observe the closed connection and unregister, which
// removes the member from its room.
func (h *Hub) removeFailedClients(failed []*Client) {
	for _, client := range failed {
		if _, ok := h.clients[client.id]; !ok {
			continue
		}
		delete(h.clients, client.id)
		if !client.closed {
			client.closed = true
			close(client.send)
		}
		log.Printf("Client %s from %s removed due to full send buffer", client.id, client.addr)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	count := 0
	for _, client := range h.clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", client.addr, err)
			}
		}
		count++
	}

	log.Printf("Closed %d client connections", count)
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
