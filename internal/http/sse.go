package httpserver

import (
	"fmt"
	"net/http"
	"sync"

	"example.com/colony-brain/internal/logging"
)

// SSEBroker fans controller events out to every subscribed client. Slow
// clients miss messages rather than stall the broker.
type SSEBroker struct {
	clients    map[chan string]bool
	newClients chan chan string
	defunct    chan chan string
	messages   chan string
	quit       chan struct{}
	closeOnce  sync.Once
	mutex      sync.Mutex
	log        logging.Logger
}

func NewSSEBroker(log logging.Logger) *SSEBroker {
	if log == nil {
		log = logging.Nop()
	}
	b := &SSEBroker{
		clients:    make(map[chan string]bool),
		newClients: make(chan chan string),
		defunct:    make(chan chan string),
		messages:   make(chan string, 64),
		quit:       make(chan struct{}),
		log:        log,
	}
	go b.start()
	return b
}

func (b *SSEBroker) start() {
	for {
		select {
		case s := <-b.newClients:
			b.mutex.Lock()
			b.clients[s] = true
			n := len(b.clients)
			b.mutex.Unlock()
			b.log.Debug("added SSE client", "clients", n)

		case s := <-b.defunct:
			b.mutex.Lock()
			if b.clients[s] {
				delete(b.clients, s)
				close(s)
			}
			n := len(b.clients)
			b.mutex.Unlock()
			b.log.Debug("removed SSE client", "clients", n)

		case msg := <-b.messages:
			b.mutex.Lock()
			for s := range b.clients {
				select {
				case s <- msg:
				default:
				}
			}
			b.mutex.Unlock()

		case <-b.quit:
			b.mutex.Lock()
			for s := range b.clients {
				delete(b.clients, s)
				close(s)
			}
			b.mutex.Unlock()
			return
		}
	}
}

// Subscribe registers a new client channel. The channel is closed on
// Unsubscribe or Close.
func (b *SSEBroker) Subscribe() chan string {
	ch := make(chan string, 16)
	select {
	case b.newClients <- ch:
	case <-b.quit:
		close(ch)
	}
	return ch
}

func (b *SSEBroker) Unsubscribe(ch chan string) {
	select {
	case b.defunct <- ch:
	case <-b.quit:
	}
}

// Broadcast queues msg for every client, dropping it when the queue is full.
func (b *SSEBroker) Broadcast(msg string) {
	select {
	case <-b.quit:
		return
	default:
	}
	select {
	case b.messages <- msg:
	default:
		b.log.Warn("SSE queue full, dropping event")
	}
}

// Clients reports how many clients are subscribed.
func (b *SSEBroker) Clients() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.clients)
}

// Close disconnects every client and stops the broker.
func (b *SSEBroker) Close() {
	b.closeOnce.Do(func() { close(b.quit) })
}

func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messageChan := b.Subscribe()
	defer b.Unsubscribe(messageChan)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-messageChan:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
