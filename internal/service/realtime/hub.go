package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"potholewatch/internal/logger"
)

const pingInterval = 30 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// SnapshotFunc returns the full current contents of a table.
type SnapshotFunc func() (interface{}, error)

type subscription struct {
	conn   Conn
	topics map[string]bool
}

type message struct {
	topic   string
	payload []byte
}

// HubService owns the subscriber set. All writes to subscriber connections
// happen on the Run goroutine.
type HubService struct {
	clients    map[Conn]map[string]bool
	broadcast  chan message
	register   chan subscription
	unregister chan Conn
	done       chan struct{}
	mutex      sync.RWMutex
	snapshots  map[string]SnapshotFunc
	snapMutex  sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[Conn]map[string]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan subscription),
		unregister: make(chan Conn),
		done:       make(chan struct{}),
		snapshots:  make(map[string]SnapshotFunc),
		logger:     logger,
	}
}

// SetSnapshot registers the function used to rehydrate new subscribers of table.
func (h *HubService) SetSnapshot(table string, fn SnapshotFunc) {
	h.snapMutex.Lock()
	defer h.snapMutex.Unlock()
	h.snapshots[table] = fn
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *HubService) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.conn] = sub.topics
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", total)
			h.sendSnapshots(sub)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client, topics := range h.clients {
				if !topics[msg.topic] {
					continue
				}
				if err := client.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()

		case <-ticker.C:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.PingMessage, nil); err != nil {
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) sendSnapshots(sub subscription) {
	h.snapMutex.RLock()
	defer h.snapMutex.RUnlock()

	for topic := range sub.topics {
		fn, ok := h.snapshots[topic]
		if !ok {
			continue
		}
		records, err := fn()
		if err != nil {
			h.logger.Warning("Snapshot for %s failed: %v", topic, err)
			continue
		}
		payload, err := EncodeEvent(topic, EventSnapshot, records, nil)
		if err != nil {
			h.logger.Error("Failed to encode snapshot for %s: %v", topic, err)
			continue
		}
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Error("Error sending snapshot: %v", err)
			h.mutex.Lock()
			delete(h.clients, sub.conn)
			h.mutex.Unlock()
			sub.conn.Close()
			return
		}
	}
}

// Register subscribes client to the given topics. It returns false when the hub has stopped.
func (h *HubService) Register(client Conn, topics ...string) bool {
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	select {
	case h.register <- subscription{conn: client, topics: set}:
		return true
	case <-h.done:
		return false
	}
}

func (h *HubService) Unregister(client Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish encodes a change event and queues it for the table's subscribers.
// Events are dropped with a warning when the queue is full.
func (h *HubService) Publish(table string, typ EventType, newRecord, oldRecord interface{}) {
	payload, err := EncodeEvent(table, typ, newRecord, oldRecord)
	if err != nil {
		h.logger.Error("Failed to encode %s event for %s: %v", typ, table, err)
		return
	}
	h.Broadcast(table, payload)
}

// Broadcast queues a raw payload for every subscriber of topic.
func (h *HubService) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	default:
		h.logger.Warning("Broadcast queue full, dropping %s message", topic)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
