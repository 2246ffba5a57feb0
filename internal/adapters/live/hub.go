// Package live pushes refreshed boards to websocket subscribers. Each board
// codename is a room; a subscriber gets the board it asked for on connect
// and every refresh of it afterwards.
package live

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
	"github.com/okian/ctfboard/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
	broadcastQueue = 64
)

// MessageTypeBoard tags a full board snapshot.
const MessageTypeBoard = "board"

// Message is what subscribers receive.
type Message struct {
	Type        string      `json:"type"`
	Codename    string      `json:"codename"`
	Board       model.Board `json:"board"`
	RefreshedAt time.Time   `json:"refreshed_at"`
}

type broadcast struct {
	room    string
	payload []byte
}

// Hub tracks subscribers by room. Run must be running for subscribers to
// register and for Publish to deliver.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan broadcast
	done       chan struct{}
	rooms      map[string]map[*client]struct{}
	count      atomic.Int64
	upgrader   websocket.Upgrader
	now        func() time.Time
	logger     logger.Logger
}

// NewHub creates a hub. Without WithOrigins only same-origin browsers may
// connect.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcast, broadcastQueue),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*client]struct{}),
		now:        time.Now,
		logger:     logger.Get().Named("live"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int { return int(h.count.Load()) }

// Run owns every room and every subscriber's send channel until ctx ends.
// A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for room, clients := range h.rooms {
				for c := range clients {
					h.drop(room, c)
				}
			}
			return

		case c := <-h.register:
			if h.rooms[c.room] == nil {
				h.rooms[c.room] = make(map[*client]struct{})
			}
			h.rooms[c.room][c] = struct{}{}
			h.count.Add(1)
			metrics.UpdateLiveSubscribers(h.Subscribers())
			h.logger.Debug(ctx, "subscriber joined", logger.String("codename", c.room), logger.Int("room_size", len(h.rooms[c.room])))

		case c := <-h.unregister:
			if _, ok := h.rooms[c.room][c]; ok {
				h.drop(c.room, c)
			}

		case b := <-h.broadcast:
			for c := range h.rooms[b.room] {
				select {
				case c.send <- b.payload:
				default:
					h.logger.Warn(ctx, "slow subscriber dropped", logger.String("codename", b.room))
					h.drop(b.room, c)
				}
			}
			metrics.RecordLiveBroadcast()
		}
	}
}

func (h *Hub) drop(room string, c *client) {
	close(c.send)
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	h.count.Add(-1)
	metrics.UpdateLiveSubscribers(h.Subscribers())
}

// Publish sends board to everyone watching codename. It never blocks; when
// the hub is backed up the update is skipped and the next refresh carries it.
func (h *Hub) Publish(ctx context.Context, codename string, board model.Board) {
	payload, err := h.encode(codename, board)
	if err != nil {
		h.logger.Error(ctx, "encode board", logger.String("codename", codename), logger.Error(err))
		return
	}
	select {
	case h.broadcast <- broadcast{room: codename, payload: payload}:
	default:
		metrics.RecordErrorByComponent("live", "broadcast_full")
		h.logger.Warn(ctx, "broadcast queue full", logger.String("codename", codename))
	}
}

func (h *Hub) encode(codename string, board model.Board) ([]byte, error) {
	if board == nil {
		board = model.Board{}
	}
	return json.Marshal(Message{Type: MessageTypeBoard, Codename: codename, Board: board, RefreshedAt: h.now().UTC()})
}
