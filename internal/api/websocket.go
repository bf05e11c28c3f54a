package api

import (
	"encoding/json"
	"net/http"
	"time"

	"bourse/internal/common"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is handled by the cors middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans settled trades out to connected websocket clients. It implements
// engine.TradeReporter; ReportTrade never blocks the matching engine.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// ReportTrade queues the trade for broadcast. If the feed is saturated the
// trade is dropped from the feed; settlement has already happened and the
// feed is best-effort.
func (h *Hub) ReportTrade(trade common.Trade) {
	payload, err := json.Marshal(TradeMessage{
		TradeID:   trade.ID,
		Buyer:     trade.Buyer,
		Seller:    trade.Seller,
		Taker:     trade.Taker.String(),
		Price:     trade.Price,
		Quantity:  trade.Quantity,
		Timestamp: trade.Timestamp,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("trade marshal failed")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn().Str("trade_id", trade.ID).Msg("trade feed saturated, dropping")
	}
}

func (h *Hub) run(t *tomb.Tomb) {
	// Closing done unblocks any client still trying to unregister.
	defer close(h.done)
	for {
		select {
		case <-t.Dying():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.log.Info().Int("total", len(h.clients)).Msg("client connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info().Int("total", len(h.clients)).Msg("client disconnected")
			}
		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Client send buffer full, disconnect.
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// drop hands the client back to the hub, or returns immediately if the hub
// has already shut down.
func (c *client) drop() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump discards inbound frames; the feed is one-way. It exists to notice
// closes and keep pong handling alive.
func (c *client) readPump() {
	defer func() {
		c.drop()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, sendBufferSize)}
	s.hub.register <- c
	go c.writePump()
	go c.readPump()
}
