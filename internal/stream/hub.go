package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientMsg representa uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	EventID string `json:"eventId"` // requerido em subscribe/unsubscribe
}

const writeWait = 5 * time.Second

// client serializa as escritas: o gorilla não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	seen map[string]int // última versão enviada por evento
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, seen: make(map[string]int)}
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(b)
}

func (c *client) writeLocked(b []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *client) send(eventID string, version int, b []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(eventID, version, b)
}

// sendLocked descarta versões mais antigas que a última enviada ao cliente
func (c *client) sendLocked(eventID string, version int, b []byte) (bool, error) {
	if last, ok := c.seen[eventID]; ok && version < last {
		return false, nil
	}
	if err := c.writeLocked(b); err != nil {
		return false, err
	}
	c.seen[eventID] = version
	return true, nil
}

// Hub gerencia conexões WebSocket e assinaturas por evento
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*client]struct{} // eventID -> conexões inscritas

	// Snapshot, se definido, envia a última odd conhecida logo após o subscribe
	Snapshot    func(ctx context.Context, eventID string) ([]byte, bool)
	OnDelivered func(n int) // métricas
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Cada cliente pode se inscrever em vários eventos.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newClient(conn)
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.EventID == "" {
				continue
			}
			// o write lock segura os broadcasts deste cliente até o snapshot sair
			c.mu.Lock()
			h.subscribe(msg.EventID, c)
			if h.Snapshot != nil {
				if b, ok := h.Snapshot(r.Context(), msg.EventID); ok {
					var u Update
					if err := json.Unmarshal(b, &u); err == nil {
						_, _ = c.sendLocked(msg.EventID, u.Payload.Version, b)
					}
				}
			}
			c.mu.Unlock()
		case "unsubscribe":
			h.unsubscribe(msg.EventID, c)
			c.mu.Lock()
			delete(c.seen, msg.EventID)
			c.mu.Unlock()
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
}

func (h *Hub) subscribe(eventID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[eventID]; !ok {
		h.subs[eventID] = make(map[*client]struct{})
	}
	h.subs[eventID][c] = struct{}{}
}

func (h *Hub) unsubscribe(eventID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[eventID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, eventID)
		}
	}
}

// drop remove a conexão de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers devolve quantas conexões estão inscritas no evento
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

// Broadcast envia a mensagem crua para os inscritos em eventID e devolve
// quantos clientes receberam. Clientes que já viram uma versão maior são pulados.
func (h *Hub) Broadcast(eventID string, version int, b []byte) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[eventID]))
	for c := range h.subs[eventID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		sent, err := c.send(eventID, version, b)
		if err != nil {
			h.log.Debug("ws write failed", zap.String("event_id", eventID), zap.Error(err))
			continue
		}
		if sent {
			n++
		}
	}
	if n > 0 && h.OnDelivered != nil {
		h.OnDelivered(n)
	}
	return n
}
