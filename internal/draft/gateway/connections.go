// Package gateway fans draft events out to WebSocket clients. It consumes
// the JetStream event stream, tracks which teams are connected to which
// draft, and serves the reconnect state endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/draft/events"
)

// ConnectionManager is the process-local presence registry: it knows which
// teams hold live connections to which drafts and fans events out to them.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Connection]bool // keyed by draft ID

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	broadcastCh chan broadcast
}

// Connection is one client WebSocket, bound to a draft and a team.
type Connection struct {
	ID      string
	TeamID  uuid.UUID
	DraftID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPong    time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcast struct {
	draftID uuid.UUID
	event   events.Event
	// teamID, when set, restricts delivery to that team's connections
	// (PickRejected is never broadcast).
	teamID uuid.UUID
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO restrict origins once the frontend host is fixed
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Start drains the broadcast channel until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

// Upgrade promotes an HTTP request to a WebSocket and registers the
// connection. The caller has already verified draft membership.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, teamID, draftID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		TeamID:      teamID,
		DraftID:     draftID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPong:    time.Now(),
	}
	cm.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("team_id", teamID.String()).
		Str("draft_id", draftID.String()).
		Msg("client connected")
	return nil
}

func (cm *ConnectionManager) register(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[c.DraftID] == nil {
		cm.connections[c.DraftID] = make(map[*Connection]bool)
	}
	cm.connections[c.DraftID][c] = true
}

func (cm *ConnectionManager) unregister(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conns, ok := cm.connections[c.DraftID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.Send)
	if len(conns) == 0 {
		delete(cm.connections, c.DraftID)
	}

	log.Info().
		Str("connection_id", c.ID).
		Str("team_id", c.TeamID.String()).
		Str("draft_id", c.DraftID.String()).
		Msg("client disconnected")
}

// BroadcastToDraft queues an event for every connection on the draft.
func (cm *ConnectionManager) BroadcastToDraft(draftID uuid.UUID, ev events.Event) {
	select {
	case cm.broadcastCh <- broadcast{draftID: draftID, event: ev}:
	default:
		log.Warn().Str("draft_id", draftID.String()).Msg("broadcast channel full, dropping event")
	}
}

// SendToTeam queues an event for a single team's connections. Used for
// caller-directed events like PickRejected.
func (cm *ConnectionManager) SendToTeam(draftID, teamID uuid.UUID, ev events.Event) {
	select {
	case cm.broadcastCh <- broadcast{draftID: draftID, event: ev, teamID: teamID}:
	default:
		log.Warn().
			Str("draft_id", draftID.String()).
			Str("team_id", teamID.String()).
			Msg("broadcast channel full, dropping team event")
	}
}

func (cm *ConnectionManager) deliver(msg broadcast) {
	cm.mu.RLock()
	var targets []*Connection
	for c := range cm.connections[msg.draftID] {
		if msg.teamID != uuid.Nil && c.TeamID != msg.teamID {
			continue
		}
		targets = append(targets, c)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(msg.event)
	if err != nil {
		log.Error().Err(err).Msg("marshal event for broadcast")
		return
	}

	for _, c := range targets {
		select {
		case c.Send <- data:
		default:
			// Slow consumer; drop the connection rather than block the fan-out.
			log.Warn().
				Str("connection_id", c.ID).
				Str("team_id", c.TeamID.String()).
				Msg("send buffer full, closing connection")
			cm.unregister(c)
			c.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(msg.event.Type)).
		Str("draft_id", msg.draftID.String()).
		Int("connections", len(targets)).
		Msg("event delivered")
}

// Stats summarizes active connections per draft.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveDrafts     int            `json:"active_drafts"`
	DraftConnections map[string]int `json:"draft_connections"`
}

func (cm *ConnectionManager) Stats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	s := Stats{DraftConnections: make(map[string]int)}
	for draftID, conns := range cm.connections {
		s.TotalConnections += len(conns)
		s.DraftConnections[draftID.String()] = len(conns)
	}
	s.ActiveDrafts = len(cm.connections)
	return s
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPong = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected close")
			}
			return
		}
		// Clients are read-only over the socket; commands go through the
		// HTTP API. Inbound frames are logged and ignored.
		log.Debug().
			Str("connection_id", c.ID).
			Str("team_id", c.TeamID.String()).
			RawJSON("message", message).
			Msg("ignoring client frame")
	}
}
