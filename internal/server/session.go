package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/routeview/internal/viewer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	queueSize  = 256
	readLimit  = 64 << 10
)

var errSessionClosed = errors.New("session closed")

// session is one browser connection driving one viewer.View.
type session struct {
	conn     *websocket.Conn
	view     *viewer.View
	pending  map[uint64]chan reply
	objects  map[string]interface{}
	queue    chan func()
	done     chan struct{}
	log      zerolog.Logger
	id       string
	nextID   atomic.Uint64
	lastRev  uint64
	writeMu  sync.Mutex
	mu       sync.Mutex
	doneOnce sync.Once
}

func newSession(conn *websocket.Conn) *session {
	id := uuid.NewString()
	return &session{
		id:      id,
		conn:    conn,
		log:     log.With().Str("session", id).Logger(),
		pending: make(map[uint64]chan reply),
		objects: make(map[string]interface{}),
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
	}
}

// HandleSession upgrades the connection and runs a viewer for it until the
// browser disconnects.
func (s *ServerContext) HandleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	sess := newSession(conn)
	sess.log.Info().Str("ip", r.RemoteAddr).Msg("Session opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	view := viewer.New(*s.Config, &remoteFactory{s: sess, timeout: s.AckTimeout}, s.Router,
		viewer.WithLogger(sess.log),
		viewer.WithAccessToken(s.AccessToken),
	)
	view.Subscribe(sess.pushState)
	sess.view = view

	go sess.runQueue()
	go sess.keepalive()

	sess.enqueue(func() {
		if err := view.Mount(ctx); err != nil {
			sess.log.Warn().Err(err).Msg("View mount failed")
		}
	})

	sess.readLoop(ctx)

	cancel()
	sess.close()
	view.Unmount()
	_ = conn.Close()

	sess.log.Info().Msg("Session closed")
}

// readLoop decodes browser messages until the connection fails.
// Replies are delivered directly, everything else goes through the queue.
func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var raw inbound
		if err := s.conn.ReadJSON(&raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		msg, err := raw.decode()
		if err != nil {
			s.log.Warn().Err(err).Msg("Dropping malformed message")
			continue
		}

		switch m := msg.(type) {
		case replyMessage:
			s.resolve(m.ID, m.Reply)
		case moveEvent:
			if target, ok := s.lookup(m.Target).(*remoteMap); ok {
				if m.Viewport != nil {
					target.resized(*m.Viewport)
				}
				s.enqueue(func() { target.moved(m.Center, m.Zoom) })
			}
		case dragEndEvent:
			if target, ok := s.lookup(m.Target).(*remoteMarker); ok {
				s.enqueue(func() { target.dragged(m.LngLat) })
			} else {
				s.log.Debug().Str("target", m.Target).Msg("Drag from unknown marker")
			}
		case styleIntent:
			s.enqueue(func() {
				if err := s.view.SetStyle(ctx, m.Style); err != nil {
					s.log.Warn().Err(err).Str("style", m.Style).Msg("Style switch failed")
				}
			})
		case logMarkersIntent:
			s.enqueue(s.view.LogMarkers)
		}
	}
}

// runQueue executes events one at a time, in arrival order.
func (s *session) runQueue() {
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.done:
			return
		}
	}
}

func (s *session) enqueue(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.done:
	default:
		s.log.Warn().Msg("Event queue full, dropping event")
	}
}

func (s *session) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.log.Debug().Err(err).Msg("Ping failed")
				return
			}
		case <-s.done:
			return
		}
	}
}

// pushState sends a state snapshot unless a newer one was already sent.
func (s *session) pushState(st viewer.State) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if st.Revision <= s.lastRev {
		return
	}
	s.lastRev = st.Revision

	if err := s.writeLocked(stateMessage{Type: msgState, State: st}); err != nil {
		s.log.Debug().Err(err).Msg("Failed to push state")
	}
}

func (s *session) newID(prefix string) string {
	return prefix + "-" + strconv.FormatUint(s.nextID.Add(1), 10)
}

// send writes a command without waiting for an answer.
func (s *session) send(cmd command) error {
	cmd.Type = msgCommand
	cmd.ID = s.nextID.Add(1)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writeLocked(cmd)
}

func (s *session) sendLogged(cmd command) {
	if err := s.send(cmd); err != nil {
		s.log.Debug().Err(err).Str("op", cmd.Op).Str("target", cmd.Target).Msg("Command not delivered")
	}
}

// call writes a command and waits for its ack or nack.
func (s *session) call(ctx context.Context, cmd command) (reply, error) {
	cmd.Type = msgCommand
	cmd.ID = s.nextID.Add(1)

	ch := make(chan reply, 1)
	s.mu.Lock()
	s.pending[cmd.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, cmd.ID)
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	err := s.writeLocked(cmd)
	s.writeMu.Unlock()
	if err != nil {
		return reply{}, err
	}

	select {
	case r := <-ch:
		return r, r.Err
	case <-ctx.Done():
		return reply{}, fmt.Errorf("%s: no answer from client: %w", cmd.Op, ctx.Err())
	case <-s.done:
		return reply{}, errSessionClosed
	}
}

func (s *session) resolve(id uint64, r reply) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	s.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- r:
	default:
	}
}

func (s *session) writeLocked(v interface{}) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *session) register(id string, obj interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[id] = obj
}

func (s *session) unregister(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.objects, id)
	}
}

func (s *session) lookup(id string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[id]
}

func (s *session) close() {
	s.doneOnce.Do(func() { close(s.done) })
}
