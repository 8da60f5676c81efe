package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cardroom/cardroom/pkg/wire"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Outbound buffer per connection. A session that cannot drain this is
	// dropped rather than allowed to stall the emitting room.
	sendBufferSize = 256
)

// session is one websocket connection. The writer goroutine owns the socket
// for writes; everything outbound goes through the send channel.
type session struct {
	srv  *Server
	conn *websocket.Conn
	log  slog.Logger

	// identity is empty until join_lobby; assigned or restored there.
	mtx      sync.Mutex
	identity string
	nickname string

	limiter *rate.Limiter
	send    chan *wire.Message
	closed  chan struct{}
	once    sync.Once
}

func newSession(srv *Server, conn *websocket.Conn) *session {
	return &session{
		srv:     srv,
		conn:    conn,
		log:     srv.log,
		limiter: rate.NewLimiter(rate.Limit(srv.cfg.RateLimit), srv.cfg.RateBurst),
		send:    make(chan *wire.Message, sendBufferSize),
		closed:  make(chan struct{}),
	}
}

func (sess *session) setIdentity(identity, nickname string) {
	sess.mtx.Lock()
	defer sess.mtx.Unlock()
	sess.identity = identity
	sess.nickname = nickname
}

func (sess *session) Identity() string {
	sess.mtx.Lock()
	defer sess.mtx.Unlock()
	return sess.identity
}

func (sess *session) Nickname() string {
	sess.mtx.Lock()
	defer sess.mtx.Unlock()
	return sess.nickname
}

// trySend queues msg without blocking. A full buffer drops the message; the
// client's resync watchdog recovers the state later.
func (sess *session) trySend(msg *wire.Message) {
	select {
	case sess.send <- msg:
	case <-sess.closed:
	default:
		sess.log.Warnf("send buffer full for %s, dropping %s", sess.Identity(), msg.Type)
	}
}

// close tears the session down once. Safe from any goroutine.
func (sess *session) close() {
	sess.once.Do(func() {
		close(sess.closed)
		sess.conn.Close()
	})
}

// readPump reads client messages and hands them to the gateway. It exits on
// socket error, after which the gateway marks the identity disconnected.
func (sess *session) readPump() {
	defer func() {
		sess.srv.sessionClosed(sess)
		sess.close()
	}()
	sess.conn.SetReadLimit(maxMessageSize)
	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				sess.log.Debugf("read error for %s: %v", sess.Identity(), err)
			}
			return
		}

		var msg wire.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			sess.sendError("", wire.CodeInvalidAction, "malformed message: "+err.Error())
			continue
		}
		if !sess.limiter.Allow() {
			sess.srv.metrics.commandRejected(wire.CodeRateLimited)
			sess.sendError(msg.RoomID, wire.CodeRateLimited, "slow down")
			continue
		}
		sess.srv.handleMessage(sess, &msg)
	}
}

// writePump owns the socket for writes: queued messages plus keepalive pings.
func (sess *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.close()
	}()
	for {
		select {
		case msg := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sess.closed:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			sess.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (sess *session) sendError(roomID string, code wire.ErrorCode, message string) {
	msg := wire.MustCompose(wire.MsgError, wire.Error{Code: code, Message: message})
	if roomID != "" {
		msg = msg.WithRoom(roomID)
	}
	sess.trySend(msg)
}
