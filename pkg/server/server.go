// Package server is the session gateway: it owns the websocket surface,
// client identity, the lobby, and the routing of commands into room
// runtimes. Rooms are authoritative for game state; the gateway never
// touches it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pbnjay/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/procfs"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/room"
	"github.com/cardroom/cardroom/pkg/wire"
)

// Config carries the gateway knobs. Zero values select defaults.
type Config struct {
	LogBackend *logging.LogBackend

	// RNGSeed makes room shuffles deterministic when nonzero. Tests only.
	RNGSeed int64

	// RateLimit and RateBurst bound inbound messages per connection.
	RateLimit float64
	RateBurst int

	// Room lifecycle knobs, passed through to every room.
	ReminderInterval time.Duration
	BootThreshold    int
	AutoBootDelay    time.Duration
	GraceWindow      time.Duration
	AIDelay          time.Duration
}

// Server is the gateway. It implements room.Sender: rooms address messages
// to identities and the gateway maps them onto live sessions.
type Server struct {
	cfg     Config
	log     slog.Logger
	roomLog slog.Logger
	gameLog slog.Logger
	metrics *metrics

	registry *room.Registry
	lobby    *lobby
	upgrader websocket.Upgrader
	start    time.Time

	mtx      sync.RWMutex
	sessions map[string]*session

	rngMtx sync.Mutex
	rngSrc *rand.Rand
}

// New builds a gateway. The caller owns the HTTP listener; mount Router.
func New(cfg Config) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 40
	}
	seed := cfg.RNGSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var log, roomLog, gameLog slog.Logger = slog.Disabled, slog.Disabled, slog.Disabled
	if cfg.LogBackend != nil {
		log = cfg.LogBackend.Logger("GATE")
		roomLog = cfg.LogBackend.Logger("ROOM")
		gameLog = cfg.LogBackend.Logger("GAME")
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		roomLog:  roomLog,
		gameLog:  gameLog,
		metrics:  newMetrics(),
		registry: room.NewRegistry(),
		lobby:    newLobby(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The TUI client connects from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		start:    time.Now(),
		sessions: make(map[string]*session),
		rngSrc:   rand.New(rand.NewSource(seed)),
	}
	return s
}

// Router returns the HTTP surface: the websocket upgrade plus the health,
// stats and metrics endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry,
		promhttp.HandlerOpts{}))
	return r
}

// Run serves addr until ctx is canceled, then drains with a short timeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go s.statusLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Send implements room.Sender. Messages to identities without a live
// session are dropped; the client resyncs on reconnect.
func (s *Server) Send(identity string, msg *wire.Message) {
	s.mtx.RLock()
	sess, ok := s.sessions[identity]
	s.mtx.RUnlock()
	if ok {
		sess.trySend(msg)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("upgrade failed: %v", err)
		return
	}
	sess := newSession(s, conn)
	s.metrics.socketsActive.Inc()
	go sess.writePump()
	go sess.readPump()
}

// sessionClosed runs when a socket drops: unregister, free the lobby seat,
// and start the disconnect grace in every room the identity is seated in.
func (s *Server) sessionClosed(sess *session) {
	s.metrics.socketsActive.Dec()
	identity := sess.Identity()
	if identity == "" {
		return
	}

	s.mtx.Lock()
	if s.sessions[identity] == sess {
		delete(s.sessions, identity)
	} else {
		// A newer session for this identity took over; nothing to release.
		s.mtx.Unlock()
		return
	}
	s.mtx.Unlock()

	s.log.Debugf("session closed for %s", identity)
	if t := s.lobby.tableOf(identity); t != nil && !t.Started {
		s.removeFromTable(sess, t)
	}
	for _, r := range s.registry.RoomsFor(identity) {
		r.Disconnect(identity)
	}
}

// ---------- message routing ----------

func (s *Server) handleMessage(sess *session, msg *wire.Message) {
	s.metrics.commandReceived(msg.Type)

	if msg.Type == wire.MsgJoinLobby {
		s.handleJoinLobby(sess, msg)
		return
	}
	identity := sess.Identity()
	if identity == "" {
		sess.sendError(msg.RoomID, wire.CodeInvalidAction, "join the lobby first")
		return
	}

	switch msg.Type {
	case wire.MsgCreateTable:
		s.handleCreateTable(sess, msg)
	case wire.MsgJoinTable:
		s.handleJoinTable(sess, msg)
	case wire.MsgLeaveTable:
		s.handleLeaveTable(sess)
	case wire.MsgStartGame:
		s.handleStartGame(sess)
	case wire.MsgRestartGame:
		s.handleRestartGame(sess)
	default:
		s.routeToRoom(sess, msg)
	}
}

func (s *Server) handleJoinLobby(sess *session, msg *wire.Message) {
	var jl wire.JoinLobby
	if err := msg.Decode(&jl); err != nil {
		sess.sendError("", wire.CodeInvalidAction, err.Error())
		return
	}
	identity := jl.Identity
	if identity == "" {
		identity = uuid.NewString()
	}
	nickname := jl.Nickname
	if nickname == "" {
		nickname = "player-" + identity[:8]
	}
	sess.setIdentity(identity, nickname)

	s.mtx.Lock()
	if prev, ok := s.sessions[identity]; ok && prev != sess {
		prev.close()
	}
	s.sessions[identity] = sess
	s.mtx.Unlock()

	s.log.Infof("%s joined the lobby as %s", nickname, identity)
	sess.trySend(wire.MustCompose(wire.MsgWelcome, wire.Welcome{Identity: identity}))
	sess.trySend(wire.MustCompose(wire.MsgLobbyState, s.lobbyState()))

	// Reattach any seats this identity still holds, pushing fresh snapshots.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, r := range s.registry.RoomsFor(identity) {
		if ok, err := r.Reattach(ctx, identity); err != nil {
			s.log.Warnf("reattach %s to room %s: %v", identity, r.ID(), err)
		} else if ok {
			s.log.Infof("%s reattached to room %s", nickname, r.ID())
		}
	}
}

func (s *Server) handleCreateTable(sess *session, msg *wire.Message) {
	var req wire.CreateTable
	if err := msg.Decode(&req); err != nil {
		sess.sendError("", wire.CodeInvalidAction, err.Error())
		return
	}
	t, err := s.lobby.createTable(sess.Identity(), sess.Nickname(), req)
	if err != nil {
		sess.sendError("", wire.CodeInvalidAction, err.Error())
		return
	}
	sess.trySend(wire.MustCompose(wire.MsgJoinedTable, wire.JoinedTable{
		Table: t.info(), SeatIndex: 0,
	}))
	s.broadcastLobby()
}

func (s *Server) handleJoinTable(sess *session, msg *wire.Message) {
	var req wire.JoinTable
	if err := msg.Decode(&req); err != nil {
		sess.sendError("", wire.CodeInvalidAction, err.Error())
		return
	}
	t, seat, err := s.lobby.joinTable(sess.Identity(), sess.Nickname(), req)
	if err != nil {
		sess.sendError("", wire.CodeInvalidAction, err.Error())
		return
	}
	sess.trySend(wire.MustCompose(wire.MsgJoinedTable, wire.JoinedTable{
		Table: t.info(), SeatIndex: seat,
	}))
	s.broadcastTable(t, wire.MustCompose(wire.MsgPlayerJoined, wire.PlayerJoined{
		TableID: t.ID, Name: sess.Nickname(), SeatIndex: seat,
	}))
	s.broadcastTable(t, wire.MustCompose(wire.MsgTableUpdated,
		wire.TableUpdated{Table: t.info()}))
	s.broadcastLobby()
}

func (s *Server) handleLeaveTable(sess *session) {
	t := s.lobby.tableOf(sess.Identity())
	if t == nil {
		sess.sendError("", wire.CodeInvalidAction, "you are not at a table")
		return
	}
	if t.Started {
		sess.sendError("", wire.CodeInvalidAction,
			"game already started; use leave_game")
		return
	}
	s.removeFromTable(sess, t)
	sess.trySend(wire.MustCompose(wire.MsgLeftTable, wire.LeftTable{TableID: t.ID}))
}

// removeFromTable frees the lobby seat and tells everyone who cares.
func (s *Server) removeFromTable(sess *session, t *table) {
	left, removed := s.lobby.leaveTable(sess.Identity())
	if left == nil {
		return
	}
	if removed {
		s.broadcastAll(wire.MustCompose(wire.MsgTableRemoved,
			wire.TableRemoved{TableID: t.ID}))
	} else {
		s.broadcastTable(t, wire.MustCompose(wire.MsgPlayerLeft, wire.PlayerLeft{
			TableID: t.ID, Name: sess.Nickname(),
		}))
		s.broadcastTable(t, wire.MustCompose(wire.MsgTableUpdated,
			wire.TableUpdated{Table: t.info()}))
	}
	s.broadcastLobby()
}

func (s *Server) handleStartGame(sess *session) {
	identity := sess.Identity()
	t := s.lobby.tableOf(identity)
	if t == nil {
		sess.sendError("", wire.CodeInvalidAction, "you are not at a table")
		return
	}
	if t.Host != identity {
		sess.sendError("", wire.CodeInvalidAction, "only the host starts the game")
		return
	}
	if t.Started {
		sess.sendError("", wire.CodeInvalidAction, "game already started")
		return
	}
	if err := s.startRoomForTable(t); err != nil {
		sess.sendError("", wire.CodeInternal, err.Error())
	}
}

// startRoomForTable allocates a room for the table's seats. Unoccupied
// seats become AI.
func (s *Server) startRoomForTable(t *table) error {
	roomID := uuid.NewString()
	r, err := room.New(room.Config{
		ID:       roomID,
		Kind:     t.Kind,
		Seats:    t.MaxPlayers,
		Humans:   t.humans(),
		Settings: games.SettingsFromWire(t.Kind, t.Settings, t.MaxPlayers),
		Rng:      s.newRng(),
		Log:      s.roomLog,
		GameLog:  s.gameLog,
		Sender:   s,
		Observer: s.metrics,
		OnEmpty:  s.roomEmptied,

		ReminderInterval: s.cfg.ReminderInterval,
		BootThreshold:    s.cfg.BootThreshold,
		AutoBootDelay:    s.cfg.AutoBootDelay,
		GraceWindow:      s.cfg.GraceWindow,
		AIDelay:          s.cfg.AIDelay,
	})
	if err != nil {
		return err
	}
	s.registry.Put(r)
	s.metrics.roomsActive.Inc()
	s.lobby.markStarted(t.ID, roomID)
	s.log.Infof("room %s started for table %s (%s)", roomID, t.ID, t.Kind)

	s.broadcastTable(t, wire.MustCompose(wire.MsgGameStarted, wire.GameStarted{
		RoomID: roomID, TableID: t.ID, Kind: string(t.Kind),
	}))
	s.broadcastLobby()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Start(ctx); err != nil {
		s.registry.Remove(roomID)
		s.metrics.roomsActive.Dec()
		s.lobby.reopen(t.ID)
		return err
	}
	return nil
}

// handleRestartGame tears down a finished room and deals a fresh game for
// the same table.
func (s *Server) handleRestartGame(sess *session) {
	identity := sess.Identity()
	t := s.lobby.tableOf(identity)
	if t == nil || !t.Started {
		sess.sendError("", wire.CodeInvalidAction, "no started table to restart")
		return
	}
	if t.Host != identity {
		sess.sendError("", wire.CodeInvalidAction, "only the host restarts the game")
		return
	}
	if r, ok := s.registry.Lookup(t.RoomID); ok {
		if !r.GameOver() {
			sess.sendError("", wire.CodeInvalidAction, "game still in progress")
			return
		}
		s.registry.Remove(t.RoomID)
		s.metrics.roomsActive.Dec()
	}
	s.broadcastTable(t, wire.MustCompose(wire.MsgGameRestarting,
		wire.GameRestarting{TableID: t.ID, OldRoomID: t.RoomID}))
	s.lobby.reopen(t.ID)
	if err := s.startRoomForTable(t); err != nil {
		sess.sendError("", wire.CodeInternal, err.Error())
	}
}

// routeToRoom forwards a room-addressed command into its runtime. Errors go
// back to the submitter only.
func (s *Server) routeToRoom(sess *session, msg *wire.Message) {
	identity := sess.Identity()
	if msg.RoomID == "" {
		sess.sendError("", wire.CodeInvalidAction,
			"message "+string(msg.Type)+" needs a roomId")
		return
	}
	r, ok := s.registry.Lookup(msg.RoomID)
	if !ok {
		sess.sendError(msg.RoomID, wire.CodeGameLost,
			"room "+msg.RoomID+" is gone")
		return
	}
	if msg.Type == wire.MsgBootPlayer {
		if t, ok := s.lobby.tableByRoom(msg.RoomID); ok && t.Host != identity {
			sess.sendError(msg.RoomID, wire.CodeInvalidAction,
				"only the host boots players")
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := r.Submit(ctx, &room.Command{
		Identity:         identity,
		Type:             msg.Type,
		ExpectedStateSeq: msg.ExpectedStateSeq,
		Payload:          msg.Payload,
	})
	if err != nil {
		code := room.CodeOf(err)
		s.metrics.commandRejected(code)
		sess.sendError(msg.RoomID, code, err.Error())
	}
}

// roomEmptied is the room's OnEmpty callback: the last human left, so tear
// down the room and its table.
func (s *Server) roomEmptied(roomID string) {
	s.registry.Remove(roomID)
	s.metrics.roomsActive.Dec()
	if t, ok := s.lobby.tableByRoom(roomID); ok {
		s.lobby.remove(t.ID)
		s.broadcastAll(wire.MustCompose(wire.MsgTableRemoved,
			wire.TableRemoved{TableID: t.ID}))
		s.broadcastLobby()
	}
	s.log.Infof("room %s torn down (no humans)", roomID)
}

// ---------- broadcast helpers ----------

func (s *Server) lobbyState() wire.LobbyState {
	s.mtx.RLock()
	connected := len(s.sessions)
	s.mtx.RUnlock()
	return s.lobby.state(connected)
}

func (s *Server) broadcastLobby() {
	s.broadcastAll(wire.MustCompose(wire.MsgLobbyState, s.lobbyState()))
}

func (s *Server) broadcastAll(msg *wire.Message) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	for _, sess := range s.sessions {
		sess.trySend(msg)
	}
}

func (s *Server) broadcastTable(t *table, msg *wire.Message) {
	for _, seat := range t.Seats {
		s.Send(seat.Identity, msg)
	}
}

// newRng derives an independent rng for one room.
func (s *Server) newRng() *rand.Rand {
	s.rngMtx.Lock()
	defer s.rngMtx.Unlock()
	return rand.New(rand.NewSource(s.rngSrc.Int63()))
}

// ---------- stats ----------

type statsPayload struct {
	Uptime      string `json:"uptime"`
	Rooms       int    `json:"rooms"`
	Sockets     int    `json:"sockets"`
	Goroutines  int    `json:"goroutines"`
	RSSBytes    uint64 `json:"rssBytes"`
	SysMemBytes uint64 `json:"sysMemBytes"`
}

func (s *Server) stats() statsPayload {
	s.mtx.RLock()
	sockets := len(s.sessions)
	s.mtx.RUnlock()

	var rss uint64
	if proc, err := procfs.Self(); err == nil {
		if stat, err := proc.Stat(); err == nil {
			rss = uint64(stat.ResidentMemory())
		}
	}
	return statsPayload{
		Uptime:      time.Since(s.start).Round(time.Second).String(),
		Rooms:       s.registry.Count(),
		Sockets:     sockets,
		Goroutines:  runtime.NumGoroutine(),
		RSSBytes:    rss,
		SysMemBytes: memory.TotalMemory(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats())
}

// statusLoop logs a one line health summary periodically.
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.stats()
			s.log.Infof("status: rooms=%d sockets=%d goroutines=%d rss=%dMB",
				st.Rooms, st.Sockets, st.Goroutines, st.RSSBytes>>20)
		}
	}
}
