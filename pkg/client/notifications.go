package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/cardroom/cardroom/pkg/wire"
)

// Following are the notification types. Add new types at the bottom of this
// list, then add a notifyX() to NotificationManager and initialize a new
// container in NewNotificationManager().

const onWelcomeNtfnType = "onWelcome"

// OnWelcomeNtfn is the handler for the server welcome, carrying the identity
// issued (or restored) for this session.
type OnWelcomeNtfn func(identity string, ts time.Time)

func (_ OnWelcomeNtfn) typ() string { return onWelcomeNtfnType }

const onLobbyStateNtfnType = "onLobbyState"

// OnLobbyStateNtfn is the handler for full lobby listings.
type OnLobbyStateNtfn func(wire.LobbyState, time.Time)

func (_ OnLobbyStateNtfn) typ() string { return onLobbyStateNtfnType }

const onTableUpdatedNtfnType = "onTableUpdated"

// OnTableUpdatedNtfn is the handler for single-table lobby updates.
type OnTableUpdatedNtfn func(wire.TableInfo, time.Time)

func (_ OnTableUpdatedNtfn) typ() string { return onTableUpdatedNtfnType }

const onPlayerJoinedNtfnType = "onPlayerJoined"

// OnPlayerJoinedNtfn is the handler for players joining our table.
type OnPlayerJoinedNtfn func(wire.PlayerJoined, time.Time)

func (_ OnPlayerJoinedNtfn) typ() string { return onPlayerJoinedNtfnType }

const onPlayerLeftNtfnType = "onPlayerLeft"

// OnPlayerLeftNtfn is the handler for players leaving our table or room.
type OnPlayerLeftNtfn func(wire.PlayerLeft, time.Time)

func (_ OnPlayerLeftNtfn) typ() string { return onPlayerLeftNtfnType }

const onGameStartedNtfnType = "onGameStarted"

// OnGameStartedNtfn is the handler for a table turning into a running room.
type OnGameStartedNtfn func(wire.GameStarted, time.Time)

func (_ OnGameStartedNtfn) typ() string { return onGameStartedNtfnType }

const onGameStateNtfnType = "onGameState"

// OnGameStateNtfn is the handler for accepted snapshots. Only snapshots that
// pass the store's monotonic seq guard are delivered here.
type OnGameStateNtfn func(*wire.GameState, time.Time)

func (_ OnGameStateNtfn) typ() string { return onGameStateNtfnType }

const onYourTurnNtfnType = "onYourTurn"

// OnYourTurnNtfn is the handler for accepted (non-stale) turn prompts.
type OnYourTurnNtfn func(*wire.YourTurn, time.Time)

func (_ OnYourTurnNtfn) typ() string { return onYourTurnNtfnType }

const onDomainEventNtfnType = "onDomainEvent"

// OnDomainEventNtfn is the handler for animation events (card_played,
// trick_complete, ...). The raw message is passed through so handlers decode
// only the types they care about.
type OnDomainEventNtfn func(*wire.Message, time.Time)

func (_ OnDomainEventNtfn) typ() string { return onDomainEventNtfnType }

const onPlayerBootedNtfnType = "onPlayerBooted"

// OnPlayerBootedNtfn is the handler for a seat being substituted with AI.
type OnPlayerBootedNtfn func(wire.PlayerBooted, time.Time)

func (_ OnPlayerBootedNtfn) typ() string { return onPlayerBootedNtfnType }

const onGameOverNtfnType = "onGameOver"

// OnGameOverNtfn is the handler for the end of a game.
type OnGameOverNtfn func(roomID string, result *wire.GameOver, ts time.Time)

func (_ OnGameOverNtfn) typ() string { return onGameOverNtfnType }

const onServerErrorNtfnType = "onServerError"

// OnServerErrorNtfn is the handler for error messages from the gateway.
type OnServerErrorNtfn func(roomID string, e wire.Error, ts time.Time)

func (_ OnServerErrorNtfn) typ() string { return onServerErrorNtfnType }

// UINotificationsConfig is the configuration for how UI notifications are
// emitted.
type UINotificationsConfig struct {
	// GameStarted flags whether to emit a notification when a game starts.
	GameStarted bool

	// YourTurn flags whether to emit a notification when it becomes the
	// local player's turn.
	YourTurn bool

	// MaxLength is the max length of messages emitted.
	MaxLength int

	// EmitInterval is the interval to wait for additional messages before
	// emitting a notification. Multiple messages received within this
	// interval will only generate a single UI notification.
	EmitInterval time.Duration

	// CancelEmissionChannel may be set to a Context.Done() channel to
	// cancel emission of notifications.
	CancelEmissionChannel <-chan struct{}
}

func (cfg *UINotificationsConfig) clip(msg string) string {
	if len(msg) < cfg.MaxLength {
		return msg
	}
	return msg[:cfg.MaxLength]
}

// UINotificationType is the type of notification.
type UINotificationType string

const (
	UINtfnGameStarted UINotificationType = "gamestarted"
	UINtfnYourTurn    UINotificationType = "yourturn"
	UINtfnGameOver    UINotificationType = "gameover"
	UINtfnMultiple    UINotificationType = "multiple"
)

// UINotification is a notification that should be shown as a UI alert.
type UINotification struct {
	// Type of notification.
	Type UINotificationType `json:"type"`

	// Text of the notification.
	Text string `json:"text"`

	// Count will be greater than one when multiple notifications were
	// batched.
	Count int `json:"count"`

	// From is the room or table the notification originated from.
	From string `json:"from"`

	// Timestamp is the unix timestamp in seconds of the first message.
	Timestamp int64 `json:"timestamp"`
}

const onUINtfnType = "uintfn"

// OnUINotification is called when a notification should be shown by the UI to
// the user. This should usually take the form of an alert dialog or terminal
// bell about a game event.
type OnUINotification func(ntfn UINotification)

func (_ OnUINotification) typ() string { return onUINtfnType }

// The following is used only in tests.

const onTestNtfnType = "testNtfnType"

type onTestNtfn func()

func (_ onTestNtfn) typ() string { return onTestNtfnType }

// Following is the generic notification code.

type NotificationRegistration struct {
	unreg func() bool
}

func (reg NotificationRegistration) Unregister() bool {
	return reg.unreg()
}

type NotificationHandler interface {
	typ() string
}

type handler[T any] struct {
	handler T
	async   bool
}

type handlersFor[T any] struct {
	mtx      sync.Mutex
	next     uint
	handlers map[uint]handler[T]
}

func (hn *handlersFor[T]) register(h T, async bool) NotificationRegistration {
	var id uint

	hn.mtx.Lock()
	id, hn.next = hn.next, hn.next+1
	if hn.handlers == nil {
		hn.handlers = make(map[uint]handler[T])
	}
	hn.handlers[id] = handler[T]{handler: h, async: async}
	registered := true
	hn.mtx.Unlock()

	return NotificationRegistration{
		unreg: func() bool {
			hn.mtx.Lock()
			res := registered
			if registered {
				delete(hn.handlers, id)
				registered = false
			}
			hn.mtx.Unlock()
			return res
		},
	}
}

func (hn *handlersFor[T]) visit(f func(T)) {
	hn.mtx.Lock()
	for _, h := range hn.handlers {
		if h.async {
			go f(h.handler)
		} else {
			f(h.handler)
		}
	}
	hn.mtx.Unlock()
}

func (hn *handlersFor[T]) Register(v interface{}, async bool) NotificationRegistration {
	if h, ok := v.(T); !ok {
		panic("wrong type")
	} else {
		return hn.register(h, async)
	}
}

func (hn *handlersFor[T]) AnyRegistered() bool {
	hn.mtx.Lock()
	res := len(hn.handlers) > 0
	hn.mtx.Unlock()
	return res
}

type handlersRegistry interface {
	Register(v interface{}, async bool) NotificationRegistration
	AnyRegistered() bool
}

type NotificationManager struct {
	handlers map[string]handlersRegistry

	uiMtx      sync.Mutex
	uiConfig   UINotificationsConfig
	uiNextNtfn UINotification
	uiTimer    *time.Timer
}

// UpdateUIConfig updates the config used to generate UI notifications about
// game starts, turn prompts, etc.
func (nmgr *NotificationManager) UpdateUIConfig(cfg UINotificationsConfig) {
	nmgr.uiMtx.Lock()
	nmgr.uiConfig = cfg
	nmgr.uiMtx.Unlock()
}

func (nmgr *NotificationManager) register(handler NotificationHandler, async bool) NotificationRegistration {
	handlers := nmgr.handlers[handler.typ()]
	if handlers == nil {
		panic(fmt.Sprintf("forgot to init the handler type %T "+
			"in NewNotificationManager", handler))
	}

	return handlers.Register(handler, async)
}

// Register registers a callback notification function that is called
// asynchronously to the event (i.e. in a separate goroutine).
func (nmgr *NotificationManager) Register(handler NotificationHandler) NotificationRegistration {
	return nmgr.register(handler, true)
}

// RegisterSync registers a callback notification function that is called
// synchronously to the event. This callback SHOULD return as soon as possible,
// otherwise the client might hang.
//
// Synchronous callbacks are mostly intended for tests and when external
// callers need to ensure proper order of multiple sequential events. In
// general it is preferable to use callbacks registered with the Register call,
// to ensure the client will not deadlock or hang.
func (nmgr *NotificationManager) RegisterSync(handler NotificationHandler) NotificationRegistration {
	return nmgr.register(handler, false)
}

// AnyRegistered returns true if there are any handlers registered for the given
// handler type.
func (nmgr *NotificationManager) AnyRegistered(handler NotificationHandler) bool {
	return nmgr.handlers[handler.typ()].AnyRegistered()
}

func (nmgr *NotificationManager) waitAndEmitUINtfn(c <-chan time.Time, cancel <-chan struct{}) {
	select {
	case <-c:
	case <-cancel:
		return
	}

	nmgr.uiMtx.Lock()
	n := nmgr.uiNextNtfn
	nmgr.uiNextNtfn = UINotification{}
	nmgr.uiMtx.Unlock()

	nmgr.handlers[onUINtfnType].(*handlersFor[OnUINotification]).
		visit(func(h OnUINotification) { h(n) })
}

func (nmgr *NotificationManager) addUINtfn(from string, typ UINotificationType, msg string, ts time.Time) {
	nmgr.uiMtx.Lock()

	n := &nmgr.uiNextNtfn
	cfg := &nmgr.uiConfig

	switch {
	case typ == UINtfnGameStarted && !cfg.GameStarted,
		typ == UINtfnYourTurn && !cfg.YourTurn:
		// Ignore
		nmgr.uiMtx.Unlock()
		return

	case n.Count == 0:
		// First notification of the batch.
		n.Type = typ
		n.Count = 1
		n.From = from
		n.Timestamp = ts.Unix()
		n.Text = cfg.clip(msg)

	default:
		// Multiple types.
		n.Type = UINtfnMultiple
		n.From = "multiple"
		n.Count += 1
		n.Text = fmt.Sprintf("%d notifications received", n.Count)
	}

	// The first notification starts the timer to emit the actual UI
	// notification. Other notifications will get batched.
	if n.Count == 1 {
		nmgr.uiTimer.Reset(cfg.EmitInterval)
		c, cancel := nmgr.uiTimer.C, cfg.CancelEmissionChannel
		go nmgr.waitAndEmitUINtfn(c, cancel)
	}

	nmgr.uiMtx.Unlock()
}

// Following are the notifyX() calls (one for each type of notification).

func (nmgr *NotificationManager) notifyTest() {
	nmgr.handlers[onTestNtfnType].(*handlersFor[onTestNtfn]).
		visit(func(h onTestNtfn) { h() })
}

func (nmgr *NotificationManager) notifyWelcome(identity string, ts time.Time) {
	nmgr.handlers[onWelcomeNtfnType].(*handlersFor[OnWelcomeNtfn]).
		visit(func(h OnWelcomeNtfn) { h(identity, ts) })
}

func (nmgr *NotificationManager) notifyLobbyState(st wire.LobbyState, ts time.Time) {
	nmgr.handlers[onLobbyStateNtfnType].(*handlersFor[OnLobbyStateNtfn]).
		visit(func(h OnLobbyStateNtfn) { h(st, ts) })
}

func (nmgr *NotificationManager) notifyTableUpdated(info wire.TableInfo, ts time.Time) {
	nmgr.handlers[onTableUpdatedNtfnType].(*handlersFor[OnTableUpdatedNtfn]).
		visit(func(h OnTableUpdatedNtfn) { h(info, ts) })
}

func (nmgr *NotificationManager) notifyPlayerJoined(pj wire.PlayerJoined, ts time.Time) {
	nmgr.handlers[onPlayerJoinedNtfnType].(*handlersFor[OnPlayerJoinedNtfn]).
		visit(func(h OnPlayerJoinedNtfn) { h(pj, ts) })
}

func (nmgr *NotificationManager) notifyPlayerLeft(pl wire.PlayerLeft, ts time.Time) {
	nmgr.handlers[onPlayerLeftNtfnType].(*handlersFor[OnPlayerLeftNtfn]).
		visit(func(h OnPlayerLeftNtfn) { h(pl, ts) })
}

func (nmgr *NotificationManager) notifyGameStarted(gs wire.GameStarted, ts time.Time) {
	nmgr.handlers[onGameStartedNtfnType].(*handlersFor[OnGameStartedNtfn]).
		visit(func(h OnGameStartedNtfn) { h(gs, ts) })

	nmgr.addUINtfn(gs.RoomID, UINtfnGameStarted,
		fmt.Sprintf("%s game started", gs.Kind), ts)
}

func (nmgr *NotificationManager) notifyGameState(gs *wire.GameState, ts time.Time) {
	nmgr.handlers[onGameStateNtfnType].(*handlersFor[OnGameStateNtfn]).
		visit(func(h OnGameStateNtfn) { h(gs, ts) })
}

func (nmgr *NotificationManager) notifyYourTurn(yt *wire.YourTurn, ts time.Time) {
	nmgr.handlers[onYourTurnNtfnType].(*handlersFor[OnYourTurnNtfn]).
		visit(func(h OnYourTurnNtfn) { h(yt, ts) })

	nmgr.addUINtfn("", UINtfnYourTurn, "It is your turn", ts)
}

func (nmgr *NotificationManager) notifyDomainEvent(msg *wire.Message, ts time.Time) {
	nmgr.handlers[onDomainEventNtfnType].(*handlersFor[OnDomainEventNtfn]).
		visit(func(h OnDomainEventNtfn) { h(msg, ts) })
}

func (nmgr *NotificationManager) notifyPlayerBooted(pb wire.PlayerBooted, ts time.Time) {
	nmgr.handlers[onPlayerBootedNtfnType].(*handlersFor[OnPlayerBootedNtfn]).
		visit(func(h OnPlayerBootedNtfn) { h(pb, ts) })
}

func (nmgr *NotificationManager) notifyGameOver(roomID string, result *wire.GameOver, ts time.Time) {
	nmgr.handlers[onGameOverNtfnType].(*handlersFor[OnGameOverNtfn]).
		visit(func(h OnGameOverNtfn) { h(roomID, result, ts) })

	nmgr.addUINtfn(roomID, UINtfnGameOver, result.Summary, ts)
}

func (nmgr *NotificationManager) notifyServerError(roomID string, e wire.Error, ts time.Time) {
	nmgr.handlers[onServerErrorNtfnType].(*handlersFor[OnServerErrorNtfn]).
		visit(func(h OnServerErrorNtfn) { h(roomID, e, ts) })
}

func NewNotificationManager() *NotificationManager {
	nmgr := &NotificationManager{
		uiConfig: UINotificationsConfig{
			GameStarted:  true,
			YourTurn:     true,
			MaxLength:    255,
			EmitInterval: 2 * time.Second,
		},
		uiTimer: time.NewTimer(time.Hour * 24),
		handlers: map[string]handlersRegistry{
			onTestNtfnType:         &handlersFor[onTestNtfn]{},
			onWelcomeNtfnType:      &handlersFor[OnWelcomeNtfn]{},
			onLobbyStateNtfnType:   &handlersFor[OnLobbyStateNtfn]{},
			onTableUpdatedNtfnType: &handlersFor[OnTableUpdatedNtfn]{},
			onPlayerJoinedNtfnType: &handlersFor[OnPlayerJoinedNtfn]{},
			onPlayerLeftNtfnType:   &handlersFor[OnPlayerLeftNtfn]{},
			onGameStartedNtfnType:  &handlersFor[OnGameStartedNtfn]{},
			onGameStateNtfnType:    &handlersFor[OnGameStateNtfn]{},
			onYourTurnNtfnType:     &handlersFor[OnYourTurnNtfn]{},
			onDomainEventNtfnType:  &handlersFor[OnDomainEventNtfn]{},
			onPlayerBootedNtfnType: &handlersFor[OnPlayerBootedNtfn]{},
			onGameOverNtfnType:     &handlersFor[OnGameOverNtfn]{},
			onServerErrorNtfnType:  &handlersFor[OnServerErrorNtfn]{},

			onUINtfnType: &handlersFor[OnUINotification]{},
		},
	}
	if !nmgr.uiTimer.Stop() {
		<-nmgr.uiTimer.C
	}

	return nmgr
}
