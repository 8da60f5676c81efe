package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	"github.com/cardroom/cardroom/pkg/logging"
	"github.com/cardroom/cardroom/pkg/utils"
	"github.com/cardroom/cardroom/pkg/wire"
)

// Reconnect backoff bounds.
const (
	reconnectMinDelay = time.Second
	reconnectMaxDelay = 30 * time.Second
)

// Message types for UI communication.
type (
	ConnectedMsg    bool
	WelcomeMsg      string
	LobbyStateMsg   wire.LobbyState
	TableUpdatedMsg wire.TableInfo
	JoinedTableMsg  wire.JoinedTable
	LeftTableMsg    wire.LeftTable
	GameStartedMsg  wire.GameStarted
	GameStateMsg    *wire.GameState
	YourTurnMsg     *wire.YourTurn
	EventMsg        string
	GameOverMsg     *wire.GameOver
	ServerErrorMsg  wire.Error
)

// Client is a cardroom websocket client with notification handling. It owns
// the socket, re-identifies and resyncs across reconnects, and feeds the
// Store/QueueController pair that UIs read from.
type Client struct {
	sync.RWMutex
	ID       string
	Nickname string
	DataDir  string

	Store *Store
	Queue *QueueController

	cfg        *Config
	ntfns      *NotificationManager
	log        slog.Logger
	logBackend *logging.LogBackend

	conn     *websocket.Conn
	writeMtx sync.Mutex

	tableID string

	UpdatesCh chan tea.Msg
	ErrorsCh  chan error

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewClient creates a cardroom client with notification support.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg is nil")
	}
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("notification manager cannot be nil - client startup aborted")
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server URL is not configured")
	}
	if err := utils.EnsureDataDirExists(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %v", err)
	}

	logBackend := cfg.LogBackend
	if logBackend == nil {
		lb, err := logging.NewLogBackend(logging.LogConfig{DebugLevel: "info"})
		if err != nil {
			return nil, fmt.Errorf("failed to create log backend: %v", err)
		}
		logBackend = lb
	}
	log := logBackend.Logger("CLNT")

	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		Nickname:   cfg.Nickname,
		DataDir:    cfg.DataDir,
		cfg:        cfg,
		ntfns:      cfg.Notifications,
		log:        log,
		logBackend: logBackend,
		Store:      newStore(cfg.Notifications),
		UpdatesCh:  make(chan tea.Msg, 100),
		ErrorsCh:   make(chan error, 10),
		ctx:        ctx,
		cancelFunc: cancel,
	}
	c.Queue = newQueueController(c.applyMessage)
	c.ID = c.loadIdentity()

	return c, nil
}

// Run connects and keeps the session alive, reconnecting with backoff until
// the context is canceled. It blocks.
func (c *Client) Run(ctx context.Context) error {
	wd := &watchdog{store: c.Store, log: c.log, request: func() {
		if err := c.RequestState(); err != nil {
			c.log.Debugf("watchdog request_state: %v", err)
		}
	}}
	go wd.run(ctx)

	delay := reconnectMinDelay
	for {
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warnf("session ended: %v; reconnecting in %v", err, delay)
		c.pushUpdate(ConnectedMsg(false))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// runSession dials, identifies and pumps messages until the socket drops.
func (c *Client) runSession(ctx context.Context) error {
	url := c.cfg.ServerURL
	if !strings.Contains(url, "://") {
		url = "ws://" + url
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c.Lock()
	c.conn = conn
	c.Unlock()
	defer func() {
		conn.Close()
		c.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.Unlock()
	}()

	if err := c.send(wire.MustCompose(wire.MsgJoinLobby, wire.JoinLobby{
		Nickname: c.Nickname,
		Identity: c.identity(),
	})); err != nil {
		return err
	}

	for {
		var msg wire.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(&msg)
	}
}

// dispatch routes one inbound message. Snapshots and domain events go through
// the animation queue; everything else is realtime.
func (c *Client) dispatch(msg *wire.Message) {
	now := time.Now()

	if wire.IsDomainEvent(msg.Type) {
		c.Queue.Submit(msg)
		return
	}

	switch msg.Type {
	case wire.MsgWelcome:
		var w wire.Welcome
		if err := msg.Decode(&w); err != nil {
			c.log.Errorf("welcome: %v", err)
			return
		}
		c.setIdentity(w.Identity)
		c.ntfns.notifyWelcome(w.Identity, now)
		c.pushUpdate(ConnectedMsg(true))
		c.pushUpdate(WelcomeMsg(w.Identity))
		// Re-identified after a reconnect: ask for a fresh snapshot of
		// the room we were in, the server reattached us to its seats.
		if c.Store.RoomID() != "" {
			if err := c.RequestState(); err != nil {
				c.log.Debugf("resync after welcome: %v", err)
			}
		}

	case wire.MsgLobbyState:
		var st wire.LobbyState
		if err := msg.Decode(&st); err != nil {
			c.log.Errorf("lobby_state: %v", err)
			return
		}
		c.ntfns.notifyLobbyState(st, now)
		c.pushUpdate(LobbyStateMsg(st))

	case wire.MsgTableUpdated:
		var tu wire.TableUpdated
		if err := msg.Decode(&tu); err != nil {
			return
		}
		c.ntfns.notifyTableUpdated(tu.Table, now)
		c.pushUpdate(TableUpdatedMsg(tu.Table))

	case wire.MsgTableRemoved:
		var tr wire.TableRemoved
		if err := msg.Decode(&tr); err != nil {
			return
		}
		c.Lock()
		if c.tableID == tr.TableID {
			c.tableID = ""
		}
		c.Unlock()
		c.pushUpdate(LeftTableMsg{TableID: tr.TableID})

	case wire.MsgJoinedTable:
		var jt wire.JoinedTable
		if err := msg.Decode(&jt); err != nil {
			return
		}
		c.Lock()
		c.tableID = jt.Table.ID
		c.Unlock()
		c.ntfns.notifyTableUpdated(jt.Table, now)
		c.pushUpdate(JoinedTableMsg(jt))

	case wire.MsgLeftTable:
		var lt wire.LeftTable
		if err := msg.Decode(&lt); err != nil {
			return
		}
		c.Lock()
		c.tableID = ""
		c.Unlock()
		c.pushUpdate(LeftTableMsg(lt))

	case wire.MsgPlayerJoined:
		var pj wire.PlayerJoined
		if err := msg.Decode(&pj); err != nil {
			return
		}
		c.ntfns.notifyPlayerJoined(pj, now)
		c.pushUpdate(EventMsg(fmt.Sprintf("%s joined (seat %d)", pj.Name, pj.SeatIndex)))

	case wire.MsgPlayerLeft:
		var pl wire.PlayerLeft
		if err := msg.Decode(&pl); err != nil {
			return
		}
		c.ntfns.notifyPlayerLeft(pl, now)
		c.pushUpdate(EventMsg(fmt.Sprintf("%s left", pl.Name)))

	case wire.MsgGameStarted:
		var gs wire.GameStarted
		if err := msg.Decode(&gs); err != nil {
			return
		}
		c.Store.Reset(gs.RoomID, gs.Kind)
		c.ntfns.notifyGameStarted(gs, now)
		c.pushUpdate(GameStartedMsg(gs))

	case wire.MsgGameRestarting:
		c.pushUpdate(EventMsg("host is restarting the game"))

	case wire.MsgGameState:
		// Side-band seq tracking happens on arrival even when the
		// snapshot waits in the animation queue; outbound commands
		// must not go stale behind a paused queue.
		var gs wire.GameState
		if err := msg.Decode(&gs); err != nil {
			c.log.Errorf("game_state: %v", err)
			return
		}
		c.Store.NoteSeq(gs.StateSeq)
		c.Queue.Submit(msg)

	case wire.MsgYourTurn:
		var yt wire.YourTurn
		if err := msg.Decode(&yt); err != nil {
			return
		}
		if c.Store.ApplyPrompt(&yt, now) {
			c.pushUpdate(YourTurnMsg(&yt))
		} else {
			c.log.Debugf("ignored stale your_turn (seq %d)", yt.StateSeq)
		}

	case wire.MsgTurnReminder:
		var tr wire.TurnReminder
		if err := msg.Decode(&tr); err != nil {
			return
		}
		if c.Store.ApplyReminder(&tr) {
			c.pushUpdate(EventMsg(fmt.Sprintf("reminder %d: it is your turn", tr.Reminders)))
		}

	case wire.MsgPlayerTimedOut:
		var pt wire.PlayerTimedOut
		if err := msg.Decode(&pt); err != nil {
			return
		}
		c.Store.AddEvent("%s timed out and can be booted", pt.PlayerName)
		c.pushUpdate(EventMsg(fmt.Sprintf("%s timed out", pt.PlayerName)))

	case wire.MsgPlayerBooted:
		var pb wire.PlayerBooted
		if err := msg.Decode(&pb); err != nil {
			return
		}
		c.ntfns.notifyPlayerBooted(pb, now)
		c.Store.AddEvent("seat %d is now %s", pb.SeatIndex, pb.NewName)
		c.pushUpdate(EventMsg(fmt.Sprintf("seat %d is now %s", pb.SeatIndex, pb.NewName)))

	case wire.MsgGameOver:
		var result wire.GameOver
		if err := msg.Decode(&result); err != nil {
			return
		}
		c.Store.ApplyGameOver(&result, now)
		c.pushUpdate(GameOverMsg(&result))

	case wire.MsgError:
		var e wire.Error
		if err := msg.Decode(&e); err != nil {
			return
		}
		c.handleServerError(msg.RoomID, e, now)

	default:
		c.log.Debugf("unhandled message type %q", msg.Type)
	}
}

// handleServerError implements the recovery rules: sync_required drops local
// turn affordances and resyncs immediately (even with the animation queue
// paused); other rejections restore affordances from public rules so the
// player can retry.
func (c *Client) handleServerError(roomID string, e wire.Error, now time.Time) {
	switch e.Code {
	case wire.CodeSyncRequired:
		c.Store.DropTurn()
		if err := c.RequestState(); err != nil {
			c.log.Debugf("resync after sync_required: %v", err)
		}
	case wire.CodeGameLost:
		c.log.Warnf("room %s is gone", roomID)
	default:
		if c.Store.RestoreTurn() {
			c.log.Debugf("restored turn affordances after %s", e.Code)
		}
	}
	c.ntfns.notifyServerError(roomID, e, now)
	c.pushUpdate(ServerErrorMsg(e))
}

// applyMessage consumes one message released by the queue controller.
func (c *Client) applyMessage(msg *wire.Message) {
	now := time.Now()
	switch {
	case msg.Type == wire.MsgGameState:
		var gs wire.GameState
		if err := msg.Decode(&gs); err != nil {
			c.log.Errorf("game_state: %v", err)
			return
		}
		if c.Store.ApplySnapshot(&gs, now) {
			c.pushUpdate(GameStateMsg(&gs))
		}

	case wire.IsDomainEvent(msg.Type):
		if desc := describeEvent(msg, c.Store); desc != "" {
			c.Store.AddEvent("%s", desc)
			c.pushUpdate(EventMsg(desc))
		}
		c.ntfns.notifyDomainEvent(msg, now)
	}
}

// pushUpdate delivers a UI message without ever blocking the read loop.
func (c *Client) pushUpdate(msg tea.Msg) {
	select {
	case c.UpdatesCh <- msg:
	default:
		// Channel is full, drop the update
		c.log.Warn("Updates channel full, dropping update")
	}
}

// ---------- outbound ----------

func (c *Client) send(msg *wire.Message) error {
	c.RLock()
	conn := c.conn
	c.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	return conn.WriteJSON(msg)
}

// CreateTable asks the lobby for a new table of the given kind.
func (c *Client) CreateTable(kind, name string, maxPlayers int, settings wire.TableSettings) error {
	return c.send(wire.MustCompose(wire.MsgCreateTable, wire.CreateTable{
		Kind:       kind,
		Name:       name,
		MaxPlayers: maxPlayers,
		Settings:   settings,
	}))
}

// JoinTable seats us at a lobby table. Seat -1 takes the first free seat.
func (c *Client) JoinTable(tableID string, seat int) error {
	return c.send(wire.MustCompose(wire.MsgJoinTable, wire.JoinTable{
		TableID: tableID, SeatIndex: seat,
	}))
}

// LeaveTable stands up from the current lobby table.
func (c *Client) LeaveTable() error {
	return c.send(wire.MustCompose(wire.MsgLeaveTable, nil))
}

// StartGame starts the game at our table. Host only.
func (c *Client) StartGame() error {
	return c.send(wire.MustCompose(wire.MsgStartGame, nil))
}

// RestartGame restarts a finished game at our table. Host only.
func (c *Client) RestartGame() error {
	return c.send(wire.MustCompose(wire.MsgRestartGame, nil))
}

// RequestState asks the room for a fresh snapshot. Idempotent; does not
// advance the game or reset turn timers.
func (c *Client) RequestState() error {
	roomID := c.Store.RoomID()
	if roomID == "" {
		return fmt.Errorf("not in a room")
	}
	return c.send(wire.MustCompose(wire.MsgRequestState, nil).WithRoom(roomID))
}

// LeaveGame abandons our seat permanently; the room substitutes an AI.
func (c *Client) LeaveGame() error {
	roomID := c.Store.RoomID()
	if roomID == "" {
		return fmt.Errorf("not in a room")
	}
	return c.send(wire.MustCompose(wire.MsgLeaveGame, nil).WithRoom(roomID))
}

// BootPlayer asks the room to substitute the timed-out seat with AI.
func (c *Client) BootPlayer(seat int) error {
	roomID := c.Store.RoomID()
	if roomID == "" {
		return fmt.Errorf("not in a room")
	}
	return c.send(wire.MustCompose(wire.MsgBootPlayer, wire.BootPlayer{
		SeatIndex: seat,
	}).WithRoom(roomID))
}

// Action sends one game action carrying the newest stateSeq the client has
// seen, applied or queued.
func (c *Client) Action(t wire.Type, payload any) error {
	roomID := c.Store.RoomID()
	if roomID == "" {
		return fmt.Errorf("not in a room")
	}
	msg, err := wire.Compose(t, payload)
	if err != nil {
		return err
	}
	return c.send(msg.WithRoom(roomID).WithSeq(c.Store.OutboundSeq()))
}

// MakeBid sends a make_bid action. The payload is kind specific
// (wire.EuchreBid or wire.SpadesBid).
func (c *Client) MakeBid(payload any) error {
	return c.Action(wire.MsgMakeBid, payload)
}

// PlayCard plays a single card by wire id.
func (c *Client) PlayCard(cardID string) error {
	return c.Action(wire.MsgPlayCard, wire.PlayCard{CardID: cardID})
}

// DiscardCard discards a card after picking up the turned card.
func (c *Client) DiscardCard(cardID string) error {
	return c.Action(wire.MsgDiscardCard, wire.DiscardCard{CardID: cardID})
}

// PlayCards plays a set of equal-rank cards.
func (c *Client) PlayCards(cardIDs []string) error {
	return c.Action(wire.MsgPlayCards, wire.PlayCards{CardIDs: cardIDs})
}

// Pass passes the turn.
func (c *Client) Pass() error {
	return c.Action(wire.MsgPass, nil)
}

// GiveCards hands over cards during the exchange phase.
func (c *Client) GiveCards(cardIDs []string) error {
	return c.Action(wire.MsgGiveCards, wire.GiveCards{CardIDs: cardIDs})
}

// ---------- identity ----------

func (c *Client) identity() string {
	c.RLock()
	defer c.RUnlock()
	return c.ID
}

func (c *Client) identityPath() string {
	return filepath.Join(c.DataDir, "identity")
}

// loadIdentity reads the identity persisted by an earlier session, if any.
func (c *Client) loadIdentity() string {
	data, err := os.ReadFile(c.identityPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// setIdentity records the identity issued by the server and persists it so
// later sessions restore the same seats.
func (c *Client) setIdentity(identity string) {
	c.Lock()
	changed := c.ID != identity
	c.ID = identity
	c.Unlock()
	if !changed {
		return
	}
	if err := os.WriteFile(c.identityPath(), []byte(identity+"\n"), 0600); err != nil {
		c.log.Warnf("failed to persist identity: %v", err)
	}
}

// CurrentTableID returns the lobby table we are seated at, if any.
func (c *Client) CurrentTableID() string {
	c.RLock()
	defer c.RUnlock()
	return c.tableID
}

// Close tears the client down.
func (c *Client) Close() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.RLock()
	conn := c.conn
	c.RUnlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// describeEvent renders a domain event as one feed line. Seat names come
// from the store's last snapshot when available.
func describeEvent(msg *wire.Message, store *Store) string {
	name := func(seat int) string {
		if gs := store.State(); gs != nil {
			for _, si := range gs.Seats {
				if si.Index == seat {
					return si.Name
				}
			}
		}
		return fmt.Sprintf("seat %d", seat)
	}

	switch msg.Type {
	case wire.MsgBidMade:
		var e wire.BidMade
		if msg.Decode(&e) != nil {
			return ""
		}
		switch {
		case e.Nil:
			return fmt.Sprintf("%s bid nil", name(e.Seat))
		case e.Number > 0:
			return fmt.Sprintf("%s bid %d", name(e.Seat), e.Number)
		case e.Action != "":
			return fmt.Sprintf("%s: %s", name(e.Seat), e.Action)
		}
		return ""
	case wire.MsgTrumpSelected:
		var e wire.TrumpSelected
		if msg.Decode(&e) != nil {
			return ""
		}
		s := fmt.Sprintf("%s named %s trump", name(e.Seat), e.Suit)
		if e.GoingAlone {
			s += " (going alone)"
		}
		return s
	case wire.MsgCardPlayed:
		var e wire.CardPlayed
		if msg.Decode(&e) != nil {
			return ""
		}
		return fmt.Sprintf("%s played %s", name(e.Seat), e.Card)
	case wire.MsgTrickComplete:
		var e wire.TrickComplete
		if msg.Decode(&e) != nil {
			return ""
		}
		return fmt.Sprintf("%s took the trick", name(e.Winner))
	case wire.MsgPlayMade:
		var e wire.PlayMade
		if msg.Decode(&e) != nil {
			return ""
		}
		return fmt.Sprintf("%s played %s", name(e.Seat), utils.FormatCards(e.Cards))
	case wire.MsgPileCleared:
		var e wire.PileCleared
		if msg.Decode(&e) != nil {
			return ""
		}
		return fmt.Sprintf("pile cleared, %s leads", name(e.Leader))
	case wire.MsgCardsExchanged:
		var e wire.CardsExchanged
		if msg.Decode(&e) != nil {
			return ""
		}
		return fmt.Sprintf("%s passed %d cards to %s", name(e.From), e.Count, name(e.To))
	case wire.MsgPlayerFinished:
		var e wire.PlayerFinished
		if msg.Decode(&e) != nil {
			return ""
		}
		return fmt.Sprintf("%s finished in place %d", name(e.Seat), e.Place)
	case wire.MsgHandScored:
		var e wire.HandScored
		if msg.Decode(&e) != nil {
			return ""
		}
		return e.Summary
	}
	return ""
}
