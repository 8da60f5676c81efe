// End-to-end tests that run a full gateway in-process and talk to it over
// real websockets. Each test spins up its own server so they stay
// independent; room timers default to an hour and are shortened per test.
package e2e

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	_ "github.com/cardroom/cardroom/pkg/games/euchre"
	"github.com/cardroom/cardroom/pkg/server"
	"github.com/cardroom/cardroom/pkg/wire"
)

const readTimeout = 5 * time.Second

// newEnv starts an in-process gateway and returns its websocket URL.
func newEnv(t *testing.T, mutate func(*server.Config)) string {
	t.Helper()
	cfg := server.Config{
		RNGSeed:          42,
		ReminderInterval: time.Hour,
		BootThreshold:    100,
		AutoBootDelay:    time.Hour,
		GraceWindow:      time.Hour,
		AIDelay:          time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := server.New(cfg)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// wsClient is one raw websocket player.
type wsClient struct {
	t        *testing.T
	conn     *websocket.Conn
	nick     string
	identity string
}

// dial connects and completes the lobby handshake. An empty identity asks
// the server to mint one.
func dial(t *testing.T, wsURL, nick, identity string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	c := &wsClient{t: t, conn: conn, nick: nick}
	t.Cleanup(func() { conn.Close() })

	c.send(wire.MustCompose(wire.MsgJoinLobby, wire.JoinLobby{
		Nickname: nick, Identity: identity,
	}))
	var w wire.Welcome
	require.NoError(t, c.expect(wire.MsgWelcome).Decode(&w))
	c.identity = w.Identity
	return c
}

func (c *wsClient) send(msg *wire.Message) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(msg), "%s: send %s", c.nick, msg.Type)
}

// expect reads until a message of one of the wanted types arrives, skipping
// everything else. Unrequested errors fail the test immediately.
func (c *wsClient) expect(want ...wire.Type) *wire.Message {
	c.t.Helper()
	deadline := time.Now().Add(readTimeout)
	for {
		c.conn.SetReadDeadline(deadline)
		var msg wire.Message
		err := c.conn.ReadJSON(&msg)
		require.NoError(c.t, err, "%s: waiting for %v", c.nick, want)
		for _, t := range want {
			if msg.Type == t {
				return &msg
			}
		}
		if msg.Type == wire.MsgError {
			var e wire.Error
			msg.Decode(&e)
			c.t.Fatalf("%s: unexpected server error %s: %s", c.nick, e.Code, e.Message)
		}
	}
}

// expectError reads until an error arrives and returns its code.
func (c *wsClient) expectError() wire.ErrorCode {
	c.t.Helper()
	msg := c.expect(wire.MsgError)
	var e wire.Error
	require.NoError(c.t, msg.Decode(&e))
	return e.Code
}

func (c *wsClient) snapshot() *wire.GameState {
	c.t.Helper()
	var gs wire.GameState
	require.NoError(c.t, c.expect(wire.MsgGameState).Decode(&gs))
	return &gs
}

// startEuchre seats four clients at one table, starts the game and returns
// the clients with their first snapshots. clients[i] sits at seat i.
func startEuchre(t *testing.T, wsURL string) ([]*wsClient, string, []*wire.GameState) {
	t.Helper()
	host := dial(t, wsURL, "alice", "")
	host.send(wire.MustCompose(wire.MsgCreateTable, wire.CreateTable{Kind: "euchre"}))
	var jt wire.JoinedTable
	require.NoError(t, host.expect(wire.MsgJoinedTable).Decode(&jt))
	tableID := jt.Table.ID

	clients := []*wsClient{host}
	for i, nick := range []string{"bob", "carol", "dave"} {
		c := dial(t, wsURL, nick, "")
		c.send(wire.MustCompose(wire.MsgJoinTable, wire.JoinTable{
			TableID: tableID, SeatIndex: -1,
		}))
		var j wire.JoinedTable
		require.NoError(t, c.expect(wire.MsgJoinedTable).Decode(&j))
		require.Equal(t, i+1, j.SeatIndex)
		clients = append(clients, c)
	}

	host.send(wire.MustCompose(wire.MsgStartGame, nil))

	var roomID string
	snaps := make([]*wire.GameState, len(clients))
	for i, c := range clients {
		var gs wire.GameStarted
		require.NoError(t, c.expect(wire.MsgGameStarted).Decode(&gs))
		require.Equal(t, "euchre", gs.Kind)
		roomID = gs.RoomID
		snaps[i] = c.snapshot()
	}
	return clients, roomID, snaps
}

func TestGameStartDealsAndPromptsFirstBidder(t *testing.T) {
	wsURL := newEnv(t, nil)
	clients, roomID, snaps := startEuchre(t, wsURL)
	require.NotEmpty(t, roomID)

	cur := snaps[0].CurrentSeat
	for i, gs := range snaps {
		require.Equal(t, i, gs.YourSeat, "client %d sees wrong seat", i)
		require.Equal(t, cur, gs.CurrentSeat)
		require.GreaterOrEqual(t, gs.StateSeq, uint64(1))
		require.Len(t, gs.Hand, 5, "euchre deals five cards")
		require.Len(t, gs.Seats, 4)
		// Only the recipient's hand crosses the wire.
		for _, seat := range gs.Seats {
			require.Equal(t, 5, seat.HandCount)
		}
	}

	// The first bidder, and only the first bidder, is prompted.
	var yt wire.YourTurn
	require.NoError(t, clients[cur].expect(wire.MsgYourTurn).Decode(&yt))
	require.Equal(t, snaps[cur].StateSeq, yt.StateSeq)
	require.Contains(t, yt.ValidActions, string(wire.MsgMakeBid))
}

func TestStaleAndOutOfTurnActionsAreRejected(t *testing.T) {
	wsURL := newEnv(t, nil)
	clients, roomID, snaps := startEuchre(t, wsURL)
	cur := snaps[0].CurrentSeat
	other := clients[(cur+1)%len(clients)]
	current := clients[cur]

	pass := wire.MustCompose(wire.MsgMakeBid, wire.EuchreBid{Action: "pass"})

	// Acting out of turn with a fresh seq: turn violation.
	other.send(pass.WithRoom(roomID).WithSeq(snaps[0].StateSeq))
	require.Equal(t, wire.CodeNotYourTurn, other.expectError())

	// Acting on a stale fingerprint: the server demands a resync.
	current.send(pass.WithRoom(roomID).WithSeq(snaps[0].StateSeq + 100))
	require.Equal(t, wire.CodeSyncRequired, current.expectError())

	// request_state recovers without advancing the authoritative state.
	current.send(wire.MustCompose(wire.MsgRequestState, nil).WithRoom(roomID))
	fresh := current.snapshot()
	require.Equal(t, snaps[0].StateSeq, fresh.StateSeq)

	// The same action with the fresh fingerprint goes through.
	current.send(pass.WithRoom(roomID).WithSeq(fresh.StateSeq))
	next := current.snapshot()
	require.Greater(t, next.StateSeq, fresh.StateSeq)
	require.NotEqual(t, cur, next.CurrentSeat)
}

func TestReconnectReattachesSeat(t *testing.T) {
	wsURL := newEnv(t, nil)
	clients, _, snaps := startEuchre(t, wsURL)
	cur := snaps[0].CurrentSeat

	// Drop a non-acting player so the game is not waiting on them.
	seat := (cur + 2) % len(clients)
	dropped := clients[seat]
	dropped.conn.Close()

	// Same identity, new socket: the welcome handshake reattaches the seat
	// and pushes a fresh snapshot unprompted.
	again := dial(t, wsURL, dropped.nick, dropped.identity)
	require.Equal(t, dropped.identity, again.identity)
	gs := again.snapshot()
	require.Equal(t, seat, gs.YourSeat)
	require.GreaterOrEqual(t, gs.StateSeq, snaps[seat].StateSeq)
	require.Len(t, gs.Hand, 5)
}

func TestTimeoutEscalatesToAutoBoot(t *testing.T) {
	wsURL := newEnv(t, func(cfg *server.Config) {
		cfg.ReminderInterval = 50 * time.Millisecond
		cfg.BootThreshold = 2
		cfg.AutoBootDelay = 50 * time.Millisecond
	})
	clients, _, snaps := startEuchre(t, wsURL)
	cur := snaps[0].CurrentSeat
	observer := clients[(cur+1)%len(clients)]

	// The acting player stalls. They get nagged first.
	var tr wire.TurnReminder
	require.NoError(t, clients[cur].expect(wire.MsgTurnReminder).Decode(&tr))
	require.Contains(t, tr.ValidActions, string(wire.MsgMakeBid))

	// Everyone else sees the timeout mark, then the boot.
	var to wire.PlayerTimedOut
	require.NoError(t, observer.expect(wire.MsgPlayerTimedOut).Decode(&to))
	require.Equal(t, cur, to.SeatIndex)

	var pb wire.PlayerBooted
	require.NoError(t, observer.expect(wire.MsgPlayerBooted).Decode(&pb))
	require.Equal(t, cur, pb.SeatIndex)

	// The substitute AI holds the seat in the next snapshot.
	gs := observer.snapshot()
	require.True(t, gs.Seats[cur].IsAI)
	require.Greater(t, gs.StateSeq, snaps[0].StateSeq)
}

func TestActionsToDeadRoomReportGameLost(t *testing.T) {
	wsURL := newEnv(t, nil)
	c := dial(t, wsURL, "alice", "")

	msg := wire.MustCompose(wire.MsgMakeBid, wire.EuchreBid{Action: "pass"})
	c.send(msg.WithRoom("no-such-room"))
	require.Equal(t, wire.CodeGameLost, c.expectError())
}

func TestLobbyListsAndRemovesTables(t *testing.T) {
	wsURL := newEnv(t, nil)
	host := dial(t, wsURL, "alice", "")
	host.send(wire.MustCompose(wire.MsgCreateTable, wire.CreateTable{
		Kind: "president", Name: "after work", MaxPlayers: 5,
	}))
	var jt wire.JoinedTable
	require.NoError(t, host.expect(wire.MsgJoinedTable).Decode(&jt))

	// A newcomer sees the table in their initial lobby state.
	other := dial(t, wsURL, "bob", "")
	var ls wire.LobbyState
	require.NoError(t, other.expect(wire.MsgLobbyState).Decode(&ls))
	require.Len(t, ls.Tables, 1)
	tbl := ls.Tables[0]
	require.Equal(t, "president", tbl.Kind)
	require.Equal(t, "after work", tbl.Name)
	require.Equal(t, 5, tbl.MaxPlayers)
	require.False(t, tbl.Started)

	// The host leaving empties the table; it vanishes for everyone.
	host.send(wire.MustCompose(wire.MsgLeaveTable, nil))
	var lt wire.LeftTable
	require.NoError(t, host.expect(wire.MsgLeftTable).Decode(&lt))
	require.Equal(t, tbl.ID, lt.TableID)

	var rm wire.TableRemoved
	require.NoError(t, other.expect(wire.MsgTableRemoved).Decode(&rm))
	require.Equal(t, tbl.ID, rm.TableID)
}
