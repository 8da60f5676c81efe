package server

import (
	"testing"

	"github.com/decred/slog"

	"github.com/cardroom/cardroom/pkg/wire"
)

func TestLobbyCreateJoinLeave(t *testing.T) {
	l := newLobby(slog.Disabled)

	tbl, err := l.createTable("host-id", "alice", wire.CreateTable{Kind: "euchre"})
	if err != nil {
		t.Fatalf("createTable: %v", err)
	}
	if tbl.MaxPlayers != 4 {
		t.Errorf("default seats = %d, want 4", tbl.MaxPlayers)
	}
	if tbl.Host != "host-id" {
		t.Errorf("host = %q, want host-id", tbl.Host)
	}
	if _, ok := tbl.Seats[0]; !ok {
		t.Errorf("creator not seated at 0")
	}

	// Second table by the same identity is rejected.
	if _, err := l.createTable("host-id", "alice", wire.CreateTable{Kind: "spades"}); err == nil {
		t.Errorf("creating a second table while seated succeeded")
	}

	joined, seat, err := l.joinTable("other-id", "bob", wire.JoinTable{
		TableID: tbl.ID, SeatIndex: -1,
	})
	if err != nil {
		t.Fatalf("joinTable: %v", err)
	}
	if joined != tbl || seat != 1 {
		t.Fatalf("join seat = %d, want 1", seat)
	}

	// Joining an occupied seat fails.
	if _, _, err := l.joinTable("third-id", "carol", wire.JoinTable{
		TableID: tbl.ID, SeatIndex: 1,
	}); err == nil {
		t.Errorf("joining an occupied seat succeeded")
	}

	// Host leaving transfers the host role to the lowest remaining seat.
	left, removed := l.leaveTable("host-id")
	if left == nil || removed {
		t.Fatalf("leaveTable host: left=%v removed=%v", left, removed)
	}
	if tbl.Host != "other-id" {
		t.Errorf("host after transfer = %q, want other-id", tbl.Host)
	}

	// Last player leaving removes the table.
	if _, removed := l.leaveTable("other-id"); !removed {
		t.Errorf("table not removed when emptied")
	}
	if _, ok := l.lookup(tbl.ID); ok {
		t.Errorf("removed table still resolvable")
	}
}

func TestLobbySeatRangeValidation(t *testing.T) {
	l := newLobby(slog.Disabled)
	if _, err := l.createTable("a", "a", wire.CreateTable{Kind: "euchre", MaxPlayers: 6}); err == nil {
		t.Errorf("6 seat euchre table accepted")
	}
	if _, err := l.createTable("a", "a", wire.CreateTable{Kind: "president", MaxPlayers: 6}); err != nil {
		t.Errorf("6 seat president table rejected: %v", err)
	}
	if _, err := l.createTable("b", "b", wire.CreateTable{Kind: "bridge"}); err == nil {
		t.Errorf("unknown kind accepted")
	}
}

func TestLobbyStateListsTables(t *testing.T) {
	l := newLobby(slog.Disabled)
	tbl, err := l.createTable("a", "alice", wire.CreateTable{Kind: "spades", Name: "night game"})
	if err != nil {
		t.Fatalf("createTable: %v", err)
	}
	st := l.state(3)
	if st.ConnectedPlayers != 3 {
		t.Errorf("connectedPlayers = %d, want 3", st.ConnectedPlayers)
	}
	if len(st.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(st.Tables))
	}
	info := st.Tables[0]
	if info.ID != tbl.ID || info.Name != "night game" || info.HostName != "alice" {
		t.Errorf("table info = %+v", info)
	}
	l.markStarted(tbl.ID, "room-1")
	if st := l.state(0); !st.Tables[0].Started || st.Tables[0].RoomID != "room-1" {
		t.Errorf("markStarted not reflected: %+v", st.Tables[0])
	}
}
