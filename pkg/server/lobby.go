package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/cardroom/cardroom/pkg/games"
	"github.com/cardroom/cardroom/pkg/room"
	"github.com/cardroom/cardroom/pkg/wire"
)

// lobbySeat is one occupied seat of a not yet started table.
type lobbySeat struct {
	Identity string
	Name     string
}

// table is the lobby-side gathering that becomes a room on start_game.
type table struct {
	ID         string
	Kind       games.Kind
	Name       string
	Host       string
	MaxPlayers int
	Settings   wire.TableSettings
	Seats      map[int]lobbySeat
	Started    bool
	RoomID     string
}

func (t *table) seatOf(identity string) (int, bool) {
	for i, s := range t.Seats {
		if s.Identity == identity {
			return i, true
		}
	}
	return -1, false
}

func (t *table) freeSeat() (int, bool) {
	for i := 0; i < t.MaxPlayers; i++ {
		if _, taken := t.Seats[i]; !taken {
			return i, true
		}
	}
	return -1, false
}

// humans converts the occupied seats into the room's seat bindings.
func (t *table) humans() []room.Human {
	out := make([]room.Human, 0, len(t.Seats))
	for i, s := range t.Seats {
		out = append(out, room.Human{Identity: s.Identity, Name: s.Name, Seat: i})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seat < out[b].Seat })
	return out
}

func (t *table) info() wire.TableInfo {
	players := make([]wire.TableSeat, 0, len(t.Seats))
	for i, s := range t.Seats {
		players = append(players, wire.TableSeat{
			SeatIndex: i,
			Name:      s.Name,
			IsHost:    s.Identity == t.Host,
		})
	}
	sort.Slice(players, func(a, b int) bool {
		return players[a].SeatIndex < players[b].SeatIndex
	})
	hostName := ""
	if i, ok := t.seatOf(t.Host); ok {
		hostName = t.Seats[i].Name
	}
	return wire.TableInfo{
		ID:         t.ID,
		Kind:       string(t.Kind),
		Name:       t.Name,
		HostName:   hostName,
		MaxPlayers: t.MaxPlayers,
		Players:    players,
		Started:    t.Started,
		RoomID:     t.RoomID,
	}
}

// lobby tracks the tables that have not yet become rooms, plus started
// tables kept around for restart. One identity sits at one table at a time.
type lobby struct {
	mtx    sync.Mutex
	log    slog.Logger
	tables map[string]*table
}

func newLobby(log slog.Logger) *lobby {
	return &lobby{log: log, tables: make(map[string]*table)}
}

func (l *lobby) createTable(identity, name string, req wire.CreateTable) (*table, error) {
	kind, err := games.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	min, max := kind.SeatRange()
	seats := req.MaxPlayers
	if seats == 0 {
		seats = kind.DefaultSeats()
	}
	if seats < min || seats > max {
		return nil, fmt.Errorf("%s tables take %d to %d players", kind, min, max)
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()
	if t := l.tableOfLocked(identity); t != nil {
		return nil, fmt.Errorf("you are already seated at table %s", t.ID)
	}

	tableName := req.Name
	if tableName == "" {
		tableName = fmt.Sprintf("%s's %s table", name, kind)
	}
	t := &table{
		ID:         uuid.NewString(),
		Kind:       kind,
		Name:       tableName,
		Host:       identity,
		MaxPlayers: seats,
		Settings:   req.Settings,
		Seats:      map[int]lobbySeat{0: {Identity: identity, Name: name}},
	}
	l.tables[t.ID] = t
	l.log.Infof("table %s created by %s (%s, %d seats)", t.ID, name, kind, seats)
	return t, nil
}

func (l *lobby) joinTable(identity, name string, req wire.JoinTable) (*table, int, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	t, ok := l.tables[req.TableID]
	if !ok {
		return nil, -1, fmt.Errorf("table %s does not exist", req.TableID)
	}
	if t.Started {
		return nil, -1, fmt.Errorf("table %s already started", req.TableID)
	}
	if cur := l.tableOfLocked(identity); cur != nil && cur != t {
		return nil, -1, fmt.Errorf("you are already seated at table %s", cur.ID)
	}
	if seat, ok := t.seatOf(identity); ok {
		return t, seat, nil
	}

	seat := req.SeatIndex
	if seat < 0 {
		var free bool
		if seat, free = t.freeSeat(); !free {
			return nil, -1, fmt.Errorf("table %s is full", req.TableID)
		}
	}
	if seat >= t.MaxPlayers {
		return nil, -1, fmt.Errorf("seat %d out of range", seat)
	}
	if _, taken := t.Seats[seat]; taken {
		return nil, -1, fmt.Errorf("seat %d is taken", seat)
	}
	t.Seats[seat] = lobbySeat{Identity: identity, Name: name}
	return t, seat, nil
}

// leaveTable removes the identity from its table. The host role transfers to
// the lowest remaining seat; an emptied table is removed. Reports the table,
// and whether it was removed.
func (l *lobby) leaveTable(identity string) (*table, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	t := l.tableOfLocked(identity)
	if t == nil {
		return nil, false
	}
	seat, _ := t.seatOf(identity)
	delete(t.Seats, seat)

	if len(t.Seats) == 0 {
		delete(l.tables, t.ID)
		l.log.Infof("table %s removed (empty)", t.ID)
		return t, true
	}
	if t.Host == identity {
		seats := make([]int, 0, len(t.Seats))
		for i := range t.Seats {
			seats = append(seats, i)
		}
		sort.Ints(seats)
		t.Host = t.Seats[seats[0]].Identity
		l.log.Infof("table %s host transferred to %s", t.ID, t.Seats[seats[0]].Name)
	}
	return t, false
}

func (l *lobby) tableOfLocked(identity string) *table {
	for _, t := range l.tables {
		if _, ok := t.seatOf(identity); ok {
			return t
		}
	}
	return nil
}

func (l *lobby) tableOf(identity string) *table {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.tableOfLocked(identity)
}

func (l *lobby) lookup(tableID string) (*table, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	t, ok := l.tables[tableID]
	return t, ok
}

// markStarted records the room allocated for a started table.
func (l *lobby) markStarted(tableID, roomID string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if t, ok := l.tables[tableID]; ok {
		t.Started = true
		t.RoomID = roomID
	}
}

// reopen flips a started table back to gathering after its room ended.
func (l *lobby) reopen(tableID string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if t, ok := l.tables[tableID]; ok {
		t.Started = false
		t.RoomID = ""
	}
}

func (l *lobby) remove(tableID string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	delete(l.tables, tableID)
}

// tableByRoom finds the table whose game runs in roomID.
func (l *lobby) tableByRoom(roomID string) (*table, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	for _, t := range l.tables {
		if t.RoomID == roomID {
			return t, true
		}
	}
	return nil, false
}

// state builds the lobby_state payload.
func (l *lobby) state(connected int) wire.LobbyState {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	infos := make([]wire.TableInfo, 0, len(l.tables))
	for _, t := range l.tables {
		infos = append(infos, t.info())
	}
	sort.Slice(infos, func(a, b int) bool { return infos[a].ID < infos[b].ID })
	return wire.LobbyState{Tables: infos, ConnectedPlayers: connected}
}
