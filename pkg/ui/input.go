package ui

import (
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cardroom/cardroom/pkg/wire"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case stateMainMenu:
		return m.handleMenuKey(key)
	case stateTableList:
		return m.handleTableListKey(key)
	case stateCreateTable:
		return m.handleCreateKey(key)
	case stateTableLobby:
		return m.handleTableLobbyKey(key)
	case stateGame:
		return m.handleGameKey(key)
	case stateGameOver:
		return m.handleGameOverKey(key)
	}
	return m, nil
}

func (m Model) handleMenuKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.selectedItem = max(0, m.selectedItem-1)
	case "down", "j":
		m.selectedItem = min(len(m.menuOptions)-1, m.selectedItem+1)
	case "enter":
		switch m.menuOptions[m.selectedItem] {
		case optionBrowseTables:
			m.state = stateTableList
		case optionCreateTable:
			m.state = stateCreateTable
			m.selectedFormField = 0
		case optionQuit:
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) handleTableListKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "esc":
		m.state = stateMainMenu
	case "up", "k":
		m.selectedTable = max(0, m.selectedTable-1)
	case "down", "j":
		m.selectedTable = min(len(m.tables)-1, m.selectedTable+1)
	case "enter":
		if m.selectedTable < len(m.tables) {
			id := m.tables[m.selectedTable].ID
			return m, dispatch(func() error { return m.client.JoinTable(id, -1) })
		}
	}
	return m, nil
}

func (m Model) handleCreateKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		m.state = stateMainMenu
		return m, nil
	case "up":
		m.selectedFormField = max(0, m.selectedFormField-1)
		return m, nil
	case "down", "tab":
		m.selectedFormField = min(2, m.selectedFormField+1)
		return m, nil
	case "left":
		if m.selectedFormField == 0 {
			m.kindIndex = (m.kindIndex + len(kinds) - 1) % len(kinds)
		}
		return m, nil
	case "right":
		if m.selectedFormField == 0 {
			m.kindIndex = (m.kindIndex + 1) % len(kinds)
		}
		return m, nil
	case "enter":
		kind := kinds[m.kindIndex]
		name := m.tableName
		seats, _ := strconv.Atoi(m.maxPlayers)
		return m, dispatch(func() error {
			return m.client.CreateTable(kind, name, seats, wire.TableSettings{})
		})
	}

	// Typing into the focused field.
	switch m.selectedFormField {
	case 1: // table name
		if key == "backspace" && len(m.tableName) > 0 {
			m.tableName = m.tableName[:len(m.tableName)-1]
		} else if len(key) == 1 {
			m.tableName += key
		}
	case 2: // seats
		if key == "backspace" && len(m.maxPlayers) > 0 {
			m.maxPlayers = m.maxPlayers[:len(m.maxPlayers)-1]
		} else if len(key) == 1 && key >= "0" && key <= "9" {
			m.maxPlayers += key
		}
	}
	return m, nil
}

func (m Model) handleTableLobbyKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "s":
		if m.isHost {
			return m, dispatch(m.client.StartGame)
		}
		m.message = "only the host can start the game"
	case "q", "esc":
		return m, dispatch(m.client.LeaveTable)
	}
	return m, nil
}

func (m Model) handleGameKey(key string) (tea.Model, tea.Cmd) {
	if m.bidMode {
		return m.handleBidKey(key)
	}

	store := m.client.Store
	gs := store.State()

	switch key {
	case "left", "h":
		m.cursor = max(0, m.cursor-1)
	case "right", "l":
		if gs != nil {
			m.cursor = min(max(0, len(gs.Hand)-1), m.cursor+1)
		}
	case " ":
		// Multi-card selection for play_cards / give_cards.
		if gs != nil && m.cursor < len(gs.Hand) && m.multiSelect() {
			id := gs.Hand[m.cursor].ID()
			if m.picked[id] {
				delete(m.picked, id)
			} else {
				m.picked[id] = true
			}
		}
	case "enter":
		return m.confirmPlay(gs)
	case "p":
		if m.hasAction(wire.MsgPass) {
			return m, dispatch(m.client.Pass)
		}
		if m.hasAction(wire.MsgMakeBid) && gs != nil && gs.Kind == "euchre" {
			return m, dispatch(func() error {
				return m.client.MakeBid(wire.EuchreBid{Action: "pass"})
			})
		}
	case "b":
		if m.hasAction(wire.MsgMakeBid) {
			m.bidMode = true
			m.bidInput = ""
		}
	case "r":
		return m, dispatch(m.client.RequestState)
	case "B":
		if gs != nil && gs.TimedOutSeat >= 0 {
			seat := gs.TimedOutSeat
			return m, dispatch(func() error { return m.client.BootPlayer(seat) })
		}
	case "L":
		m.state = stateMainMenu
		return m, dispatch(m.client.LeaveGame)
	}
	return m, nil
}

// confirmPlay submits whatever the current affordances call for.
func (m Model) confirmPlay(gs *wire.GameState) (tea.Model, tea.Cmd) {
	if gs == nil || !m.client.Store.IsMyTurn() {
		return m, nil
	}

	switch {
	case m.hasAction(wire.MsgPlayCard):
		if m.cursor < len(gs.Hand) {
			id := gs.Hand[m.cursor].ID()
			return m, dispatch(func() error { return m.client.PlayCard(id) })
		}

	case m.hasAction(wire.MsgDiscardCard):
		if m.cursor < len(gs.Hand) {
			id := gs.Hand[m.cursor].ID()
			return m, dispatch(func() error { return m.client.DiscardCard(id) })
		}

	case m.hasAction(wire.MsgPlayCards):
		ids := m.pickedIDs(gs)
		m.picked = make(map[string]bool)
		return m, dispatch(func() error { return m.client.PlayCards(ids) })

	case m.hasAction(wire.MsgGiveCards):
		ids := m.pickedIDs(gs)
		m.picked = make(map[string]bool)
		return m, dispatch(func() error { return m.client.GiveCards(ids) })

	case m.hasAction(wire.MsgMakeBid):
		m.bidMode = true
		m.bidInput = ""
	}
	return m, nil
}

// handleBidKey collects a bid. Euchre bids are single keys; spades bids are
// typed numbers (or 'n' for nil).
func (m Model) handleBidKey(key string) (tea.Model, tea.Cmd) {
	gs := m.client.Store.State()
	kind := ""
	if gs != nil {
		kind = gs.Kind
	}

	if key == "esc" {
		m.bidMode = false
		m.bidInput = ""
		m.goingAlone = false
		return m, nil
	}

	switch kind {
	case "euchre":
		alone := m.goingAlone
		bid := func(b wire.EuchreBid) (tea.Model, tea.Cmd) {
			m.bidMode = false
			m.goingAlone = false
			return m, dispatch(func() error { return m.client.MakeBid(b) })
		}
		switch key {
		case "a":
			m.goingAlone = !m.goingAlone
		case "p":
			return bid(wire.EuchreBid{Action: "pass"})
		case "o", "enter":
			return bid(wire.EuchreBid{Action: "order_up", GoingAlone: alone})
		case "s", "h", "d", "c":
			return bid(wire.EuchreBid{Action: "call_suit", Suit: key, GoingAlone: alone})
		}

	case "spades":
		switch {
		case key == "n":
			m.bidMode = false
			return m, dispatch(func() error {
				return m.client.MakeBid(wire.SpadesBid{Type: "nil"})
			})
		case key == "backspace" && len(m.bidInput) > 0:
			m.bidInput = m.bidInput[:len(m.bidInput)-1]
		case key == "enter" && m.bidInput != "":
			count, _ := strconv.Atoi(m.bidInput)
			m.bidMode = false
			m.bidInput = ""
			return m, dispatch(func() error {
				return m.client.MakeBid(wire.SpadesBid{Type: "number", Count: count})
			})
		case len(key) == 1 && key >= "0" && key <= "9":
			m.bidInput += key
		}

	default:
		m.bidMode = false
	}
	return m, nil
}

func (m Model) handleGameOverKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "r":
		if m.isHost {
			return m, dispatch(m.client.RestartGame)
		}
		m.message = "only the host can restart"
	case "q", "esc":
		m.state = stateMainMenu
		return m, dispatch(m.client.LeaveTable)
	}
	return m, nil
}

// hasAction reports whether the store's affordances include the action.
func (m Model) hasAction(t wire.Type) bool {
	for _, a := range m.client.Store.ValidActions() {
		if a == string(t) {
			return true
		}
	}
	return false
}

// multiSelect reports whether the current affordances take a card set.
func (m Model) multiSelect() bool {
	return m.hasAction(wire.MsgPlayCards) || m.hasAction(wire.MsgGiveCards)
}

// pickedIDs resolves the selection, falling back to the cursor card.
func (m Model) pickedIDs(gs *wire.GameState) []string {
	ids := make([]string, 0, len(m.picked))
	for _, c := range gs.Hand {
		if m.picked[c.ID()] {
			ids = append(ids, c.ID())
		}
	}
	if len(ids) == 0 && m.cursor < len(gs.Hand) {
		ids = append(ids, gs.Hand[m.cursor].ID())
	}
	return ids
}
