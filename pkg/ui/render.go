package ui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cardroom/cardroom/pkg/client"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
)

// View renders the current state of the UI
func (m Model) View() string {
	var s string

	if m.message != "" {
		s += titleStyle.Render(m.message) + "\n\n"
	}
	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n"
	}

	switch m.state {
	case stateMainMenu:
		s += m.viewMainMenu()
	case stateTableList:
		s += m.viewTableList()
	case stateCreateTable:
		s += m.viewCreateTable()
	case stateTableLobby:
		s += m.viewTableLobby()
	case stateGame:
		s += m.viewGame()
	case stateGameOver:
		s += m.viewGameOver()
	}

	return s
}

func (m Model) viewMainMenu() string {
	s := titleStyle.Render("Cardroom") + "\n\n"
	if id := m.client.ID; id != "" {
		s += fmt.Sprintf("Identity: %s\n\n", id)
	}
	for i, option := range m.menuOptions {
		if i == m.selectedItem {
			s += focusedStyle.Render(fmt.Sprintf("> %s", option)) + "\n"
		} else {
			s += blurredStyle.Render(fmt.Sprintf("  %s", option)) + "\n"
		}
	}
	s += "\n" + helpStyle.Render("arrows to move, enter to select, q to quit")
	return s
}

func (m Model) viewTableList() string {
	s := titleStyle.Render("Tables") + "\n\n"
	if len(m.tables) == 0 {
		s += "No tables yet. Create one!\n"
	}
	for i, t := range m.tables {
		marker := " "
		style := blurredStyle
		if i == m.selectedTable {
			marker = ">"
			style = focusedStyle
		}
		status := "gathering"
		if t.Started {
			status = "playing"
		}
		s += style.Render(fmt.Sprintf("%s %s (%s) %d/%d seats, host %s [%s]",
			marker, t.Name, t.Kind, len(t.Players), t.MaxPlayers, t.HostName, status)) + "\n"
	}
	s += "\n" + helpStyle.Render("enter to join, q to go back")
	return s
}

func (m Model) viewCreateTable() string {
	s := titleStyle.Render("Create Table") + "\n\n"

	fields := []struct {
		label string
		value string
	}{
		{"Game", kinds[m.kindIndex] + "  (left/right to change)"},
		{"Name", m.tableName},
		{"Seats", m.maxPlayers},
	}
	for i, f := range fields {
		marker := " "
		style := blurredStyle
		if i == m.selectedFormField {
			marker = ">"
			style = focusedStyle
		}
		s += style.Render(fmt.Sprintf("%s %s: %s", marker, f.label, f.value)) + "\n"
	}
	s += "\n" + helpStyle.Render("enter to create, esc to go back")
	return s
}

func (m Model) viewTableLobby() string {
	s := titleStyle.Render(fmt.Sprintf("Table: %s (%s)", m.table.Name, m.table.Kind)) + "\n\n"
	for i := 0; i < m.table.MaxPlayers; i++ {
		name := "(empty)"
		suffix := ""
		for _, p := range m.table.Players {
			if p.SeatIndex == i {
				name = p.Name
				if p.IsHost {
					suffix = " (host)"
				}
				break
			}
		}
		line := fmt.Sprintf("seat %d: %s%s", i, name, suffix)
		if i == m.mySeat {
			s += focusedStyle.Render(line+" <- you") + "\n"
		} else {
			s += blurredStyle.Render(line) + "\n"
		}
	}
	help := "q to leave"
	if m.isHost {
		help = "s to start (empty seats get AI players), " + help
	} else {
		help = "waiting for the host to start, " + help
	}
	s += "\n" + helpStyle.Render(help)
	return s
}

func (m Model) viewGame() string {
	store := m.client.Store
	gs := store.State()
	if gs == nil {
		return infoStyle.Render("waiting for the first deal...")
	}

	kind := gs.Kind
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	s := titleStyle.Render(fmt.Sprintf("%s / %s", kind, gs.Phase)) + "\n"
	s += m.viewSeats(store, gs)
	s += m.viewBoard(gs)
	s += m.viewHand(store, gs)
	s += m.viewTurnBar(store, gs)
	s += m.viewEvents(store)
	s += "\n" + helpStyle.Render(m.gameHelp(gs))
	return s
}

// viewSeats lays the seats out left to right in visual order, the local
// player first.
func (m Model) viewSeats(store *client.Store, gs *wire.GameState) string {
	views := store.Seats()
	sort.Slice(views, func(a, b int) bool {
		return views[a].VisualIndex < views[b].VisualIndex
	})

	boxes := make([]string, 0, len(views))
	for _, v := range views {
		label := v.Name
		if v.IsAI {
			label += " [AI]"
		} else if !v.Connected {
			label += " [away]"
		}
		body := fmt.Sprintf("%s\n%d cards", label, v.HandCount)
		if v.Index == gs.Dealer {
			body += " *dealer*"
		}

		style := seatBoxStyle
		switch {
		case v.Index == gs.TimedOutSeat:
			style = timedOutSeatStyle
		case v.IsCurrent:
			style = currentSeatStyle
		case v.IsYou:
			style = yourSeatStyle
		}
		boxes = append(boxes, style.Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...) + "\n"
}

// viewBoard renders the kind specific public state.
func (m Model) viewBoard(gs *wire.GameState) string {
	switch gs.Kind {
	case "euchre":
		var st wire.EuchreState
		if json.Unmarshal(gs.Game, &st) != nil {
			return ""
		}
		s := ""
		if st.TurnUp != nil {
			s += fmt.Sprintf("Turned up: %s  ", renderCard(*st.TurnUp, false, false))
		}
		if st.Trump != "" {
			s += fmt.Sprintf("Trump: %s", st.Trump)
			if st.GoingAlone {
				s += " (maker going alone)"
			}
			s += "  "
		}
		if len(st.Trick) > 0 {
			s += "Trick: " + renderSeatCards(st.Trick)
		}
		if len(st.TeamScores) == 2 {
			s += fmt.Sprintf("\nScore %d - %d, tricks %v", st.TeamScores[0], st.TeamScores[1], st.TricksWon)
		}
		return infoStyle.Render(s) + "\n"

	case "president":
		var st wire.PresidentState
		if json.Unmarshal(gs.Game, &st) != nil {
			return ""
		}
		s := fmt.Sprintf("Pile: %d cards", st.PileSize)
		if st.LastPlay != nil {
			ids := make([]string, len(st.LastPlay.Cards))
			for i, c := range st.LastPlay.Cards {
				ids[i] = c.String()
			}
			s += fmt.Sprintf("  Last play by seat %d: %s", st.LastPlay.Seat, strings.Join(ids, " "))
		}
		if len(st.FinishedOrder) > 0 {
			s += fmt.Sprintf("\nFinished: %v", st.FinishedOrder)
		}
		if len(st.Points) > 0 {
			s += fmt.Sprintf("  Points: %v", st.Points)
		}
		return infoStyle.Render(s) + "\n"

	case "spades":
		var st wire.SpadesState
		if json.Unmarshal(gs.Game, &st) != nil {
			return ""
		}
		bids := make([]string, 0, len(st.Bids))
		for _, b := range st.Bids {
			switch {
			case !b.Made:
				bids = append(bids, "-")
			case b.Nil:
				bids = append(bids, "nil")
			default:
				bids = append(bids, fmt.Sprintf("%d", b.Count))
			}
		}
		s := fmt.Sprintf("Bids: [%s]  Tricks: %v", strings.Join(bids, " "), st.TricksWon)
		if st.SpadesBroken {
			s += "  (spades broken)"
		}
		if len(st.Trick) > 0 {
			s += "\nTrick: " + renderSeatCards(st.Trick)
		}
		if len(st.TeamScores) == 2 {
			s += fmt.Sprintf("\nScore %d (%d bags) - %d (%d bags)",
				st.TeamScores[0], st.TeamBags[0], st.TeamScores[1], st.TeamBags[1])
		}
		return infoStyle.Render(s) + "\n"
	}
	return ""
}

func (m Model) viewHand(store *client.Store, gs *wire.GameState) string {
	if len(gs.Hand) == 0 {
		return ""
	}
	valid := make(map[string]bool)
	for _, id := range store.ValidCards() {
		valid[id] = true
	}
	restrict := store.IsMyTurn() && len(valid) > 0

	rendered := make([]string, 0, len(gs.Hand))
	for i, c := range gs.Hand {
		style := cardStyle
		if c.Suit().IsRed() {
			style = redCardStyle
		}
		switch {
		case m.picked[c.ID()]:
			style = pickedCardStyle
		case i == m.cursor:
			style = cursorCardStyle
		case restrict && !valid[c.ID()]:
			style = deadCardStyle
		}
		rendered = append(rendered, style.Render(c.String()))
	}
	return "\n" + lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m Model) viewTurnBar(store *client.Store, gs *wire.GameState) string {
	if m.bidMode {
		switch gs.Kind {
		case "euchre":
			alone := ""
			if m.goingAlone {
				alone = " [going alone]"
			}
			return turnBannerStyle.Render("Bid: o=order up  s/h/d/c=call suit  p=pass  a=toggle alone  esc=cancel"+alone) + "\n"
		case "spades":
			return turnBannerStyle.Render(fmt.Sprintf("Bid: type a number then enter, or n for nil (so far: %q)", m.bidInput)) + "\n"
		}
	}
	if !store.IsMyTurn() {
		cur := "waiting..."
		for _, v := range store.Seats() {
			if v.IsCurrent {
				cur = fmt.Sprintf("waiting for %s...", v.Name)
			}
		}
		return infoStyle.Render(cur) + "\n"
	}
	actions := store.ValidActions()
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = actionButtonStyle.Render(a)
	}
	return turnBannerStyle.Render("YOUR TURN") + " " +
		lipgloss.JoinHorizontal(lipgloss.Center, parts...) + "\n"
}

func (m Model) viewEvents(store *client.Store) string {
	events := store.Events()
	if len(events) == 0 {
		return ""
	}
	if len(events) > 6 {
		events = events[len(events)-6:]
	}
	s := "\n"
	for _, e := range events {
		s += eventStyle.Render(e) + "\n"
	}
	return s
}

func (m Model) gameHelp(gs *wire.GameState) string {
	parts := []string{"arrows: move"}
	if m.multiSelect() {
		parts = append(parts, "space: select")
	}
	parts = append(parts, "enter: play/confirm")
	if m.hasAction(wire.MsgMakeBid) {
		parts = append(parts, "b: bid")
	}
	if m.hasAction(wire.MsgPass) || gs.Kind == "euchre" {
		parts = append(parts, "p: pass")
	}
	if gs.TimedOutSeat >= 0 {
		parts = append(parts, "B: boot timed-out player")
	}
	parts = append(parts, "r: resync", "L: leave game")
	return strings.Join(parts, "  |  ")
}

func (m Model) viewGameOver() string {
	s := titleStyle.Render("Game Over") + "\n\n"
	if result := m.client.Store.GameOver(); result != nil {
		if len(result.Names) > 0 {
			s += fmt.Sprintf("Winners: %s\n", strings.Join(result.Names, ", "))
		}
		if result.Summary != "" {
			s += result.Summary + "\n"
		}
	}
	help := "q to return to the lobby"
	if m.isHost {
		help = "r to play again, " + help
	}
	s += "\n" + helpStyle.Render(help)
	return s
}

func renderCard(c cards.Card, cursor, picked bool) string {
	style := cardStyle
	if c.Suit().IsRed() {
		style = redCardStyle
	}
	if picked {
		style = pickedCardStyle
	} else if cursor {
		style = cursorCardStyle
	}
	return style.Render(c.String())
}

func renderSeatCards(trick []wire.SeatCard) string {
	parts := make([]string, len(trick))
	for i, sc := range trick {
		parts[i] = fmt.Sprintf("%d:%s", sc.Seat, sc.Card)
	}
	return strings.Join(parts, " ")
}
