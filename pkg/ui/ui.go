package ui

import (
	"context"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cardroom/cardroom/pkg/client"
	"github.com/cardroom/cardroom/pkg/wire"
)

// kinds offered by the create table form.
var kinds = []string{"euchre", "president", "spades"}

type menuOption string

const (
	optionBrowseTables menuOption = "Browse Tables"
	optionCreateTable  menuOption = "Create Table"
	optionQuit         menuOption = "Quit"
)

// screenState represents the current screen in the UI
type screenState int

const (
	stateMainMenu screenState = iota
	stateTableList
	stateCreateTable
	stateTableLobby
	stateGame
	stateGameOver
)

// Model contains all the state for our UI. Game state itself lives in the
// client store; the model only keeps navigation and input state.
type Model struct {
	ctx    context.Context
	client *client.Client

	state   screenState
	err     error
	message string

	// Main menu
	menuOptions  []menuOption
	selectedItem int

	// Table list
	tables        []wire.TableInfo
	selectedTable int

	// Create table form
	kindIndex         int
	tableName         string
	maxPlayers        string
	selectedFormField int

	// Table lobby
	table  wire.TableInfo
	mySeat int
	isHost bool

	// In-game input
	cursor     int
	picked     map[string]bool
	bidMode    bool
	bidInput   string
	goingAlone bool
}

// NewModel creates a new UI model around a running client.
func NewModel(ctx context.Context, c *client.Client) Model {
	return Model{
		ctx:    ctx,
		client: c,
		state:  stateMainMenu,
		menuOptions: []menuOption{
			optionBrowseTables,
			optionCreateTable,
			optionQuit,
		},
		maxPlayers: "4",
		picked:     make(map[string]bool),
	}
}

func (m Model) Init() tea.Cmd {
	return listenUpdates(m.client)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case errorMsg:
		m.err = error(msg)

	case animTickMsg:
		// Release queued animation steps; flush wholesale when the
		// queue lags too far behind the wire.
		if m.client.Queue.Len() > animQueueFlushLen {
			m.client.Queue.Disable()
			if m.state == stateGame {
				m.client.Queue.Enable()
			}
		} else {
			m.client.Queue.Dequeue()
		}
		if m.state == stateGame || m.client.Queue.Len() > 0 {
			cmds = append(cmds, animTicker())
		}

	default:
		// Everything else came over the client's update channel; keep
		// draining it.
		cmds = append(cmds, listenUpdates(m.client))
		m, cmds = m.handleClientMsg(msg, cmds)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleClientMsg(msg tea.Msg, cmds []tea.Cmd) (Model, []tea.Cmd) {
	switch msg := msg.(type) {
	case client.ConnectedMsg:
		if bool(msg) {
			m.message = "connected"
		} else {
			m.message = "connection lost, reconnecting..."
		}

	case client.WelcomeMsg:
		m.err = nil

	case client.LobbyStateMsg:
		m.tables = msg.Tables
		if m.selectedTable >= len(m.tables) {
			m.selectedTable = max(0, len(m.tables)-1)
		}

	case client.TableUpdatedMsg:
		m.upsertTable(wire.TableInfo(msg))
		if m.table.ID == msg.ID {
			m.table = wire.TableInfo(msg)
			m.isHost = m.hostSeat() == m.mySeat
		}

	case client.JoinedTableMsg:
		m.state = stateTableLobby
		m.table = msg.Table
		m.mySeat = msg.SeatIndex
		m.isHost = m.hostSeat() == m.mySeat
		m.message = fmt.Sprintf("seated at %s", m.table.Name)

	case client.LeftTableMsg:
		if m.state == stateTableLobby {
			m.state = stateMainMenu
			m.message = "left table"
		}
		m.table = wire.TableInfo{}

	case client.GameStartedMsg:
		m.state = stateGame
		m.cursor = 0
		m.picked = make(map[string]bool)
		m.bidMode = false
		m.bidInput = ""
		m.goingAlone = false
		m.err = nil
		m.message = ""
		m.client.Queue.Enable()
		cmds = append(cmds, animTicker())

	case client.GameStateMsg:
		// Keep the hand cursor in range across redraws.
		if gs := m.client.Store.State(); gs != nil && m.cursor >= len(gs.Hand) {
			m.cursor = max(0, len(gs.Hand)-1)
		}

	case client.YourTurnMsg:
		m.message = "it is your turn"

	case client.EventMsg:
		// The store keeps the feed; nothing to track here.

	case client.GameOverMsg:
		m.client.Queue.Disable()
		m.state = stateGameOver

	case client.ServerErrorMsg:
		m.message = fmt.Sprintf("%s: %s", msg.Code, msg.Message)
	}

	return m, cmds
}

// upsertTable merges one table update into the cached lobby listing.
func (m *Model) upsertTable(info wire.TableInfo) {
	for i := range m.tables {
		if m.tables[i].ID == info.ID {
			m.tables[i] = info
			return
		}
	}
	m.tables = append(m.tables, info)
}

// hostSeat finds the host's seat index at the cached table, -1 when unknown.
func (m *Model) hostSeat() int {
	for _, p := range m.table.Players {
		if p.IsHost {
			return p.SeatIndex
		}
	}
	return -1
}

// Run starts the UI and blocks until it exits.
func Run(ctx context.Context, c *client.Client) {
	p := tea.NewProgram(NewModel(ctx, c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running UI: %v", err)
	}
}
