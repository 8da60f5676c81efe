// Package bot runs a headless autoplayer against a cardroom server. It sits
// at a table like any human client, derives its moves from the same public
// rule hints the TUI falls back on, and paces itself under the server's rate
// limits. Useful for filling seats during development and load tests.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/decred/slog"
	"golang.org/x/time/rate"

	"github.com/cardroom/cardroom/pkg/client"
	"github.com/cardroom/cardroom/pkg/games/cards"
	"github.com/cardroom/cardroom/pkg/wire"
)

// Bot is one autoplayer session.
type Bot struct {
	cfg     *Config
	log     slog.Logger
	client  *client.Client
	limiter *rate.Limiter
	rng     *rand.Rand

	table    wire.TableInfo
	mySeat   int
	creating bool

	// lastActedSeq stops the bot acting twice on the same state when both
	// the snapshot and the prompt arrive.
	lastActedSeq uint64
}

// New builds a bot around its own websocket client.
func New(ctx context.Context, cfg *Config) (*Bot, error) {
	if cfg.TableID == "" && cfg.CreateKind == "" {
		return nil, fmt.Errorf("either table.id or table.kind must be set")
	}
	nickname := cfg.Nickname
	if nickname == "" {
		nickname = fmt.Sprintf("bot-%04d", rand.Intn(10000))
	}

	c, err := client.NewClient(ctx, &client.Config{
		ServerURL:     cfg.ServerURL,
		Nickname:      nickname,
		DataDir:       cfg.DataDir,
		Notifications: client.NewNotificationManager(),
		LogBackend:    cfg.LogBackend,
	})
	if err != nil {
		return nil, err
	}

	aps := cfg.ActionsPerSecond
	if aps <= 0 {
		aps = 4
	}
	var log slog.Logger = slog.Disabled
	if cfg.LogBackend != nil {
		log = cfg.LogBackend.Logger("BOT")
	}
	return &Bot{
		cfg:     cfg,
		log:     log,
		client:  c,
		limiter: rate.NewLimiter(rate.Limit(aps), 1),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		mySeat:  -1,
	}, nil
}

// Run connects and plays until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		if err := b.client.Run(ctx); err != nil && ctx.Err() == nil {
			b.log.Errorf("client stopped: %v", err)
		}
	}()
	defer b.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.client.UpdatesCh:
			b.handle(ctx, msg)
		case err := <-b.client.ErrorsCh:
			b.log.Warnf("client error: %v", err)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg interface{}) {
	switch msg := msg.(type) {
	case client.LobbyStateMsg:
		b.ensureSeat()

	case client.JoinedTableMsg:
		b.table = msg.Table
		b.mySeat = msg.SeatIndex
		b.creating = false
		b.log.Infof("seated at table %s (seat %d)", b.table.ID, b.mySeat)
		b.maybeStart()

	case client.TableUpdatedMsg:
		if b.table.ID == msg.ID {
			b.table = wire.TableInfo(msg)
			b.maybeStart()
		}

	case client.LeftTableMsg:
		if b.table.ID == msg.TableID {
			b.table = wire.TableInfo{}
			b.mySeat = -1
		}

	case client.GameStartedMsg:
		b.lastActedSeq = 0
		b.log.Infof("game started in room %s", msg.RoomID)

	case client.GameStateMsg, client.YourTurnMsg:
		b.maybeAct(ctx)

	case client.GameOverMsg:
		if b.cfg.AutoRestart && b.isHost() {
			time.Sleep(2 * time.Second)
			if err := b.client.RestartGame(); err != nil {
				b.log.Warnf("restart: %v", err)
			}
		}

	case client.ServerErrorMsg:
		b.log.Debugf("server error: %s %s", msg.Code, msg.Message)
	}
}

// ensureSeat joins the configured table, or creates one when hosting.
func (b *Bot) ensureSeat() {
	if b.table.ID != "" || b.creating {
		return
	}
	if b.cfg.TableID != "" {
		if err := b.client.JoinTable(b.cfg.TableID, -1); err != nil {
			b.log.Warnf("join table: %v", err)
		}
		return
	}
	b.creating = true
	err := b.client.CreateTable(b.cfg.CreateKind, "", b.cfg.CreateSeats, wire.TableSettings{})
	if err != nil {
		b.creating = false
		b.log.Warnf("create table: %v", err)
	}
}

func (b *Bot) isHost() bool {
	for _, p := range b.table.Players {
		if p.SeatIndex == b.mySeat {
			return p.IsHost
		}
	}
	return false
}

// maybeStart starts a hosted game once every seat is taken.
func (b *Bot) maybeStart() {
	if !b.cfg.AutoStart || b.table.Started || !b.isHost() {
		return
	}
	if len(b.table.Players) < b.table.MaxPlayers {
		return
	}
	if err := b.client.StartGame(); err != nil {
		b.log.Warnf("start game: %v", err)
	}
}

// maybeAct plays one move when the store shows our turn and we have not
// already acted on this state.
func (b *Bot) maybeAct(ctx context.Context) {
	store := b.client.Store
	if !store.IsMyTurn() {
		return
	}
	seq := store.StateSeq()
	if seq <= b.lastActedSeq {
		return
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	delay := b.cfg.ThinkDelay + time.Duration(b.rng.Intn(400))*time.Millisecond
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	// The turn may have moved on while we were thinking.
	if !store.IsMyTurn() || store.StateSeq() != seq {
		return
	}

	if err := b.act(store); err != nil {
		b.log.Warnf("action failed: %v", err)
		return
	}
	b.lastActedSeq = seq
}

// act picks a move from the current affordances.
func (b *Bot) act(store *client.Store) error {
	gs := store.State()
	if gs == nil {
		return nil
	}
	actions := store.ValidActions()
	has := func(t wire.Type) bool {
		for _, a := range actions {
			if a == string(t) {
				return true
			}
		}
		return false
	}

	switch {
	case has(wire.MsgPlayCard):
		if id := b.pickCard(store.ValidCards(), gs); id != "" {
			return b.client.PlayCard(id)
		}

	case has(wire.MsgDiscardCard):
		ids := store.ValidCards()
		if len(ids) == 0 {
			ids = cards.IDs(gs.Hand)
		}
		if len(ids) > 0 {
			return b.client.DiscardCard(ids[b.rng.Intn(len(ids))])
		}

	case has(wire.MsgPlayCards):
		plays := store.ValidPlays()
		if len(plays) == 0 {
			if has(wire.MsgPass) {
				return b.client.Pass()
			}
			return nil
		}
		return b.client.PlayCards(plays[b.rng.Intn(len(plays))])

	case has(wire.MsgGiveCards):
		return b.giveCards(store, gs)

	case has(wire.MsgMakeBid):
		return b.makeBid(gs)

	case has(wire.MsgPass):
		return b.client.Pass()
	}
	return nil
}

// pickCard chooses among the legal cards, falling back to any hand card.
func (b *Bot) pickCard(valid []string, gs *wire.GameState) string {
	if len(valid) == 0 {
		valid = cards.IDs(gs.Hand)
	}
	if len(valid) == 0 {
		return ""
	}
	return valid[b.rng.Intn(len(valid))]
}

// giveCards hands over the exchange set: the hinted cards when constrained,
// otherwise our lowest cards.
func (b *Bot) giveCards(store *client.Store, gs *wire.GameState) error {
	var st wire.PresidentState
	if len(gs.Game) > 0 {
		if err := json.Unmarshal(gs.Game, &st); err != nil {
			return err
		}
	}
	gives := st.ExchangeGives
	if gives == 0 {
		gives = 1
	}

	ids := store.ValidCards()
	hand, err := cards.FromIDs(ids)
	if err != nil || len(hand) == 0 {
		hand = cards.Clone(gs.Hand)
	}
	sort.Slice(hand, func(i, j int) bool {
		return hand[i].Rank().Index() < hand[j].Rank().Index()
	})
	if gives > len(hand) {
		gives = len(hand)
	}
	return b.client.GiveCards(cards.IDs(hand[:gives]))
}

// makeBid produces a kind appropriate bid.
func (b *Bot) makeBid(gs *wire.GameState) error {
	switch gs.Kind {
	case "euchre":
		return b.client.MakeBid(b.euchreBid(gs))
	case "spades":
		return b.client.MakeBid(b.spadesBid(gs))
	}
	return nil
}

// euchreBid orders up or calls with a strong suit, passes otherwise. The
// stuck dealer always calls its best remaining suit.
func (b *Bot) euchreBid(gs *wire.GameState) wire.EuchreBid {
	var st wire.EuchreState
	if len(gs.Game) > 0 {
		if err := json.Unmarshal(gs.Game, &st); err != nil {
			return wire.EuchreBid{Action: "pass"}
		}
	}

	counts := make(map[cards.Suit]int)
	for _, c := range gs.Hand {
		suit := c.Suit()
		// The left bower counts toward the other suit of its color.
		if c.Rank() == cards.Jack {
			for _, s := range cards.Suits {
				if s != suit && cards.SameColor(s, suit) {
					counts[s]++
				}
			}
		}
		counts[suit]++
	}

	if st.BidRound == 1 {
		if st.TurnUp != nil && counts[st.TurnUp.Suit()] >= 3 {
			return wire.EuchreBid{Action: "order_up"}
		}
		return wire.EuchreBid{Action: "pass"}
	}

	var best cards.Suit
	bestCount := -1
	for _, s := range cards.Suits {
		if string(s) == st.TurnedDown {
			continue
		}
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	stuck := gs.YourSeat == gs.Dealer
	if stuck || bestCount >= 3 {
		return wire.EuchreBid{Action: "call_suit", Suit: string(best)}
	}
	return wire.EuchreBid{Action: "pass"}
}

// spadesBid estimates tricks from high cards and spade length.
func (b *Bot) spadesBid(gs *wire.GameState) wire.SpadesBid {
	count := 0
	spades := 0
	for _, c := range gs.Hand {
		if c.Suit() == cards.Spades {
			spades++
			if c.Rank().Index() >= cards.Queen.Index() {
				count++
			}
			continue
		}
		if c.Rank() == cards.Ace {
			count++
		}
	}
	if spades > 3 {
		count += spades - 3
	}
	if count < 1 {
		count = 1
	}
	if count > 13 {
		count = 13
	}
	return wire.SpadesBid{Type: "number", Count: count}
}
