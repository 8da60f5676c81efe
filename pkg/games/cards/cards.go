package cards

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
)

// Suit represents a card suit
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Suits lists the four suits in canonical order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Letter returns the single ASCII letter used in card ids.
func (s Suit) Letter() string {
	switch s {
	case Spades:
		return "S"
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	}
	return "?"
}

// IsRed reports whether the suit is hearts or diamonds.
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// SameColor reports whether two suits share a color. Games that pair suits
// by color (bower rules) depend on this.
func SameColor(a, b Suit) bool {
	return a.IsRed() == b.IsRed()
}

// Rank represents a card rank
type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"
)

// Ranks lists all thirteen ranks from two to ace.
var Ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// EuchreRanks is the six-rank subset used by euchre decks.
var EuchreRanks = []Rank{Nine, Ten, Jack, Queen, King, Ace}

// Index returns the standard ordering of the rank with two low (2) and ace
// high (14). Zero for an unknown rank.
func (r Rank) Index() int {
	switch r {
	case Two:
		return 2
	case Three:
		return 3
	case Four:
		return 4
	case Five:
		return 5
	case Six:
		return 6
	case Seven:
		return 7
	case Eight:
		return 8
	case Nine:
		return 9
	case Ten:
		return 10
	case Jack:
		return 11
	case Queen:
		return 12
	case King:
		return 13
	case Ace:
		return 14
	}
	return 0
}

// letter returns the single character used in card ids ("T" for ten).
func (r Rank) letter() string {
	if r == Ten {
		return "T"
	}
	return string(r)
}

// Card represents a playing card
type Card struct {
	suit Suit
	rank Rank
}

// New creates a card from a suit and rank.
func New(suit Suit, rank Rank) Card {
	return Card{suit: suit, rank: rank}
}

// Suit returns the card's suit.
func (c Card) Suit() Suit { return c.suit }

// Rank returns the card's rank.
func (c Card) Rank() Rank { return c.rank }

// ID returns the compact wire id of the card, rank letter then suit letter
// ("AS", "TD", "9H").
func (c Card) ID() string {
	return c.rank.letter() + c.suit.Letter()
}

// String returns a display representation of the card.
func (c Card) String() string {
	return string(c.rank) + string(c.suit)
}

// IsZero reports whether the card is the zero value.
func (c Card) IsZero() bool {
	return c.suit == "" && c.rank == ""
}

// ParseID parses a compact card id back into a Card.
func ParseID(id string) (Card, error) {
	if len(id) < 2 {
		return Card{}, fmt.Errorf("invalid card id: %q", id)
	}
	var rank Rank
	switch rl := id[:len(id)-1]; rl {
	case "T", "10":
		rank = Ten
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	case "A":
		rank = Ace
	default:
		rank = Rank(rl)
		if rank.Index() == 0 {
			return Card{}, fmt.Errorf("invalid card rank in id: %q", id)
		}
	}
	var suit Suit
	switch id[len(id)-1] {
	case 'S', 's':
		suit = Spades
	case 'H', 'h':
		suit = Hearts
	case 'D', 'd':
		suit = Diamonds
	case 'C', 'c':
		suit = Clubs
	default:
		return Card{}, fmt.Errorf("invalid card suit in id: %q", id)
	}
	return Card{suit: suit, rank: rank}, nil
}

// cardJSON is the wire form of a card.
type cardJSON struct {
	ID    string `json:"id"`
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{
		ID:    c.ID(),
		Suit:  string(c.suit),
		Value: string(c.rank),
	})
}

// UnmarshalJSON implements json.Unmarshaler. It accepts either the full
// object form or falls back to the id when suit/value are absent.
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	if cj.Suit == "" && cj.Value == "" {
		parsed, err := ParseID(cj.ID)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	switch cj.Suit {
	case "♠", "s", "S", "spades", "Spades":
		c.suit = Spades
	case "♥", "h", "H", "hearts", "Hearts":
		c.suit = Hearts
	case "♦", "d", "D", "diamonds", "Diamonds":
		c.suit = Diamonds
	case "♣", "c", "C", "clubs", "Clubs":
		c.suit = Clubs
	default:
		return fmt.Errorf("invalid suit: %s", cj.Suit)
	}

	switch cj.Value {
	case "T", "t", "10", "ten", "Ten":
		c.rank = Ten
	default:
		c.rank = Rank(cj.Value)
		if c.rank.Index() == 0 {
			return fmt.Errorf("invalid value: %s", cj.Value)
		}
	}
	return nil
}

// Deck represents a deck of cards
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a shuffled 52 card deck using the given random number
// generator.
func NewDeck(rng *rand.Rand) *Deck {
	return NewDeckFromRanks(rng, Ranks)
}

// NewEuchreDeck creates a shuffled 24 card euchre deck (nine through ace).
func NewEuchreDeck(rng *rand.Rand) *Deck {
	return NewDeckFromRanks(rng, EuchreRanks)
}

// NewDeckFromRanks creates a shuffled deck holding every suit of the given
// ranks.
func NewDeckFromRanks(rng *rand.Rand, ranks []Rank) *Deck {
	d := &Deck{
		cards: make([]Card, 0, len(ranks)*len(Suits)),
		rng:   rng,
	}
	for _, suit := range Suits {
		for _, rank := range ranks {
			d.cards = append(d.cards, Card{suit: suit, rank: rank})
		}
	}
	d.Shuffle()
	return d
}

// Shuffle randomizes the order of cards in the deck.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes and returns the top card from the deck.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DrawN removes and returns the top n cards. It returns fewer when the deck
// runs out.
func (d *Deck) DrawN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	out := make([]Card, n)
	copy(out, d.cards[:n])
	d.cards = d.cards[n:]
	return out
}

// DealAll distributes every remaining card round robin across hands,
// starting at the given hand. With an uneven split the earliest hands in
// deal order receive the extra cards.
func (d *Deck) DealAll(hands, start int) [][]Card {
	out := make([][]Card, hands)
	for i := 0; len(d.cards) > 0; i++ {
		card, _ := d.Draw()
		h := (start + i) % hands
		out[h] = append(out[h], card)
	}
	return out
}

// Size returns the number of cards remaining in the deck.
func (d *Deck) Size() int {
	return len(d.cards)
}

// Remaining returns a copy of the undrawn cards.
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// ---------- hand helpers ----------

// Contains reports whether hand holds card.
func Contains(hand []Card, card Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}
	return false
}

// Remove returns hand without the first occurrence of card. The second
// return is false when the card was not present.
func Remove(hand []Card, card Card) ([]Card, bool) {
	for i, c := range hand {
		if c == card {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, true
		}
	}
	return hand, false
}

// RemoveAll removes every card in picks from hand. It returns false when any
// pick is missing, leaving hand untouched.
func RemoveAll(hand []Card, picks []Card) ([]Card, bool) {
	out := hand
	for _, p := range picks {
		var ok bool
		out, ok = Remove(out, p)
		if !ok {
			return hand, false
		}
	}
	return out, true
}

// Clone returns a copy of hand.
func Clone(hand []Card) []Card {
	out := make([]Card, len(hand))
	copy(out, hand)
	return out
}

// Sort orders hand by suit then descending rank, in place.
func Sort(hand []Card) {
	suitOrder := map[Suit]int{Spades: 0, Hearts: 1, Clubs: 2, Diamonds: 3}
	sort.Slice(hand, func(i, j int) bool {
		if hand[i].suit != hand[j].suit {
			return suitOrder[hand[i].suit] < suitOrder[hand[j].suit]
		}
		return hand[i].rank.Index() > hand[j].rank.Index()
	})
}

// IDs converts a hand to its wire ids.
func IDs(hand []Card) []string {
	out := make([]string, len(hand))
	for i, c := range hand {
		out[i] = c.ID()
	}
	return out
}

// FromIDs parses a list of wire ids into cards.
func FromIDs(ids []string) ([]Card, error) {
	out := make([]Card, len(ids))
	for i, id := range ids {
		c, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
