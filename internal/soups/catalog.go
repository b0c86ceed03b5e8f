// Package soups holds the built-in riddle catalog. The catalog is
// static lookup data; sessions reference riddles by id only.
package soups

import (
	"math/rand"

	"github.com/soupnight/souproom/internal/domain"
)

// Catalog resolves riddles by id and hands out random picks for rooms
// created without an explicit choice.
type Catalog struct {
	soups []domain.Soup
	byID  map[string]*domain.Soup
}

// NewCatalog builds a catalog from the given riddles. With no
// arguments the built-in set is used.
func NewCatalog(soups ...domain.Soup) *Catalog {
	if len(soups) == 0 {
		soups = builtin
	}
	c := &Catalog{
		soups: soups,
		byID:  make(map[string]*domain.Soup, len(soups)),
	}
	for i := range c.soups {
		c.byID[c.soups[i].ID] = &c.soups[i]
	}
	return c
}

// ByID returns the riddle with the given id, or nil.
func (c *Catalog) ByID(id string) *domain.Soup {
	return c.byID[id]
}

// Random returns a uniformly random riddle. Returns nil only for an
// empty catalog.
func (c *Catalog) Random() *domain.Soup {
	if len(c.soups) == 0 {
		return nil
	}
	return &c.soups[rand.Intn(len(c.soups))]
}

// Summaries returns the player-visible view of every riddle, in
// catalog order.
func (c *Catalog) Summaries() []domain.SoupSummary {
	out := make([]domain.SoupSummary, 0, len(c.soups))
	for i := range c.soups {
		out = append(out, c.soups[i].Summary())
	}
	return out
}

// Len returns the number of riddles in the catalog.
func (c *Catalog) Len() int {
	return len(c.soups)
}

var builtin = []domain.Soup{
	{
		ID:         "p1",
		Title:      "The Salted Soup",
		Opening:    "A man orders turtle soup at a seaside restaurant, takes one sip, pays, goes home, and ends his life. Why?",
		Difficulty: 3,
		Tags:       []string{"classic", "tragedy"},
		Truth: "Years ago he was shipwrecked with his wife. The survivors told him the soup they fed him was turtle; " +
			"it was his wife's remains. Tasting real turtle soup now, he realizes what he actually ate and cannot live with it.",
	},
	{
		ID:         "p2",
		Title:      "The Unlit Lighthouse",
		Opening:    "A lighthouse keeper turns off the lamp, goes to sleep, and in the morning resigns and turns himself in. Why?",
		Difficulty: 2,
		Tags:       []string{"classic", "guilt"},
		Truth: "He forgot he had turned the lamp off for maintenance and fell asleep. During the night a ship ran " +
			"aground on the rocks. He wakes, sees the wreck, and knows the darkness was his doing.",
	},
	{
		ID:         "p3",
		Title:      "The Wrong Floor",
		Opening:    "A woman presses the elevator button for the tenth floor every day but gets out on the seventh and walks. On rainy days she rides all the way up. Why?",
		Difficulty: 1,
		Tags:       []string{"lateral", "lighthearted"},
		Truth: "She is too short to reach the tenth-floor button. On rainy days she carries an umbrella and uses it " +
			"to press the button.",
	},
	{
		ID:         "p4",
		Title:      "The Midnight Call",
		Opening:    "A man wakes to a phone call, listens to nothing but breathing, hangs up, and finally sleeps soundly. Why?",
		Difficulty: 2,
		Tags:       []string{"hotel", "classic"},
		Truth: "The wall of his hotel room adjoins a snorer. He couldn't sleep, so he called the neighboring room to " +
			"wake the snorer up. With the snoring interrupted, he could fall asleep before it resumed.",
	},
	{
		ID:         "p5",
		Title:      "The Last Photograph",
		Opening:    "A photographer develops a roll of film, looks at one frame, and immediately calls the police about a murder nobody reported. Why?",
		Difficulty: 4,
		Tags:       []string{"mystery", "hard"},
		Truth: "The frame is a timed self-portrait a client ordered at a cliff lookout. In the background, slightly " +
			"blurred, a second figure is pushing someone over the railing. The photographer recognizes the spot and " +
			"the date stamp and realizes a reported accident there was a killing.",
	},
}
