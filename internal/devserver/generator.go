package devserver

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Event is one outbound domain event and its routing.
// An empty UserID fans the event out to every session subscribed to Channel.
type Event struct {
	Name    string `json:"event"`
	Channel string `json:"channel,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Data    any    `json:"data"`
}

// ChannelFor maps a domain event name to its interest channel.
func ChannelFor(event string) (string, bool) {
	switch event {
	case notifications.EventItemNew:
		return "predictions", true
	case notifications.EventItemResolved:
		return "results", true
	case notifications.EventChallengeReceived:
		return "challenges", true
	case notifications.EventAchievementUnlocked:
		return "achievements", true
	case notifications.EventNotification:
		return "system", true
	}
	return "", false
}

var (
	fixtures = [][2]string{
		{"Lakers", "Celtics"},
		{"Arsenal", "Chelsea"},
		{"Chiefs", "Eagles"},
		{"Yankees", "Red Sox"},
		{"Real Madrid", "Barcelona"},
		{"Maple Leafs", "Canadiens"},
	}
	players = []string{"jordan23", "mia_picks", "the_oracle", "lucky_lou", "statsguru", "benchwarmer"}
	markets = []string{"Who wins %s vs %s?", "Will %s score first against %s?", "Over 2.5 goals in %s vs %s?"}
	badges  = [][2]string{
		{"Hot Streak", "Five correct predictions in a row."},
		{"Underdog Hunter", "Called an upset nobody saw coming."},
		{"Early Bird", "Predicted within a minute of the market opening."},
		{"Centurion", "Made 100 predictions."},
	}
	announcements = [][2]string{
		{"Scheduled maintenance", "Predictions pause for ten minutes at 03:00 UTC."},
		{"New season", "The weekly leaderboard has been reset."},
	}
)

// Generator produces mock fantasy-sports events. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
	// open holds generated markets that have not been resolved yet.
	open []market
}

type market struct {
	id       string
	question string
}

// NewGenerator seeds a Generator. Seed zero picks a random seed; a nil now
// uses time.Now.
func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rnd: rand.New(rand.NewPCG(seed, seed>>1|1)),
		now: now,
	}
}

// Next returns the next event. Markets are opened before they are resolved,
// so an item:resolved always refers to an earlier item:new.
func (g *Generator) Next() Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	roll := g.rnd.IntN(100)
	switch {
	case roll < 35 || (roll < 65 && len(g.open) == 0):
		return g.itemNew()
	case roll < 65:
		return g.itemResolved()
	case roll < 82:
		return g.challenge()
	case roll < 95:
		return g.achievement()
	default:
		return g.announcement()
	}
}

func (g *Generator) itemNew() Event {
	f := fixtures[g.rnd.IntN(len(fixtures))]
	q := fmt.Sprintf(markets[g.rnd.IntN(len(markets))], f[0], f[1])
	m := market{id: fmt.Sprintf("item-%08x", g.rnd.Uint32()), question: q}
	g.open = append(g.open, m)
	if len(g.open) > 32 {
		g.open = g.open[1:]
	}

	return g.event(notifications.EventItemNew, map[string]any{
		"itemId":   m.id,
		"question": q,
		"deadline": g.now().Add(time.Duration(10+g.rnd.IntN(50)) * time.Minute).UTC().Format(time.RFC3339),
	})
}

func (g *Generator) itemResolved() Event {
	i := g.rnd.IntN(len(g.open))
	m := g.open[i]
	g.open = append(g.open[:i], g.open[i+1:]...)

	correct := g.rnd.IntN(2) == 0
	points := 0
	if correct {
		points = 10 * (1 + g.rnd.IntN(10))
	}
	outcomes := []string{"Yes", "No", "Home win", "Away win", "Draw"}
	return g.event(notifications.EventItemResolved, map[string]any{
		"itemId":   m.id,
		"question": m.question,
		"outcome":  outcomes[g.rnd.IntN(len(outcomes))],
		"correct":  correct,
		"points":   points,
	})
}

func (g *Generator) challenge() Event {
	return g.event(notifications.EventChallengeReceived, map[string]any{
		"challengeId": fmt.Sprintf("ch-%08x", g.rnd.Uint32()),
		"from":        players[g.rnd.IntN(len(players))],
		"stake":       25 * (1 + g.rnd.IntN(8)),
	})
}

func (g *Generator) achievement() Event {
	b := badges[g.rnd.IntN(len(badges))]
	return g.event(notifications.EventAchievementUnlocked, map[string]any{
		"achievementId": fmt.Sprintf("ach-%08x", g.rnd.Uint32()),
		"name":          b[0],
		"description":   b[1],
	})
}

func (g *Generator) announcement() Event {
	a := announcements[g.rnd.IntN(len(announcements))]
	return g.event(notifications.EventNotification, map[string]any{
		"category": notifications.CategorySystem,
		"priority": notifications.PriorityLow,
		"title":    a[0],
		"message":  a[1],
	})
}

func (g *Generator) event(name string, data map[string]any) Event {
	data["timestamp"] = g.now().UTC().Format(time.RFC3339Nano)
	ch, _ := ChannelFor(name)
	return Event{Name: name, Channel: ch, Data: data}
}
