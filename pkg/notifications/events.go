package notifications

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Inbound domain event names.
const (
	EventItemNew             = "item:new"
	EventItemResolved        = "item:resolved"
	EventChallengeReceived   = "challenge:received"
	EventAchievementUnlocked = "achievement:unlocked"
	EventNotification        = "notification"
)

// DomainEvents lists the event names the Normalizer understands.
func DomainEvents() []string {
	return []string{
		EventItemNew,
		EventItemResolved,
		EventChallengeReceived,
		EventAchievementUnlocked,
		EventNotification,
	}
}

// payload is the union of every inbound event shape.
type payload struct {
	ID        string         `json:"id"`
	Category  Category       `json:"category"`
	Priority  Priority       `json:"priority"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"actionUrl"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`

	// item:new, item:resolved
	ItemID   string    `json:"itemId"`
	Question string    `json:"question"`
	Deadline time.Time `json:"deadline"`
	Outcome  string    `json:"outcome"`
	Correct  *bool     `json:"correct"`
	Points   int       `json:"points"`

	// challenge:received
	ChallengeID string `json:"challengeId"`
	From        string `json:"from"`
	Stake       int    `json:"stake"`

	// achievement:unlocked
	AchievementID string `json:"achievementId"`
	Name          string `json:"name"`
	Description   string `json:"description"`
}

// Normalizer turns inbound events into canonical notifications.
// The zero value uses time.Now and random UUIDs.
type Normalizer struct {
	Now   func() time.Time
	NewID func() string
}

// Normalize maps one inbound event to a Notification using the zero Normalizer.
func Normalize(event string, raw []byte) (Notification, error) {
	return Normalizer{}.Normalize(event, raw)
}

// Normalize maps one inbound event to a Notification. It fills the id and
// timestamp when the payload lacks them and derives category and default
// priority from the event name.
func (nz Normalizer) Normalize(event string, raw []byte) (Notification, error) {
	build, ok := builders[event]
	if !ok {
		return Notification{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Notification{}, fmt.Errorf("%w: %s: empty payload", ErrMalformedPayload, event)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Notification{}, errors.Join(fmt.Errorf("%w: %s", ErrMalformedPayload, event), err)
	}

	n, err := build(p)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %s: %w", ErrMalformedPayload, event, err)
	}

	if p.Priority.Valid() {
		n.Priority = p.Priority
	}
	if p.ActionURL != "" {
		n.ActionURL = p.ActionURL
	}
	n.Metadata = mergeMetadata(n.Metadata, p.Metadata)

	n.ID = p.ID
	n.Timestamp = p.Timestamp
	return nz.complete(n), nil
}

// complete fills defaults on a notification created locally or by Normalize.
func (nz Normalizer) complete(n Notification) Notification {
	if n.ID == "" {
		if nz.NewID != nil {
			n.ID = nz.NewID()
		} else {
			n.ID = uuid.NewString()
		}
	}
	if n.Timestamp.IsZero() {
		if nz.Now != nil {
			n.Timestamp = nz.Now()
		} else {
			n.Timestamp = time.Now()
		}
	}
	if !n.Category.Valid() {
		n.Category = CategorySystem
	}
	if !n.Priority.Valid() {
		n.Priority = PriorityMedium
	}
	n.Read = false
	n.Archived = false
	n.ReadAt = nil
	return n
}

var builders = map[string]func(payload) (Notification, error){
	EventItemNew:             buildItemNew,
	EventItemResolved:        buildItemResolved,
	EventChallengeReceived:   buildChallenge,
	EventAchievementUnlocked: buildAchievement,
	EventNotification:        buildCanonical,
}

func buildItemNew(p payload) (Notification, error) {
	msg := firstNonEmpty(p.Message, p.Question)
	if msg == "" && p.ItemID == "" {
		return Notification{}, errors.New("item id or question required")
	}
	meta := map[string]any{}
	setIf(meta, "itemId", p.ItemID)
	if !p.Deadline.IsZero() {
		meta["deadline"] = p.Deadline.UTC().Format(time.RFC3339)
	}
	return Notification{
		Category:  CategoryPrediction,
		Priority:  PriorityMedium,
		Title:     firstNonEmpty(p.Title, "New prediction available"),
		Message:   firstNonEmpty(msg, "A new prediction is open."),
		ActionURL: itemURL("/predictions", p.ItemID),
		Metadata:  meta,
	}, nil
}

func buildItemResolved(p payload) (Notification, error) {
	if p.ItemID == "" && p.Question == "" && p.Message == "" {
		return Notification{}, errors.New("item id or question required")
	}

	msg := p.Message
	if msg == "" {
		var b strings.Builder
		b.WriteString(firstNonEmpty(p.Question, "Your prediction"))
		if p.Outcome != "" {
			fmt.Fprintf(&b, ": %s", p.Outcome)
		}
		switch {
		case p.Correct != nil && *p.Correct && p.Points > 0:
			fmt.Fprintf(&b, ". You earned %d points!", p.Points)
		case p.Correct != nil && *p.Correct:
			b.WriteString(". You called it!")
		case p.Correct != nil:
			b.WriteString(". Better luck next time.")
		}
		msg = b.String()
	}

	meta := map[string]any{}
	setIf(meta, "itemId", p.ItemID)
	setIf(meta, "outcome", p.Outcome)
	if p.Correct != nil {
		meta["correct"] = *p.Correct
	}
	if p.Points != 0 {
		meta["points"] = p.Points
	}
	return Notification{
		Category:  CategoryResult,
		Priority:  PriorityHigh,
		Title:     firstNonEmpty(p.Title, "Prediction resolved"),
		Message:   msg,
		ActionURL: itemURL("/predictions", p.ItemID),
		Metadata:  meta,
	}, nil
}

func buildChallenge(p payload) (Notification, error) {
	if p.ChallengeID == "" && p.From == "" && p.Message == "" {
		return Notification{}, errors.New("challenge id or sender required")
	}

	title := p.Title
	if title == "" {
		title = "New challenge"
		if p.From != "" {
			title = "New challenge from " + p.From
		}
	}
	msg := p.Message
	if msg == "" {
		msg = firstNonEmpty(p.From, "Someone") + " challenged you"
		if p.Stake > 0 {
			msg += fmt.Sprintf(" for %d points", p.Stake)
		}
		msg += "."
	}

	meta := map[string]any{}
	setIf(meta, "challengeId", p.ChallengeID)
	setIf(meta, "from", p.From)
	if p.Stake > 0 {
		meta["stake"] = p.Stake
	}
	return Notification{
		Category:  CategoryChallenge,
		Priority:  PriorityHigh,
		Title:     title,
		Message:   msg,
		ActionURL: itemURL("/challenges", p.ChallengeID),
		Metadata:  meta,
	}, nil
}

func buildAchievement(p payload) (Notification, error) {
	name := firstNonEmpty(p.Name, p.Title)
	if name == "" && p.AchievementID == "" {
		return Notification{}, errors.New("achievement name or id required")
	}

	meta := map[string]any{}
	setIf(meta, "achievementId", p.AchievementID)
	setIf(meta, "name", p.Name)
	return Notification{
		Category:  CategoryAchievement,
		Priority:  PriorityMedium,
		Title:     "Achievement unlocked: " + firstNonEmpty(name, p.AchievementID),
		Message:   firstNonEmpty(p.Message, p.Description, "You unlocked a new achievement."),
		ActionURL: itemURL("/achievements", p.AchievementID),
		Metadata:  meta,
	}, nil
}

func buildCanonical(p payload) (Notification, error) {
	if p.Title == "" && p.Message == "" {
		return Notification{}, errors.New("title or message required")
	}
	c := p.Category
	if !c.Valid() {
		c = CategorySystem
	}
	return Notification{
		Category: c,
		Priority: PriorityMedium,
		Title:    p.Title,
		Message:  p.Message,
	}, nil
}

func itemURL(base, id string) string {
	if id == "" {
		return ""
	}
	return base + "/" + url.PathEscape(id)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func setIf(m map[string]any, key, val string) {
	if val != "" {
		m[key] = val
	}
}

func mergeMetadata(derived, extra map[string]any) map[string]any {
	for k, v := range extra {
		if derived == nil {
			derived = make(map[string]any, len(extra))
		}
		if _, ok := derived[k]; !ok {
			derived[k] = v
		}
	}
	if len(derived) == 0 {
		return nil
	}
	return derived
}
