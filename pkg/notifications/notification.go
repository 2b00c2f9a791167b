package notifications

import (
	"maps"
	"time"
)

// Category is the coarse classification used for preference gating.
type Category string

const (
	CategoryPrediction  Category = "prediction"
	CategoryResult      Category = "result"
	CategoryChallenge   Category = "challenge"
	CategoryAchievement Category = "achievement"
	CategorySystem      Category = "system"
)

// Categories lists every known category in display order.
func Categories() []Category {
	return []Category{
		CategoryPrediction,
		CategoryResult,
		CategoryChallenge,
		CategoryAchievement,
		CategorySystem,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPrediction, CategoryResult, CategoryChallenge, CategoryAchievement, CategorySystem:
		return true
	}
	return false
}

// Priority influences whether a device-level notification is shown.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.rank() > 0
}

// AtLeast reports whether p ranks at or above min.
func (p Priority) AtLeast(min Priority) bool {
	return p.rank() >= min.rank()
}

func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// Notification is the canonical record shown to the user.
// Read and Archived are owned by the History; everything else is fixed once
// the notification is created.
type Notification struct {
	ID        string         `json:"id"`
	Category  Category       `json:"category"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Priority  Priority       `json:"priority"`
	ActionURL string         `json:"actionUrl,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"read"`
	Archived  bool           `json:"archived,omitempty"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
}

// Unread reports whether n counts toward the unread counter.
func (n Notification) Unread() bool {
	return !n.Read && !n.Archived
}

func (n Notification) clone() Notification {
	if n.Metadata != nil {
		n.Metadata = maps.Clone(n.Metadata)
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		n.ReadAt = &t
	}
	return n
}

func (n *Notification) markRead(now time.Time) {
	n.Read = true
	n.ReadAt = &now
}
