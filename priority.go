package prefetch

import (
	"fmt"
	"strings"
)

// Priority is a preload tier. Higher values are drained first.
type Priority uint8

const (
	// PriorityNormal is used for the initial idle warmup.
	PriorityNormal Priority = iota
	// PriorityHoverIntent is used after sustained pointer hover over a card.
	PriorityHoverIntent
	// PriorityHigh is used when a card is about to scroll into view.
	PriorityHigh
)

const priorityCount = int(PriorityHigh) + 1

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHoverIntent:
		return "hover"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the defined tiers.
func (p Priority) Valid() bool {
	return p <= PriorityHigh
}

// ParsePriority parses the name returned by Priority.String.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return PriorityNormal, nil
	case "hover", "hoverintent", "hover_intent":
		return PriorityHoverIntent, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}
