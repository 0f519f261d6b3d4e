package event

import "time"

// Type names a skill event.
type Type string

const (
	Leveled   Type = "skill.leveled"   // a point was spent
	Unleveled Type = "skill.unleveled" // a point was refunded
	Removed   Type = "skill.removed"   // the node was deleted
)

// Event is emitted after a session's graph changes in a way a game client
// may want to react to.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	SessionID   string    `json:"session_id"`
	TreeID      string    `json:"tree_id,omitempty"`
	NodeID      string    `json:"node_id"`
	PointsGiven int       `json:"points_given"`
	TotalPoints int       `json:"total_points"`
	Reset       []string  `json:"reset,omitempty"` // descendants zeroed by a refund
	OccurredAt  time.Time `json:"occurred_at"`
}
