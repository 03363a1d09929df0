package models

import "time"

// MemorySummary is the singleton long-term memory record for a user: a
// compacted free-text summary of durable facts carried across consultations.
// It is upserted as a whole on every consolidation, never appended to, so it
// cannot grow without bound.
type MemorySummary struct {
	UserID    string    `bson:"userId" json:"user_id"`
	Summary   string    `bson:"summary" json:"summary"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}
