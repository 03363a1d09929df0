package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message roles. System, user, and assistant messages persist in the
// transcript; tool messages live only inside a single request's model
// context and are never stored.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single entry in a consultation transcript. Its ID is a UUID
// assigned at append time, independent of the storage-assigned conversation ID.
type Message struct {
	ID        string    `bson:"_id" json:"id"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}

// Conversation is one medical consultation: an append-only, chronologically
// ordered message log owned by a single user. At most one conversation per
// user may have Ended=false at any time (enforced by a partial unique index
// on the conversations collection).
type Conversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"user_id"`
	Title          string             `bson:"title" json:"title"`
	Messages       []Message          `bson:"messages" json:"messages"`
	Ended          bool               `bson:"ended" json:"ended"`
	EndedAt        *time.Time         `bson:"endedAt,omitempty" json:"ended_at,omitempty"`
	ConsolidatedAt *time.Time         `bson:"consolidatedAt,omitempty" json:"consolidated_at,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updated_at"`
}

// VisibleMessages returns the user/assistant messages in order, dropping
// system and tool entries.
func (c *Conversation) VisibleMessages() []Message {
	visible := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			visible = append(visible, m)
		}
	}
	return visible
}
