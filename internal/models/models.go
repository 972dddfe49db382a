package models

import "time"

// RelayStatus is the lifecycle state of a relay thread.
type RelayStatus string

const (
	RelayStatusOpen    RelayStatus = "open"
	RelayStatusReplied RelayStatus = "replied"
	RelayStatusBlocked RelayStatus = "blocked"
)

// MessageKind classifies the guest message that opened a relay.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindPhoto MessageKind = "photo"
	MessageKindOther MessageKind = "other"
)

// Relay represents one guest-initiated conversation thread forwarded to the
// admin. The id is unique and immutable after creation; records are
// append-only (never deleted), only the latest relay per guest is indexed
// for fast lookup.
type Relay struct {
	ID               string      `json:"id"`
	GuestID          string      `json:"guest_id"`
	GuestDisplayName string      `json:"guest_display_name,omitempty"`
	Status           RelayStatus `json:"status"`
	MessageKind      MessageKind `json:"message_kind"`
	ContentPreview   string      `json:"content_preview,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at,omitempty"`
}

// BlockInfo carries the reason and timestamp for a blocked guest.
type BlockInfo struct {
	GuestID   string    `json:"guest_id,omitempty"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
}

// Verdict is a moderation classification of a piece of content.
// A zero Verdict is SAFE.
type Verdict struct {
	Unsafe bool
	Reason string
}

// Safe is the verdict returned for content that passed moderation or could
// not be reliably evaluated (fail-open).
func Safe() Verdict { return Verdict{} }

// Unsafe returns an UNSAFE verdict with the given fixed reason string.
func Unsafe(reason string) Verdict { return Verdict{Unsafe: true, Reason: reason} }

// RateLimitResult is the outcome of one rate-limit check.
type RateLimitResult struct {
	Allowed        bool
	Remaining      int
	ResetInSeconds int
}

// RateLimitWindow is the persisted fixed-window counter for one guest.
type RateLimitWindow struct {
	WindowStart int64 `json:"window_start"` // unix milliseconds
	Count       int   `json:"count"`
}
