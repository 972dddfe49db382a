package state

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/store"
)

const previewMaxLen = 100

// MessageSummary describes the guest message a relay is created from.
type MessageSummary struct {
	GuestDisplayName string
	Text             string
	HasPhoto         bool
}

// Directory is the bidirectional index between relay ids, admin-side
// forwarded-message ids and guest ids, plus the relay status lifecycle.
// Relay records are append-only; only the latest relay per guest is
// indexed for fast lookup.
type Directory struct {
	store    store.Store
	counters *Counters
}

// NewDirectory creates a relay directory over the given store.
func NewDirectory(s store.Store, counters *Counters) *Directory {
	return &Directory{store: s, counters: counters}
}

// CreateRelay allocates a fresh relay for a guest message, persists it,
// updates the guest's latest-relay pointer and increments the total-relay
// counter.
func (d *Directory) CreateRelay(ctx context.Context, guestID string, summary MessageSummary) (*models.Relay, error) {
	relay := &models.Relay{
		ID:               newRelayID(),
		GuestID:          guestID,
		GuestDisplayName: summary.GuestDisplayName,
		Status:           models.RelayStatusOpen,
		MessageKind:      summaryKind(summary),
		ContentPreview:   truncate(summary.Text, previewMaxLen),
		CreatedAt:        time.Now().UTC(),
	}

	if err := d.put(ctx, relay); err != nil {
		return nil, err
	}
	if err := d.store.Put(ctx, prefixLatest+guestID, relay.ID, 0); err != nil {
		return nil, fmt.Errorf("failed to update latest relay pointer for guest %s: %w", guestID, err)
	}
	if err := d.counters.Increment(ctx, CounterTotalRelays); err != nil {
		log.Warn().Err(err).Msg("Failed to increment total-relays counter")
	}

	log.Info().
		Str("relayID", relay.ID).
		Str("guestID", guestID).
		Str("kind", string(relay.MessageKind)).
		Msg("Relay created")
	return relay, nil
}

// Get returns the relay with the given id, or nil when absent.
func (d *Directory) Get(ctx context.Context, relayID string) (*models.Relay, error) {
	raw, err := d.store.Get(ctx, prefixRelay+relayID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read relay %s: %w", relayID, err)
	}
	var relay models.Relay
	if err := json.Unmarshal([]byte(raw), &relay); err != nil {
		return nil, fmt.Errorf("corrupt relay record %s: %w", relayID, err)
	}
	return &relay, nil
}

// UpdateStatus transitions a relay to the given status. A no-op when the
// relay does not exist.
func (d *Directory) UpdateStatus(ctx context.Context, relayID string, status models.RelayStatus) error {
	relay, err := d.Get(ctx, relayID)
	if err != nil {
		return err
	}
	if relay == nil {
		return nil
	}
	relay.Status = status
	relay.UpdatedAt = time.Now().UTC()
	return d.put(ctx, relay)
}

// LinkAdminMessage records the admin-side forwarded-message id for a relay
// so admin replies can be routed back. Links are immutable once written.
func (d *Directory) LinkAdminMessage(ctx context.Context, adminMsgID int64, relayID string) error {
	key := prefixAdminMsg + strconv.FormatInt(adminMsgID, 10)
	if err := d.store.Put(ctx, key, relayID, 0); err != nil {
		return fmt.Errorf("failed to link admin message %d to relay %s: %w", adminMsgID, relayID, err)
	}
	return nil
}

// ResolveByAdminMessage returns the relay id linked to an admin-side
// message id, or "" when no link exists.
func (d *Directory) ResolveByAdminMessage(ctx context.Context, adminMsgID int64) (string, error) {
	relayID, err := d.store.Get(ctx, prefixAdminMsg+strconv.FormatInt(adminMsgID, 10))
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve admin message %d: %w", adminMsgID, err)
	}
	return relayID, nil
}

// LatestRelayForGuest returns the most recent relay id for a guest, or ""
// when the guest has never been relayed.
func (d *Directory) LatestRelayForGuest(ctx context.Context, guestID string) (string, error) {
	relayID, err := d.store.Get(ctx, prefixLatest+guestID)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest relay pointer for guest %s: %w", guestID, err)
	}
	return relayID, nil
}

func (d *Directory) put(ctx context.Context, relay *models.Relay) error {
	data, err := json.Marshal(relay)
	if err != nil {
		return fmt.Errorf("failed to marshal relay %s: %w", relay.ID, err)
	}
	if err := d.store.Put(ctx, prefixRelay+relay.ID, string(data), 0); err != nil {
		return fmt.Errorf("failed to persist relay %s: %w", relay.ID, err)
	}
	return nil
}

// newRelayID derives a unique id from the current time plus random bits.
func newRelayID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + hex.EncodeToString(b[:])
}

func summaryKind(summary MessageSummary) models.MessageKind {
	switch {
	case summary.Text != "":
		return models.MessageKindText
	case summary.HasPhoto:
		return models.MessageKindPhoto
	default:
		return models.MessageKindOther
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
