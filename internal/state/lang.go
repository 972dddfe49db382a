package state

import (
	"context"
	"fmt"

	"guest-relay-bot/internal/store"
)

// LangPrefs stores per-user language preferences. An absent preference
// means "use the system default".
type LangPrefs struct {
	store store.Store
}

// NewLangPrefs creates a language preference accessor.
func NewLangPrefs(s store.Store) *LangPrefs {
	return &LangPrefs{store: s}
}

// Get returns the user's preferred language code, or "" when unset.
func (l *LangPrefs) Get(ctx context.Context, userID string) (string, error) {
	lang, err := l.store.Get(ctx, prefixLang+userID)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read language preference for user %s: %w", userID, err)
	}
	return lang, nil
}

// Set stores the user's preferred language code.
func (l *LangPrefs) Set(ctx context.Context, userID, lang string) error {
	if err := l.store.Put(ctx, prefixLang+userID, lang, 0); err != nil {
		return fmt.Errorf("failed to store language preference for user %s: %w", userID, err)
	}
	return nil
}
