package aimod

import "sync/atomic"

// KeyRotor selects API credentials round-robin across calls. The index is
// advanced on every selection regardless of outcome so load spreads evenly
// over the keyset. Per-key usage counters are tracked best-effort for
// statistics. State is process-wide and ephemeral; fairness across
// restarts is not guaranteed.
type KeyRotor struct {
	keys  []string
	next  atomic.Uint64
	usage []atomic.Int64
}

// NewKeyRotor creates a rotor over the given credential strings.
func NewKeyRotor(keys []string) *KeyRotor {
	return &KeyRotor{keys: keys, usage: make([]atomic.Int64, len(keys))}
}

// Len returns the number of credentials in the set.
func (r *KeyRotor) Len() int { return len(r.keys) }

// Next returns the next credential in round-robin order and bumps its
// usage counter.
func (r *KeyRotor) Next() string {
	if len(r.keys) == 0 {
		return ""
	}
	idx := int((r.next.Add(1) - 1) % uint64(len(r.keys)))
	r.usage[idx].Add(1)
	return r.keys[idx]
}

// Usage returns a read-only snapshot of per-credential usage counts.
func (r *KeyRotor) Usage() map[string]int64 {
	snapshot := make(map[string]int64, len(r.keys))
	for i, key := range r.keys {
		snapshot[key] = r.usage[i].Load()
	}
	return snapshot
}
