// Package state implements the typed state layer over the key-value store:
// relay directory, block registry, trust ledger, rate limiter, moderation
// cache, named counters and per-user language preferences. Each concern
// owns a distinct, non-overlapping key prefix so namespaces stay
// independently enumerable.
package state

const (
	prefixRelay     = "relay:"
	prefixAdminMsg  = "admin-msg:"
	prefixLatest    = "guest:latest:"
	prefixBlocked   = "blocked:"
	prefixBlockInfo = "block-info:"
	prefixCounter   = "counter:"
	prefixRateLimit = "ratelimit:"
	prefixTrust     = "trust:"
	prefixModCache  = "modcache:"
	prefixLang      = "lang:"
)

// Named counters tracked across the system.
const (
	CounterTotalRelays  = "total-relays"
	CounterTotalBlocked = "total-blocked"
	CounterAIBlocks     = "ai-blocks"
)
