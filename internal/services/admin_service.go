package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"guest-relay-bot/internal/adapters/chatapi"
	"guest-relay-bot/internal/audit"
	"guest-relay-bot/internal/i18n"
	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/state"
)

// AdminService handles the admin side: recognized commands short-circuit
// the default path; everything else that replies to a forwarded guest
// message is copied (not forwarded) back to the guest. Failures are
// logged only; the admin is the operator and can observe logs.
type AdminService struct {
	chat ChatClient

	directory *state.Directory
	blocklist *state.Blocklist
	trust     *state.Trust
	langs     *state.LangPrefs
	counters  *state.Counters

	auditLog *audit.Log
	keyUsage func() map[string]int64

	adminChatID int64
}

// NewAdminService wires the admin pipeline. keyUsage reports moderation
// credential usage for /status and may be nil.
func NewAdminService(
	chat ChatClient,
	directory *state.Directory,
	blocklist *state.Blocklist,
	trust *state.Trust,
	langs *state.LangPrefs,
	counters *state.Counters,
	auditLog *audit.Log,
	keyUsage func() map[string]int64,
	adminChatID int64,
) (*AdminService, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat client cannot be nil for AdminService")
	}
	return &AdminService{
		chat:        chat,
		directory:   directory,
		blocklist:   blocklist,
		trust:       trust,
		langs:       langs,
		counters:    counters,
		auditLog:    auditLog,
		keyUsage:    keyUsage,
		adminChatID: adminChatID,
	}, nil
}

// HandleAdminMessage processes one message from the admin.
func (s *AdminService) HandleAdminMessage(ctx context.Context, msg *chatapi.Message) {
	if msg == nil {
		return
	}
	if err := s.process(ctx, msg); err != nil {
		log.Error().Err(err).Int64("messageID", msg.MessageID).Msg("Admin message handling failed")
	}
}

func (s *AdminService) process(ctx context.Context, msg *chatapi.Message) error {
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		parts := strings.Fields(text)
		command := parts[0]
		// Tolerate /command@botname forms.
		if at := strings.Index(command, "@"); at > 0 {
			command = command[:at]
		}
		args := parts[1:]

		switch command {
		case "/block":
			return s.handleBlock(ctx, msg, args)
		case "/unblock":
			return s.handleUnblock(ctx, msg, args)
		case "/trust":
			return s.handleTrust(ctx, msg, args)
		case "/untrust":
			return s.handleUntrust(ctx, msg, args)
		case "/status":
			return s.handleStatus(ctx)
		case "/check":
			return s.handleCheck(ctx, msg, args)
		}
	}

	// Default path: a reply to a forwarded guest message relays the
	// admin's content back.
	if msg.ReplyTo != nil {
		return s.handleReply(ctx, msg)
	}

	log.Debug().Int64("messageID", msg.MessageID).Msg("Admin message is neither a command nor a reply, ignoring")
	return nil
}

// handleReply resolves admin message id to relay to guest and copies the
// admin's content over, stripping attribution, then marks the relay
// replied.
func (s *AdminService) handleReply(ctx context.Context, msg *chatapi.Message) error {
	relayID, err := s.directory.ResolveByAdminMessage(ctx, msg.ReplyTo.MessageID)
	if err != nil {
		return err
	}
	if relayID == "" {
		return s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_relay_not_found"))
	}

	relay, err := s.directory.Get(ctx, relayID)
	if err != nil {
		return err
	}
	if relay == nil {
		return s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_relay_data_not_found"))
	}

	guestChatID, err := strconv.ParseInt(relay.GuestID, 10, 64)
	if err != nil {
		return s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_cannot_find_sender"))
	}

	blocked, err := s.blocklist.IsBlocked(ctx, relay.GuestID)
	if err != nil {
		return err
	}
	if blocked {
		return s.notify(ctx, fmt.Sprintf("User %s is blocked; unblock before replying.", relay.GuestID))
	}

	if err := s.chat.CopyMessage(ctx, guestChatID, msg.Chat.ID, msg.MessageID); err != nil {
		return err
	}
	if err := s.directory.UpdateStatus(ctx, relayID, models.RelayStatusReplied); err != nil {
		log.Warn().Err(err).Str("relayID", relayID).Msg("Failed to mark relay replied")
	}
	return nil
}

func (s *AdminService) handleBlock(ctx context.Context, msg *chatapi.Message, args []string) error {
	guestID, rest, err := s.resolveTarget(ctx, msg, args)
	if err != nil || guestID == "" {
		return err
	}
	reason := strings.Join(rest, " ")
	if reason == "" {
		reason = "Blocked by admin"
	}

	if err := s.blocklist.SetBlocked(ctx, guestID, true, reason); err != nil {
		return err
	}
	s.auditLog.Record(guestID, audit.ActionBlock, reason)

	// The latest relay, if any, records the block in its status history.
	if relayID, err := s.directory.LatestRelayForGuest(ctx, guestID); err == nil && relayID != "" {
		if err := s.directory.UpdateStatus(ctx, relayID, models.RelayStatusBlocked); err != nil {
			log.Warn().Err(err).Str("relayID", relayID).Msg("Failed to mark relay blocked")
		}
	}

	s.notifyGuest(ctx, guestID, "blocked_with_reason", reason)
	return s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_blocked", guestID))
}

func (s *AdminService) handleUnblock(ctx context.Context, msg *chatapi.Message, args []string) error {
	guestID, _, err := s.resolveTarget(ctx, msg, args)
	if err != nil || guestID == "" {
		return err
	}
	if err := s.blocklist.SetBlocked(ctx, guestID, false, ""); err != nil {
		return err
	}
	s.auditLog.Record(guestID, audit.ActionUnblock, "")
	return s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_unblocked", guestID))
}

func (s *AdminService) handleTrust(ctx context.Context, msg *chatapi.Message, args []string) error {
	guestID, _, err := s.resolveTarget(ctx, msg, args)
	if err != nil || guestID == "" {
		return err
	}
	if err := s.trust.ForceTrust(ctx, guestID); err != nil {
		return err
	}
	return s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_trusted", guestID))
}

func (s *AdminService) handleUntrust(ctx context.Context, msg *chatapi.Message, args []string) error {
	guestID, _, err := s.resolveTarget(ctx, msg, args)
	if err != nil || guestID == "" {
		return err
	}
	if err := s.trust.Reset(ctx, guestID); err != nil {
		return err
	}
	return s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_untrusted", guestID))
}

// handleStatus reports operating statistics. The block list enumeration
// is the authoritative blocked count; the counter can drift.
func (s *AdminService) handleStatus(ctx context.Context) error {
	totalRelays, err := s.counters.Get(ctx, state.CounterTotalRelays)
	if err != nil {
		return err
	}
	aiBlocks, err := s.counters.Get(ctx, state.CounterAIBlocks)
	if err != nil {
		return err
	}
	blockedList, err := s.blocklist.ListBlocked(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Relays: %d\nBlocked users: %d\nModeration blocks: %d\n", totalRelays, len(blockedList), aiBlocks)
	if n := s.auditLog.CountByAction(audit.ActionModerationUnsafe); n > 0 {
		fmt.Fprintf(&b, "Audited unsafe verdicts: %d\n", n)
	}
	if s.keyUsage != nil {
		for key, count := range s.keyUsage() {
			fmt.Fprintf(&b, "Key …%s: %d calls\n", tail(key, 4), count)
		}
	}
	return s.notify(ctx, b.String())
}

func (s *AdminService) handleCheck(ctx context.Context, msg *chatapi.Message, args []string) error {
	guestID, _, err := s.resolveTarget(ctx, msg, args)
	if err != nil || guestID == "" {
		return err
	}

	blocked, err := s.blocklist.IsBlocked(ctx, guestID)
	if err != nil {
		return err
	}
	score, err := s.trust.Score(ctx, guestID)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Guest %s\nBlocked: %t\nTrust score: %d/%d\n", guestID, blocked, score, s.trust.Threshold())
	if blocked {
		if info, err := s.blocklist.BlockInfo(ctx, guestID); err == nil && info != nil {
			fmt.Fprintf(&b, "Reason: %s\nSince: %s\n", info.Reason, info.BlockedAt.Format("2006-01-02 15:04"))
		}
	}
	if relayID, err := s.directory.LatestRelayForGuest(ctx, guestID); err == nil && relayID != "" {
		if relay, err := s.directory.Get(ctx, relayID); err == nil && relay != nil {
			fmt.Fprintf(&b, "Latest relay: %s (%s)\n", relay.ID, relay.Status)
		}
	}
	return s.notify(ctx, b.String())
}

// resolveTarget finds the guest a command applies to: from the replied-to
// forwarded message when present, otherwise from a numeric user id
// argument. Returns the remaining args (e.g. a block reason).
func (s *AdminService) resolveTarget(ctx context.Context, msg *chatapi.Message, args []string) (string, []string, error) {
	if msg.ReplyTo != nil {
		relayID, err := s.directory.ResolveByAdminMessage(ctx, msg.ReplyTo.MessageID)
		if err != nil {
			return "", nil, err
		}
		if relayID == "" {
			return "", nil, s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_relay_not_found"))
		}
		relay, err := s.directory.Get(ctx, relayID)
		if err != nil {
			return "", nil, err
		}
		if relay == nil {
			return "", nil, s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_relay_data_not_found"))
		}
		return relay.GuestID, args, nil
	}

	if len(args) == 0 {
		return "", nil, s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_cannot_find_user"))
	}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		return "", nil, s.notify(ctx, i18n.T(i18n.DefaultLang, "admin_invalid_user_id"))
	}
	return args[0], args[1:], nil
}

// notifyGuest sends a localized notice to a guest, best-effort.
func (s *AdminService) notifyGuest(ctx context.Context, guestID, key string, args ...interface{}) {
	chatID, err := strconv.ParseInt(guestID, 10, 64)
	if err != nil {
		return
	}
	lang, err := s.langs.Get(ctx, guestID)
	if err != nil || lang == "" {
		lang = i18n.DefaultLang
	}
	if _, err := s.chat.SendMessage(ctx, chatID, i18n.T(lang, key, args...), nil); err != nil {
		log.Warn().Err(err).Str("guestID", guestID).Msg("Failed to notify guest")
	}
}

func (s *AdminService) notify(ctx context.Context, text string) error {
	_, err := s.chat.SendMessage(ctx, s.adminChatID, text, nil)
	return err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
