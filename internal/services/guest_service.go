package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"guest-relay-bot/internal/adapters/chatapi"
	"guest-relay-bot/internal/audit"
	"guest-relay-bot/internal/events"
	"guest-relay-bot/internal/i18n"
	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/state"
)

// GuestService runs the inbound guest pipeline. Checks are evaluated in
// strict order, first match wins; later rules assume earlier ones already
// excluded their cases.
type GuestService struct {
	chat      ChatClient
	moderator Moderator

	directory *state.Directory
	blocklist *state.Blocklist
	trust     *state.Trust
	limiter   *state.RateLimiter
	modCache  *state.ModCache
	langs     *state.LangPrefs
	counters  *state.Counters

	auditLog  *audit.Log
	publisher *events.Publisher

	adminChatID int64
	autoBlock   bool
}

// NewGuestService wires the guest pipeline.
func NewGuestService(
	chat ChatClient,
	moderator Moderator,
	directory *state.Directory,
	blocklist *state.Blocklist,
	trust *state.Trust,
	limiter *state.RateLimiter,
	modCache *state.ModCache,
	langs *state.LangPrefs,
	counters *state.Counters,
	auditLog *audit.Log,
	publisher *events.Publisher,
	adminChatID int64,
	autoBlock bool,
) (*GuestService, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat client cannot be nil for GuestService")
	}
	if moderator == nil {
		return nil, fmt.Errorf("moderator cannot be nil for GuestService")
	}
	return &GuestService{
		chat:        chat,
		moderator:   moderator,
		directory:   directory,
		blocklist:   blocklist,
		trust:       trust,
		limiter:     limiter,
		modCache:    modCache,
		langs:       langs,
		counters:    counters,
		auditLog:    auditLog,
		publisher:   publisher,
		adminChatID: adminChatID,
		autoBlock:   autoBlock,
	}, nil
}

// HandleGuestMessage processes one inbound guest message. Unexpected
// errors are caught here, logged with the guest id, and answered with a
// generic notice on a best-effort basis.
func (s *GuestService) HandleGuestMessage(ctx context.Context, msg *chatapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	guestID := strconv.FormatInt(msg.From.ID, 10)

	if err := s.process(ctx, msg, guestID); err != nil {
		log.Error().Err(err).Str("guestID", guestID).Msg("Guest message handling failed")
		lang := s.guestLang(ctx, guestID)
		// Secondary failures sending the notice are swallowed.
		_, _ = s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "error_generic"), nil)
	}
}

func (s *GuestService) process(ctx context.Context, msg *chatapi.Message, guestID string) error {
	lang := s.guestLang(ctx, guestID)
	text := msg.Text

	// 1. Language command is always processed, blocked or not.
	if strings.HasPrefix(text, "/language") || strings.HasPrefix(text, "/lang") {
		return s.sendLangPicker(ctx, msg.Chat.ID, guestID, lang)
	}

	// 2. Appeal command.
	if strings.HasPrefix(text, "/appeal") {
		return s.handleAppeal(ctx, msg, guestID, lang)
	}

	// 3. Blocked gate: no further processing, no rate-limit or moderation
	// side effects.
	blocked, err := s.blocklist.IsBlocked(ctx, guestID)
	if err != nil {
		return err
	}
	if blocked {
		_, err := s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "blocked_notice"), nil)
		return err
	}

	// 4. Start command.
	if strings.HasPrefix(text, "/start") {
		_, err := s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "welcome"), nil)
		return err
	}

	// 5. Rate limit. A disallowed message is not forwarded and no relay is
	// created.
	limit, err := s.limiter.Check(ctx, guestID)
	if err != nil {
		return err
	}
	if !limit.Allowed {
		_, err := s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "rate_limited", limit.ResetInSeconds), nil)
		return err
	}

	// 6. Trusted guests skip moderation entirely.
	trusted, err := s.trust.IsTrusted(ctx, guestID)
	if err != nil {
		return err
	}

	if !trusted {
		verdict, err := s.moderate(ctx, msg)
		if err != nil {
			return err
		}
		if verdict.Unsafe {
			return s.rejectUnsafe(ctx, msg, guestID, lang, verdict)
		}
		if err := s.trust.Increment(ctx, guestID); err != nil {
			return err
		}
	}

	// 8. Forward.
	return s.forward(ctx, msg, guestID)
}

// moderate evaluates text, then photo, then sticker, short-circuiting on
// the first UNSAFE verdict. Animated and video content is skipped.
func (s *GuestService) moderate(ctx context.Context, msg *chatapi.Message) (models.Verdict, error) {
	if msg.Text != "" {
		verdict, err := s.moderateText(ctx, msg.Text)
		if err != nil {
			return models.Safe(), err
		}
		if verdict.Unsafe {
			return verdict, nil
		}
	}

	if len(msg.Photo) > 0 {
		// The platform sends multiple resolutions; the last is the largest.
		largest := msg.Photo[len(msg.Photo)-1]
		if verdict := s.moderateFile(ctx, largest.FileID, msg.Caption); verdict.Unsafe {
			return verdict, nil
		}
	} else if msg.Caption != "" {
		verdict, err := s.moderateText(ctx, msg.Caption)
		if err != nil {
			return models.Safe(), err
		}
		if verdict.Unsafe {
			return verdict, nil
		}
	}

	if msg.Sticker != nil && !msg.Sticker.IsAnimated && !msg.Sticker.IsVideo {
		if verdict := s.moderateFile(ctx, msg.Sticker.FileID, msg.Sticker.Emoji); verdict.Unsafe {
			return verdict, nil
		}
	}

	return models.Safe(), nil
}

// moderateText consults the cache before the moderation engine and writes
// fresh verdicts back.
func (s *GuestService) moderateText(ctx context.Context, text string) (models.Verdict, error) {
	hit, cached, err := s.modCache.Lookup(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("Moderation cache lookup failed, evaluating directly")
	} else if hit {
		return cached, nil
	}

	verdict := s.moderator.EvaluateText(ctx, text)
	if err := s.modCache.Store(ctx, text, verdict); err != nil {
		log.Warn().Err(err).Msg("Failed to write moderation cache")
	}
	return verdict, nil
}

func (s *GuestService) moderateFile(ctx context.Context, fileID, caption string) models.Verdict {
	url, err := s.chat.FileURL(ctx, fileID)
	if err != nil {
		// Resource-fetch failure skips this content type's check.
		log.Warn().Err(err).Str("fileID", fileID).Msg("Failed to resolve file URL, skipping media moderation")
		return models.Safe()
	}
	return s.moderator.EvaluateImage(ctx, url, caption)
}

// rejectUnsafe handles an UNSAFE verdict: counts it, optionally blocks
// the guest, and notifies them with the fixed reason. No relay is created.
func (s *GuestService) rejectUnsafe(ctx context.Context, msg *chatapi.Message, guestID, lang string, verdict models.Verdict) error {
	if err := s.counters.Increment(ctx, state.CounterAIBlocks); err != nil {
		log.Warn().Err(err).Msg("Failed to increment ai-blocks counter")
	}
	s.auditLog.Record(guestID, audit.ActionModerationUnsafe, verdict.Reason)

	if s.autoBlock {
		reason := fmt.Sprintf("Auto-blocked: %s", verdict.Reason)
		if err := s.blocklist.SetBlocked(ctx, guestID, true, reason); err != nil {
			return err
		}
		s.auditLog.Record(guestID, audit.ActionBlock, reason)
		s.publisher.Publish(events.Event{Type: events.TypeGuestBlocked, GuestID: guestID, Reason: reason})
		_, err := s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "blocked_with_reason", reason), nil)
		return err
	}

	_, err := s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "blocked_with_reason", verdict.Reason), nil)
	return err
}

// forward creates the relay record, forwards the raw message to the admin
// and links the admin-side message id back to the relay. A failed forward
// leaves the relay record in place but unlinked.
func (s *GuestService) forward(ctx context.Context, msg *chatapi.Message, guestID string) error {
	summary := state.MessageSummary{
		GuestDisplayName: msg.From.DisplayName(),
		Text:             firstNonEmpty(msg.Text, msg.Caption),
		HasPhoto:         len(msg.Photo) > 0,
	}
	relay, err := s.directory.CreateRelay(ctx, guestID, summary)
	if err != nil {
		return err
	}

	forwarded, err := s.chat.ForwardMessage(ctx, s.adminChatID, msg.Chat.ID, msg.MessageID)
	if err != nil {
		log.Error().Err(err).Str("relayID", relay.ID).Msg("Forward to admin failed, relay left unlinked")
		return err
	}
	if err := s.directory.LinkAdminMessage(ctx, forwarded.MessageID, relay.ID); err != nil {
		log.Error().Err(err).Str("relayID", relay.ID).Msg("Failed to link admin message, replies will not resolve")
	}

	s.publisher.Publish(events.Event{Type: events.TypeRelayCreated, GuestID: guestID, RelayID: relay.ID})
	return nil
}

// handleAppeal composes an appeal notice for the admin with Accept/Reject
// controls, including the block reason and date plus any free text after
// the command, and acknowledges the guest.
func (s *GuestService) handleAppeal(ctx context.Context, msg *chatapi.Message, guestID, lang string) error {
	blocked, err := s.blocklist.IsBlocked(ctx, guestID)
	if err != nil {
		return err
	}
	if !blocked {
		_, err := s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "appeal_not_blocked"), nil)
		return err
	}

	info, err := s.blocklist.BlockInfo(ctx, guestID)
	if err != nil {
		return err
	}
	reason := "unknown"
	date := "unknown"
	if info != nil {
		reason = info.Reason
		date = info.BlockedAt.Format("2006-01-02 15:04")
	}

	freeText := strings.TrimSpace(strings.TrimPrefix(msg.Text, "/appeal"))
	notice := fmt.Sprintf("Appeal from guest %s (%s)\nBlocked: %s\nReason: %s",
		guestID, msg.From.DisplayName(), date, reason)
	if freeText != "" {
		notice += "\nMessage: " + freeText
	}

	markup := &chatapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]chatapi.InlineKeyboardButton{{
			{Text: "Accept", CallbackData: "appeal:accept:" + guestID},
			{Text: "Reject", CallbackData: "appeal:reject:" + guestID},
		}},
	}
	if _, err := s.chat.SendMessage(ctx, s.adminChatID, notice, markup); err != nil {
		return err
	}

	// Optional forwarded evidence: a message the guest replied to.
	if msg.ReplyTo != nil {
		if _, err := s.chat.ForwardMessage(ctx, s.adminChatID, msg.Chat.ID, msg.ReplyTo.MessageID); err != nil {
			log.Warn().Err(err).Str("guestID", guestID).Msg("Failed to forward appeal evidence")
		}
	}

	s.publisher.Publish(events.Event{Type: events.TypeAppeal, GuestID: guestID, Reason: reason})
	_, err = s.chat.SendMessage(ctx, msg.Chat.ID, i18n.T(lang, "appeal_submitted"), nil)
	return err
}

// HandleEditedMessage forwards an edited guest message to the admin as a
// security notice; the edit itself is not relayed.
func (s *GuestService) HandleEditedMessage(ctx context.Context, msg *chatapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	guestID := strconv.FormatInt(msg.From.ID, 10)
	notice := fmt.Sprintf("Guest %s edited a message: %s",
		guestID, firstNonEmpty(msg.Text, msg.Caption, "<media>"))
	if _, err := s.chat.SendMessage(ctx, s.adminChatID, notice, nil); err != nil {
		log.Error().Err(err).Str("guestID", guestID).Msg("Failed to notify admin about edited message")
	}
}

func (s *GuestService) sendLangPicker(ctx context.Context, chatID int64, guestID, lang string) error {
	var row []chatapi.InlineKeyboardButton
	for _, code := range i18n.SupportedLangs {
		row = append(row, chatapi.InlineKeyboardButton{
			Text:         code,
			CallbackData: fmt.Sprintf("lang:%s:%s", code, guestID),
		})
	}
	markup := &chatapi.InlineKeyboardMarkup{InlineKeyboard: [][]chatapi.InlineKeyboardButton{row}}
	_, err := s.chat.SendMessage(ctx, chatID, i18n.T(lang, "lang_pick"), markup)
	return err
}

func (s *GuestService) guestLang(ctx context.Context, guestID string) string {
	lang, err := s.langs.Get(ctx, guestID)
	if err != nil || lang == "" {
		return i18n.DefaultLang
	}
	return lang
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
