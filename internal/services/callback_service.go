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
	"guest-relay-bot/internal/state"
)

// CallbackService dispatches button-click events. Action strings are
// colon-delimited: lang:<code>:<userId>, appeal:<accept|reject>:<guestId>,
// unban:<guestId>.
type CallbackService struct {
	chat      ChatClient
	blocklist *state.Blocklist
	langs     *state.LangPrefs
	auditLog  *audit.Log

	adminChatID int64
}

// NewCallbackService wires the callback pipeline.
func NewCallbackService(chat ChatClient, blocklist *state.Blocklist, langs *state.LangPrefs, auditLog *audit.Log, adminChatID int64) (*CallbackService, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat client cannot be nil for CallbackService")
	}
	return &CallbackService{
		chat:        chat,
		blocklist:   blocklist,
		langs:       langs,
		auditLog:    auditLog,
		adminChatID: adminChatID,
	}, nil
}

// HandleCallback processes one callback event and always answers it so
// the client stops showing a spinner.
func (s *CallbackService) HandleCallback(ctx context.Context, cb *chatapi.CallbackQuery) {
	if cb == nil {
		return
	}
	if err := s.process(ctx, cb); err != nil {
		log.Error().Err(err).Str("data", cb.Data).Msg("Callback handling failed")
		_ = s.chat.AnswerCallback(ctx, cb.ID, "")
	}
}

func (s *CallbackService) process(ctx context.Context, cb *chatapi.CallbackQuery) error {
	parts := strings.Split(cb.Data, ":")

	switch {
	case len(parts) == 3 && parts[0] == "lang":
		return s.handleLang(ctx, cb, parts[1], parts[2])
	case len(parts) == 3 && parts[0] == "appeal":
		return s.handleAppealDecision(ctx, cb, parts[1], parts[2])
	case len(parts) == 2 && parts[0] == "unban":
		return s.handleUnban(ctx, cb, parts[1])
	default:
		log.Warn().Str("data", cb.Data).Msg("Unknown callback action")
		return s.chat.AnswerCallback(ctx, cb.ID, "")
	}
}

func (s *CallbackService) handleLang(ctx context.Context, cb *chatapi.CallbackQuery, code, userID string) error {
	if !i18n.IsSupported(code) {
		return s.chat.AnswerCallback(ctx, cb.ID, "")
	}
	if err := s.langs.Set(ctx, userID, code); err != nil {
		return err
	}
	if err := s.chat.AnswerCallback(ctx, cb.ID, i18n.T(code, "lang_changed")); err != nil {
		log.Warn().Err(err).Msg("Failed to answer language callback")
	}
	if chatID, err := strconv.ParseInt(userID, 10, 64); err == nil {
		_, _ = s.chat.SendMessage(ctx, chatID, i18n.T(code, "lang_changed"), nil)
	}
	return nil
}

// handleAppealDecision applies the admin's Accept/Reject choice: accept
// clears the block, both outcomes notify the guest in their language and
// confirm to the admin.
func (s *CallbackService) handleAppealDecision(ctx context.Context, cb *chatapi.CallbackQuery, decision, guestID string) error {
	guestLang, err := s.langs.Get(ctx, guestID)
	if err != nil || guestLang == "" {
		guestLang = i18n.DefaultLang
	}

	switch decision {
	case "accept":
		if err := s.blocklist.SetBlocked(ctx, guestID, false, ""); err != nil {
			return err
		}
		s.auditLog.Record(guestID, audit.ActionAppealAccepted, "")
		s.sendToGuest(ctx, guestID, i18n.T(guestLang, "appeal_accepted"))
		if _, err := s.chat.SendMessage(ctx, s.adminChatID, i18n.T(i18n.DefaultLang, "admin_appeal_accepted", guestID), nil); err != nil {
			return err
		}
	case "reject":
		s.auditLog.Record(guestID, audit.ActionAppealRejected, "")
		s.sendToGuest(ctx, guestID, i18n.T(guestLang, "appeal_rejected"))
		if _, err := s.chat.SendMessage(ctx, s.adminChatID, i18n.T(i18n.DefaultLang, "admin_appeal_rejected", guestID), nil); err != nil {
			return err
		}
	default:
		log.Warn().Str("decision", decision).Msg("Unknown appeal decision")
	}

	return s.chat.AnswerCallback(ctx, cb.ID, "")
}

func (s *CallbackService) handleUnban(ctx context.Context, cb *chatapi.CallbackQuery, guestID string) error {
	if err := s.blocklist.SetBlocked(ctx, guestID, false, ""); err != nil {
		return err
	}
	s.auditLog.Record(guestID, audit.ActionUnblock, "")
	if _, err := s.chat.SendMessage(ctx, s.adminChatID, i18n.T(i18n.DefaultLang, "admin_unblocked", guestID), nil); err != nil {
		return err
	}
	return s.chat.AnswerCallback(ctx, cb.ID, "")
}

func (s *CallbackService) sendToGuest(ctx context.Context, guestID, text string) {
	chatID, err := strconv.ParseInt(guestID, 10, 64)
	if err != nil {
		return
	}
	if _, err := s.chat.SendMessage(ctx, chatID, text, nil); err != nil {
		log.Warn().Err(err).Str("guestID", guestID).Msg("Failed to notify guest")
	}
}
