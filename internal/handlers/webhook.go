// Package handlers contains the HTTP entry points: the webhook endpoint
// that receives platform updates and routes them to the pipelines.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"guest-relay-bot/internal/adapters/chatapi"
	"guest-relay-bot/internal/services"
)

// WebhookHandler receives platform updates and dispatches them to the
// guest, admin and callback pipelines.
type WebhookHandler struct {
	guest    *services.GuestService
	admin    *services.AdminService
	callback *services.CallbackService

	adminChatID int64
	secret      string
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(
	guest *services.GuestService,
	admin *services.AdminService,
	callback *services.CallbackService,
	adminChatID int64,
	secret string,
) *WebhookHandler {
	if guest == nil || admin == nil || callback == nil {
		log.Fatal().Msg("All pipeline services are required for WebhookHandler")
	}
	return &WebhookHandler{
		guest:       guest,
		admin:       admin,
		callback:    callback,
		adminChatID: adminChatID,
		secret:      secret,
	}
}

// Handle processes one inbound webhook request. The platform retries on
// non-200 responses, so handler-level failures still acknowledge with 200
// once the payload has been accepted for processing.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get("X-Webhook-Secret") != h.secret {
		log.Warn().Msg("Webhook request with invalid secret token")
		http.Error(w, "Invalid secret token", http.StatusUnauthorized)
		return
	}

	var update chatapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Error().Err(err).Msg("Failed to decode webhook payload")
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	switch {
	case update.CallbackQuery != nil:
		log.Debug().Str("data", update.CallbackQuery.Data).Msg("Received callback event")
		h.callback.HandleCallback(ctx, update.CallbackQuery)

	case update.EditedMessage != nil:
		if h.fromAdmin(update.EditedMessage) {
			break // admin edits are of no interest
		}
		log.Debug().Int64("messageID", update.EditedMessage.MessageID).Msg("Received edited message")
		h.guest.HandleEditedMessage(ctx, update.EditedMessage)

	case update.Message != nil:
		if h.fromAdmin(update.Message) {
			h.admin.HandleAdminMessage(ctx, update.Message)
		} else {
			h.guest.HandleGuestMessage(ctx, update.Message)
		}

	default:
		log.Debug().Int64("updateID", update.UpdateID).Msg("Update carries no handled event, ignoring")
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) fromAdmin(msg *chatapi.Message) bool {
	return msg.From != nil && msg.From.ID == h.adminChatID
}
