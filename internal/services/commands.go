package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"guest-relay-bot/internal/adapters/chatapi"
)

// RegisterCommandMenus installs distinct command menus for the guest
// scope and the admin chat. Best-effort: a failure is logged, the bot
// works without menus.
func RegisterCommandMenus(ctx context.Context, chat ChatClient, adminChatID int64) {
	guestCommands := []chatapi.BotCommand{
		{Command: "start", Description: "Start the conversation"},
		{Command: "language", Description: "Change language"},
		{Command: "appeal", Description: "Appeal a block"},
	}
	if err := chat.SetCommands(ctx, guestCommands, "all_private_chats", 0); err != nil {
		log.Warn().Err(err).Msg("Failed to set guest command menu")
	}

	adminCommands := []chatapi.BotCommand{
		{Command: "block", Description: "Block the guest (reply or id)"},
		{Command: "unblock", Description: "Unblock a guest"},
		{Command: "trust", Description: "Exempt a guest from moderation"},
		{Command: "untrust", Description: "Reset a guest's trust"},
		{Command: "check", Description: "Show a guest's state"},
		{Command: "status", Description: "Show bot statistics"},
	}
	if err := chat.SetCommands(ctx, adminCommands, "chat", adminChatID); err != nil {
		log.Warn().Err(err).Msg("Failed to set admin command menu")
	}
}
