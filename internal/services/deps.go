// Package services implements the moderation-and-relay decision
// pipelines: the guest pipeline deciding whether and how an inbound
// message is forwarded, the admin pipeline routing replies and commands
// back, and the callback pipeline for button actions.
package services

import (
	"context"

	"guest-relay-bot/internal/adapters/chatapi"
	"guest-relay-bot/internal/models"
)

// ChatClient is the subset of the chat platform API the pipelines issue.
type ChatClient interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *chatapi.InlineKeyboardMarkup) (*chatapi.Message, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) (*chatapi.Message, error)
	CopyMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error
	FileURL(ctx context.Context, fileID string) (string, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
	SetCommands(ctx context.Context, commands []chatapi.BotCommand, scopeType string, scopeChatID int64) error
}

// Moderator classifies content as SAFE or UNSAFE. Implementations fail
// open: an unreliable backend yields SAFE, never an error.
type Moderator interface {
	EvaluateText(ctx context.Context, text string) models.Verdict
	EvaluateImage(ctx context.Context, url, caption string) models.Verdict
}
