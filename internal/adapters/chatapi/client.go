// Package chatapi is the thin client for the chat platform's bot API.
// The moderation-and-relay core only issues the calls defined here; the
// platform's delivery guarantees are whatever the platform provides.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the production bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Client talks to the chat platform's bot API.
type Client struct {
	httpClient *resty.Client
	baseURL    string
	token      string
}

// NewClient creates a bot API client. An empty baseURL selects the
// production endpoint.
func NewClient(baseURL, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token cannot be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)

	log.Info().Str("baseURL", baseURL).Msg("Chat API client configured")
	return &Client{httpClient: httpClient, baseURL: baseURL, token: token}, nil
}

// SendMessage sends text to a chat, optionally with button markup, and
// returns the sent message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error) {
	body := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ForwardMessage forwards a message preserving original-sender
// attribution and returns the forwarded copy.
func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) (*Message, error) {
	body := map[string]interface{}{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	var msg Message
	if err := c.call(ctx, "forwardMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CopyMessage copies a message's content to a chat without attribution.
func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error {
	body := map[string]interface{}{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	return c.call(ctx, "copyMessage", body, nil)
}

// FileURL fetches file metadata for fileID and derives the download URL.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	var file File
	if err := c.call(ctx, "getFile", map[string]interface{}{"file_id": fileID}, &file); err != nil {
		return "", err
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("file %s has no path", fileID)
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath), nil
}

// AnswerCallback acknowledges a button press, optionally with a short
// notification text.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	body := map[string]interface{}{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

// SetCommands installs a command menu for the given scope
// ("all_private_chats" for guests, or a specific chat for the admin).
func (c *Client) SetCommands(ctx context.Context, commands []BotCommand, scopeType string, scopeChatID int64) error {
	scope := map[string]interface{}{"type": scopeType}
	if scopeChatID != 0 {
		scope["chat_id"] = scopeChatID
	}
	body := map[string]interface{}{
		"commands": commands,
		"scope":    scope,
	}
	return c.call(ctx, "setMyCommands", body, nil)
}

// call issues one bot API method and decodes the result envelope.
func (c *Client) call(ctx context.Context, method string, body interface{}, out interface{}) error {
	url := fmt.Sprintf("/bot%s/%s", c.token, method)

	var envelope apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&envelope).
		SetError(&envelope).
		Post(url)

	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("Chat API request failed")
		return fmt.Errorf("chat API %s request failed: %w", method, err)
	}
	if resp.IsError() || !envelope.OK {
		log.Error().
			Str("method", method).
			Int("statusCode", resp.StatusCode()).
			Str("description", envelope.Description).
			Msg("Chat API returned an error")
		return fmt.Errorf("chat API %s error: %s", method, envelope.Description)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("chat API %s: failed to decode result: %w", method, err)
		}
	}
	return nil
}
