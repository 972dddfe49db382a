package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-relay-bot/internal/adapters/chatapi"
	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/services"
	"guest-relay-bot/internal/state"
	"guest-relay-bot/internal/store"
)

const adminID int64 = 999

// chatRecorder satisfies services.ChatClient and records the routing
// outcome we care about per test.
type chatRecorder struct {
	SentTo      []int64
	ForwardedTo []int64
	Answered    []string
}

func (c *chatRecorder) SendMessage(_ context.Context, chatID int64, _ string, _ *chatapi.InlineKeyboardMarkup) (*chatapi.Message, error) {
	c.SentTo = append(c.SentTo, chatID)
	return &chatapi.Message{MessageID: 1}, nil
}

func (c *chatRecorder) ForwardMessage(_ context.Context, to, _, _ int64) (*chatapi.Message, error) {
	c.ForwardedTo = append(c.ForwardedTo, to)
	return &chatapi.Message{MessageID: 5001}, nil
}

func (c *chatRecorder) CopyMessage(_ context.Context, _, _, _ int64) error { return nil }

func (c *chatRecorder) FileURL(_ context.Context, fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (c *chatRecorder) AnswerCallback(_ context.Context, callbackID, _ string) error {
	c.Answered = append(c.Answered, callbackID)
	return nil
}

func (c *chatRecorder) SetCommands(_ context.Context, _ []chatapi.BotCommand, _ string, _ int64) error {
	return nil
}

type safeModerator struct{}

func (safeModerator) EvaluateText(context.Context, string) models.Verdict { return models.Safe() }
func (safeModerator) EvaluateImage(context.Context, string, string) models.Verdict {
	return models.Safe()
}

func newHandler(t *testing.T, secret string) (*WebhookHandler, *chatRecorder) {
	t.Helper()

	kv := store.NewMemoryStore()
	chat := &chatRecorder{}

	counters := state.NewCounters(kv)
	trust := state.NewTrust(kv, 3)
	blocklist := state.NewBlocklist(kv, counters, trust)
	directory := state.NewDirectory(kv, counters)
	limiter := state.NewRateLimiter(kv, 10, time.Minute)
	modCache := state.NewModCache(kv, 4, time.Hour)
	langs := state.NewLangPrefs(kv)

	guest, err := services.NewGuestService(chat, safeModerator{}, directory, blocklist, trust, limiter, modCache, langs, counters, nil, nil, adminID, true)
	require.NoError(t, err)
	admin, err := services.NewAdminService(chat, directory, blocklist, trust, langs, counters, nil, nil, adminID)
	require.NoError(t, err)
	callback, err := services.NewCallbackService(chat, blocklist, langs, nil, adminID)
	require.NoError(t, err)

	return NewWebhookHandler(guest, admin, callback, adminID, secret), chat
}

func post(h *WebhookHandler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhook_RejectsInvalidSecret(t *testing.T) {
	h, chat := newHandler(t, "s3cret")

	rec := post(h, `{"update_id":1,"message":{"message_id":1,"from":{"id":42},"chat":{"id":42},"text":"hi"}}`, "wrong")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, chat.ForwardedTo)
}

func TestWebhook_RejectsMalformedJSON(t *testing.T) {
	h, _ := newHandler(t, "")

	rec := post(h, `{not json`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_GuestMessageIsForwarded(t *testing.T) {
	h, chat := newHandler(t, "s3cret")

	rec := post(h, `{"update_id":1,"message":{"message_id":1,"from":{"id":42},"chat":{"id":42},"text":"hello there"}}`, "s3cret")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{adminID}, chat.ForwardedTo)
}

func TestWebhook_AdminMessageIsNotTreatedAsGuest(t *testing.T) {
	h, chat := newHandler(t, "")

	rec := post(h, `{"update_id":2,"message":{"message_id":2,"from":{"id":999},"chat":{"id":999},"text":"note"}}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, chat.ForwardedTo, "admin text must not enter the guest pipeline")
}

func TestWebhook_CallbackIsDispatched(t *testing.T) {
	h, chat := newHandler(t, "")

	rec := post(h, `{"update_id":3,"callback_query":{"id":"cb-9","from":{"id":999},"data":"lang:es:42"}}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"cb-9"}, chat.Answered)
}

func TestWebhook_GuestEditTriggersNotice(t *testing.T) {
	h, chat := newHandler(t, "")

	rec := post(h, `{"update_id":4,"edited_message":{"message_id":5,"from":{"id":42},"chat":{"id":42},"text":"edited"}}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{adminID}, chat.SentTo)
	assert.Empty(t, chat.ForwardedTo)
}

func TestWebhook_EmptyUpdateIsAccepted(t *testing.T) {
	h, _ := newHandler(t, "")

	rec := post(h, `{"update_id":5}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
}
