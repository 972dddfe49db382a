package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guest-relay-bot/internal/adapters/chatapi"
	"guest-relay-bot/internal/models"
	"guest-relay-bot/internal/state"
	"guest-relay-bot/internal/store"
)

const testAdminChatID int64 = 999

type sentMsg struct {
	ChatID int64
	Text   string
	Markup *chatapi.InlineKeyboardMarkup
}

type relayCall struct {
	To, From, MessageID int64
}

// fakeChat records every outbound call instead of talking to a platform.
type fakeChat struct {
	Sent       []sentMsg
	Forwards   []relayCall
	Copies     []relayCall
	Answered   []string
	ForwardErr error
	nextMsgID  int64
}

func (f *fakeChat) SendMessage(_ context.Context, chatID int64, text string, markup *chatapi.InlineKeyboardMarkup) (*chatapi.Message, error) {
	f.Sent = append(f.Sent, sentMsg{ChatID: chatID, Text: text, Markup: markup})
	f.nextMsgID++
	return &chatapi.Message{MessageID: f.nextMsgID}, nil
}

func (f *fakeChat) ForwardMessage(_ context.Context, to, from, messageID int64) (*chatapi.Message, error) {
	if f.ForwardErr != nil {
		return nil, f.ForwardErr
	}
	f.Forwards = append(f.Forwards, relayCall{To: to, From: from, MessageID: messageID})
	return &chatapi.Message{MessageID: 5000 + int64(len(f.Forwards))}, nil
}

func (f *fakeChat) CopyMessage(_ context.Context, to, from, messageID int64) error {
	f.Copies = append(f.Copies, relayCall{To: to, From: from, MessageID: messageID})
	return nil
}

func (f *fakeChat) FileURL(_ context.Context, fileID string) (string, error) {
	return "https://files.example/" + fileID + ".jpg", nil
}

func (f *fakeChat) AnswerCallback(_ context.Context, callbackID, _ string) error {
	f.Answered = append(f.Answered, callbackID)
	return nil
}

func (f *fakeChat) SetCommands(_ context.Context, _ []chatapi.BotCommand, _ string, _ int64) error {
	return nil
}

func (f *fakeChat) lastSent() sentMsg {
	if len(f.Sent) == 0 {
		return sentMsg{}
	}
	return f.Sent[len(f.Sent)-1]
}

func (f *fakeChat) sentTo(chatID int64) []sentMsg {
	var out []sentMsg
	for _, m := range f.Sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// fakeModerator returns a fixed verdict and counts invocations.
type fakeModerator struct {
	Verdict    models.Verdict
	TextCalls  int
	ImageCalls int
	LastText   string
}

func (f *fakeModerator) EvaluateText(_ context.Context, text string) models.Verdict {
	f.TextCalls++
	f.LastText = text
	return f.Verdict
}

func (f *fakeModerator) EvaluateImage(_ context.Context, _, _ string) models.Verdict {
	f.ImageCalls++
	return f.Verdict
}

type testEnv struct {
	Chat      *fakeChat
	Moderator *fakeModerator

	Directory *state.Directory
	Blocklist *state.Blocklist
	Trust     *state.Trust
	Limiter   *state.RateLimiter
	ModCache  *state.ModCache
	Langs     *state.LangPrefs
	Counters  *state.Counters

	Guest    *GuestService
	Admin    *AdminService
	Callback *CallbackService
}

func newTestEnv(t *testing.T, rateLimitMax int, autoBlock bool) *testEnv {
	t.Helper()

	kv := store.NewMemoryStore()
	chat := &fakeChat{}
	moderator := &fakeModerator{}

	counters := state.NewCounters(kv)
	trust := state.NewTrust(kv, 3)
	blocklist := state.NewBlocklist(kv, counters, trust)
	directory := state.NewDirectory(kv, counters)
	limiter := state.NewRateLimiter(kv, rateLimitMax, time.Minute)
	modCache := state.NewModCache(kv, 4, time.Hour)
	langs := state.NewLangPrefs(kv)

	guest, err := NewGuestService(chat, moderator, directory, blocklist, trust, limiter, modCache, langs, counters, nil, nil, testAdminChatID, autoBlock)
	require.NoError(t, err)
	admin, err := NewAdminService(chat, directory, blocklist, trust, langs, counters, nil, nil, testAdminChatID)
	require.NoError(t, err)
	callback, err := NewCallbackService(chat, blocklist, langs, nil, testAdminChatID)
	require.NoError(t, err)

	return &testEnv{
		Chat:      chat,
		Moderator: moderator,
		Directory: directory,
		Blocklist: blocklist,
		Trust:     trust,
		Limiter:   limiter,
		ModCache:  modCache,
		Langs:     langs,
		Counters:  counters,
		Guest:     guest,
		Admin:     admin,
		Callback:  callback,
	}
}

func guestMessage(text string) *chatapi.Message {
	return &chatapi.Message{
		MessageID: 100,
		From:      &chatapi.User{ID: 42, FirstName: "Alice"},
		Chat:      chatapi.Chat{ID: 42},
		Text:      text,
	}
}

func adminMessage(text string, replyTo *chatapi.Message) *chatapi.Message {
	return &chatapi.Message{
		MessageID: 200,
		From:      &chatapi.User{ID: testAdminChatID, FirstName: "Op"},
		Chat:      chatapi.Chat{ID: testAdminChatID},
		Text:      text,
		ReplyTo:   replyTo,
	}
}
