package aimod

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, keys ...string) (*Client, *KeyRotor) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	rotor := NewKeyRotor(keys)
	client, err := NewClient(server.URL, rotor)
	require.NoError(t, err)
	return client, rotor
}

func respond(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(evalResponse{Text: text})
}

func TestEvaluateText_Safe(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, "SAFE")
	}, "key-1")

	verdict := client.EvaluateText(context.Background(), "hello there")
	assert.False(t, verdict.Unsafe)
}

func TestEvaluateText_UnsafeSubstringCaseInsensitive(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, "I judged this content unSAFE because of policy reasons")
	}, "key-1")

	verdict := client.EvaluateText(context.Background(), "some nasty text")
	assert.True(t, verdict.Unsafe)
	// Model output is never echoed; the reason is the fixed string.
	assert.Equal(t, UnsafeReason, verdict.Reason)
}

func TestEvaluateText_ShortContentSkipsCall(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(w, "UNSAFE")
	}, "key-1")

	verdict := client.EvaluateText(context.Background(), "a")
	assert.False(t, verdict.Unsafe)
	assert.Equal(t, int64(0), calls.Load())
}

func TestEvaluateText_FailOpenWhenAllKeysFail(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}, "key-1", "key-2", "key-3")

	verdict := client.EvaluateText(context.Background(), "some text to check")
	assert.False(t, verdict.Unsafe, "exhausted keyset must fail open to SAFE")
	assert.Equal(t, int64(3), calls.Load(), "one attempt per key")
}

func TestEvaluateText_RetriesNextKeyOnFailure(t *testing.T) {
	var keysSeen []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		keysSeen = append(keysSeen, key)
		if key == "key-1" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		respond(w, "SAFE")
	}, "key-1", "key-2")

	verdict := client.EvaluateText(context.Background(), "check this please")
	assert.False(t, verdict.Unsafe)
	assert.Equal(t, []string{"key-1", "key-2"}, keysSeen)
}

func TestKeyRotor_RoundRobinAndUsage(t *testing.T) {
	rotor := NewKeyRotor([]string{"a", "b"})

	assert.Equal(t, "a", rotor.Next())
	assert.Equal(t, "b", rotor.Next())
	assert.Equal(t, "a", rotor.Next())
	assert.Equal(t, "b", rotor.Next())

	usage := rotor.Usage()
	assert.Equal(t, int64(2), usage["a"])
	assert.Equal(t, int64(2), usage["b"])
}

func TestEvaluateText_EmptyKeysetFailsOpen(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, "UNSAFE")
	})

	verdict := client.EvaluateText(context.Background(), "anything at all")
	assert.False(t, verdict.Unsafe)
}

func TestDetectMimeType(t *testing.T) {
	cases := []struct {
		name string
		url  string
		data []byte
		want string
	}{
		{"png suffix", "https://cdn.example/file.PNG", nil, "image/png"},
		{"gif suffix", "https://cdn.example/anim.gif", nil, "image/gif"},
		{"webp suffix", "https://cdn.example/pic.webp", nil, "image/webp"},
		{"jpeg suffix", "https://cdn.example/photo.jpg", nil, "image/jpeg"},
		{"png magic", "https://cdn.example/blob", []byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
		{"gif magic", "https://cdn.example/blob", []byte{0x47, 0x49, 0x46}, "image/gif"},
		{"webp magic", "https://cdn.example/blob", []byte{0x52, 0x49, 0x46, 0x46}, "image/webp"},
		{"default jpeg", "https://cdn.example/blob", []byte{0xFF, 0xD8}, "image/jpeg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectMimeType(tc.url, tc.data))
		})
	}
}

func TestEvaluateImageBytes_SendsMimeAndBase64(t *testing.T) {
	var got evalRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		respond(w, "SAFE")
	}, "key-1")

	verdict := client.EvaluateImageBytes(context.Background(), []byte{0x89, 0x50}, "image/png", "a caption")
	assert.False(t, verdict.Unsafe)
	assert.Equal(t, "image/png", got.MimeType)
	assert.NotEmpty(t, got.ImageData)
	assert.Equal(t, "a caption", got.Text)
}
