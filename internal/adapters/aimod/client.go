// Package aimod is the client for the AI moderation API. It classifies
// text and static-image content as SAFE or UNSAFE, rotating across a set
// of API keys with bounded retry and failing open to SAFE when every key
// is exhausted.
package aimod

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"guest-relay-bot/internal/models"
)

// UnsafeReason is the fixed user-facing reason for UNSAFE verdicts. Model
// output is never echoed verbatim to users.
const UnsafeReason = "Content policy violation"

// moderationPrompt is the fixed instruction sent with every request. The
// response is free-form text; the literal substring UNSAFE is the sole
// decision signal.
const moderationPrompt = "You are a strict content moderator. " +
	"Review the following user-submitted content. " +
	"Reply with the single word UNSAFE if it contains hate speech, harassment, " +
	"sexual content, violence, or spam. Otherwise reply SAFE."

type evalRequest struct {
	Prompt    string `json:"prompt"`
	Text      string `json:"text,omitempty"`
	ImageData string `json:"image_data,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
}

type evalResponse struct {
	Text string `json:"text"`
}

// Client evaluates content against the moderation API.
type Client struct {
	httpClient *resty.Client
	rotor      *KeyRotor
}

// NewClient creates a moderation client for the given API base URL and
// credential set.
func NewClient(baseURL string, rotor *KeyRotor) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("moderation API baseURL cannot be empty")
	}
	if rotor == nil || rotor.Len() == 0 {
		log.Warn().Msg("Moderation client configured without API keys; every check will fail open")
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)

	log.Info().Str("baseURL", baseURL).Int("keys", rotorLen(rotor)).Msg("Moderation client configured")
	return &Client{httpClient: httpClient, rotor: rotor}, nil
}

func rotorLen(r *KeyRotor) int {
	if r == nil {
		return 0
	}
	return r.Len()
}

// EvaluateText classifies a piece of text. Content shorter than two
// characters is treated as SAFE without issuing a call.
func (c *Client) EvaluateText(ctx context.Context, text string) models.Verdict {
	if len([]rune(text)) < 2 {
		return models.Safe()
	}
	return c.evaluate(ctx, evalRequest{Prompt: moderationPrompt, Text: text})
}

// EvaluateImage downloads the image at url and classifies it, with an
// optional caption evaluated alongside. A download failure skips the
// check: no verdict is produced, which reads as SAFE from this channel.
func (c *Client) EvaluateImage(ctx context.Context, url, caption string) models.Verdict {
	data, err := c.download(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Image download failed, skipping image moderation")
		return models.Safe()
	}
	return c.EvaluateImageBytes(ctx, data, DetectMimeType(url, data), caption)
}

// EvaluateImageBytes classifies raw image bytes with the given MIME type.
func (c *Client) EvaluateImageBytes(ctx context.Context, data []byte, mimeType, caption string) models.Verdict {
	if len(data) == 0 {
		return models.Safe()
	}
	return c.evaluate(ctx, evalRequest{
		Prompt:    moderationPrompt,
		Text:      caption,
		ImageData: base64.StdEncoding.EncodeToString(data),
		MimeType:  mimeType,
	})
}

// evaluate issues the moderation request, advancing to the next key on
// every failure, up to one attempt per key. Exhausting the keyset without
// a successful response yields SAFE.
func (c *Client) evaluate(ctx context.Context, req evalRequest) models.Verdict {
	if c.rotor == nil || c.rotor.Len() == 0 {
		return models.Safe()
	}

	attempts := c.rotor.Len()
	for i := 0; i < attempts; i++ {
		key := c.rotor.Next()

		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetQueryParam("key", key).
			SetBody(req).
			SetResult(&evalResponse{}).
			Post("/v1/moderate")

		if err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("Moderation API request failed, rotating key")
			continue
		}
		if resp.IsError() {
			log.Warn().
				Int("statusCode", resp.StatusCode()).
				Int("attempt", i+1).
				Msg("Moderation API returned an error, rotating key")
			continue
		}

		result := resp.Result().(*evalResponse)
		return classify(result.Text)
	}

	log.Error().Int("attempts", attempts).Msg("All moderation API keys exhausted, failing open")
	return models.Safe()
}

// classify pattern-matches the model response for the UNSAFE signal. The
// reason is always the fixed string, never model output.
func classify(responseText string) models.Verdict {
	if strings.Contains(strings.ToUpper(responseText), "UNSAFE") {
		return models.Unsafe(UnsafeReason)
	}
	return models.Safe()
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s returned status %s", url, resp.Status())
	}
	return resp.Body(), nil
}

// DetectMimeType classifies image content by URL suffix first, then by
// magic bytes, defaulting to JPEG.
func DetectMimeType(url string, data []byte) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	}

	switch {
	case bytes.HasPrefix(data, []byte{0x89, 0x50}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0x47, 0x49}):
		return "image/gif"
	case bytes.HasPrefix(data, []byte{0x52, 0x49}):
		return "image/webp"
	}
	return "image/jpeg"
}
