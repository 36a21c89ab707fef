// Package notify posts messages to the operator notification channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/transport"
)

// DefaultDiscordBaseURL is the Discord REST API root.
const DefaultDiscordBaseURL = "https://discord.com/api/v10"

// maxMessageRunes is Discord's per-message content limit.
const maxMessageRunes = 2000

// Discord posts to a single channel with a bot token.
type Discord struct {
	client    *http.Client
	baseURL   string
	token     string
	channelID string
}

// NewDiscord creates a Discord notifier. An empty baseURL uses the public API.
func NewDiscord(token, channelID, baseURL string) *Discord {
	if baseURL == "" {
		baseURL = DefaultDiscordBaseURL
	}
	return &Discord{
		client:    transport.NewClient(15 * time.Second),
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		channelID: channelID,
	}
}

// PostMessage sends text to the channel.
func (d *Discord) PostMessage(ctx context.Context, text string) error {
	if d.token == "" || d.channelID == "" {
		return errors.New("discord notifier is not configured")
	}
	if r := []rune(text); len(r) > maxMessageRunes {
		text = string(r[:maxMessageRunes-3]) + "..."
	}

	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("encode discord message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, d.channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("discord error %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(raw)), statusErr(resp.StatusCode))
	}
	return nil
}

func statusErr(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return errors.New(http.StatusText(code))
	}
}
