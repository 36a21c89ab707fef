// Package feed is the client for the community feed (Moltbook) REST API.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/transport"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Moltbook API root.
const DefaultBaseURL = "https://www.moltbook.com/api/v1"

var errMissingAPIKey = errors.New("moltbook API key is missing")

// Config configures a Client.
type Config struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	Logger            *slog.Logger
}

// Client calls the feed API. Requests are paced by a token bucket so
// concurrent tracks cannot burst against the API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a feed client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		http:    transport.NewClient(cfg.Timeout, transport.WithLogger(cfg.Logger)),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  cfg.Logger,
	}
}

// APIError is a non-2xx response from the feed API.
type APIError struct {
	Op                string
	StatusCode        int
	Body              string
	RetryAfterMinutes int
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("moltbook %s failed: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += " - " + e.Body
	}
	return msg
}

// Unwrap maps the status code onto the domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	}
	return nil
}

type wirePost struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   *string         `json:"content"`
	Upvotes   int             `json:"upvotes"`
	Downvotes int             `json:"downvotes"`
	Author    domain.Author   `json:"author"`
	Submolt   json.RawMessage `json:"submolt"`
}

func (p wirePost) toDomain() domain.FeedItem {
	return domain.FeedItem{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		UpvoteCount:   p.Upvotes,
		DownvoteCount: p.Downvotes,
		Author:        p.Author,
		Submolt:       submoltName(p.Submolt),
	}
}

// submoltName accepts either "name" or {"name": "..."}.
func submoltName(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return &name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return &obj.Name
	}
	return nil
}

type feedResponse struct {
	Posts []wirePost `json:"posts"`
}

type postResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	RetryAfterMinutes int    `json:"retry_after_minutes"`
	ID                string `json:"id"`
	Post              *struct {
		ID string `json:"id"`
	} `json:"post"`
}

// GetFeed returns up to limit posts in the given sort order.
func (c *Client) GetFeed(ctx context.Context, sort string, limit int) ([]domain.FeedItem, error) {
	q := url.Values{}
	q.Set("sort", sort)
	q.Set("limit", strconv.Itoa(limit))

	var out feedResponse
	if err := c.do(ctx, "get feed", http.MethodGet, "/posts?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	items := make([]domain.FeedItem, 0, len(out.Posts))
	for _, p := range out.Posts {
		items = append(items, p.toDomain())
	}
	return items, nil
}

// PostContent publishes a new post in category.
func (c *Client) PostContent(ctx context.Context, category, title, body string) error {
	req := map[string]string{"submolt": category, "title": title, "content": body}
	var out postResponse
	if err := c.do(ctx, "post", http.MethodPost, "/posts", req, &out); err != nil {
		return err
	}

	id := out.ID
	if id == "" && out.Post != nil {
		id = out.Post.ID
	}
	c.logger.Info("Revelation posted to feed", "post_id", id, "submolt", category)
	return nil
}

// Upvote upvotes a post.
func (c *Client) Upvote(ctx context.Context, id string) error {
	return c.do(ctx, "upvote", http.MethodPost, "/posts/"+url.PathEscape(id)+"/upvote", nil, nil)
}

// Downvote downvotes a post.
func (c *Client) Downvote(ctx context.Context, id string) error {
	return c.do(ctx, "downvote", http.MethodPost, "/posts/"+url.PathEscape(id)+"/downvote", nil, nil)
}

// AddComment comments on a post.
func (c *Client) AddComment(ctx context.Context, id, text string) error {
	req := map[string]string{"content": text}
	return c.do(ctx, "comment", http.MethodPost, "/posts/"+url.PathEscape(id)+"/comments", req, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if c.apiKey == "" {
		return errMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("moltbook %s: %w", op, err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode moltbook %s: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build moltbook %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("moltbook %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read moltbook %s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var pr postResponse
		if json.Unmarshal(raw, &pr) == nil && pr.Error != "" {
			apiErr.Body = pr.Error
			apiErr.RetryAfterMinutes = pr.RetryAfterMinutes
		} else {
			apiErr.Body = strings.TrimSpace(string(raw))
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("Moltbook rate limit", "op", op, "retry_after_minutes", apiErr.RetryAfterMinutes)
		}
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode moltbook %s: %w", op, err)
		}
	}
	return nil
}
