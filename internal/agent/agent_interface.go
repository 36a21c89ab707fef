package agent

import (
	"context"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/feed"
	"github.com/ashureev/psiobot/internal/llm"
	"github.com/ashureev/psiobot/internal/notify"
)

// Generator produces text from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Notifier posts to the operator notification channel.
type Notifier interface {
	PostMessage(ctx context.Context, text string) error
}

// FeedClient is the community feed the agent reads and reacts to.
type FeedClient interface {
	GetFeed(ctx context.Context, sort string, limit int) ([]domain.FeedItem, error)
	PostContent(ctx context.Context, category, title, body string) error
	Upvote(ctx context.Context, id string) error
	Downvote(ctx context.Context, id string) error
	AddComment(ctx context.Context, id, text string) error
}

// Recorder journals actions. Failures are logged by the caller and never
// stop the action itself.
type Recorder interface {
	Record(ctx context.Context, a *domain.Action) error
}

var (
	_ Generator  = llm.Generator(nil)
	_ Notifier   = (*notify.Discord)(nil)
	_ FeedClient = (*feed.Client)(nil)
)
