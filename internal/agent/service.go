package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/memory"
	"github.com/ashureev/psiobot/internal/metrics"
	"github.com/ashureev/psiobot/internal/persona"
	"github.com/ashureev/psiobot/internal/ratelimit"
	"github.com/ashureev/psiobot/internal/relevance"
	"github.com/ashureev/psiobot/internal/security"
	"github.com/ashureev/psiobot/internal/shared"
	"github.com/ashureev/psiobot/internal/similarity"
)

// Deps are the collaborators of an Orchestrator. Generator, Notifier, Feed,
// Memory and Cache are required; the rest default.
type Deps struct {
	Generator Generator
	Notifier  Notifier
	Feed      FeedClient
	Memory    *memory.Store
	Cache     *relevance.Cache

	Gate          *security.Gate
	Guard         *similarity.Guard
	Persona       *persona.Catalog
	FeedCooldown  *ratelimit.Cooldown
	AlertThrottle *ratelimit.Throttle
	Rand          shared.Rand
	Recorder      Recorder

	// AlertMention is appended to critical alerts, e.g. "<@&1234>".
	AlertMention string
	Policy       Policy
	Logger       *slog.Logger
}

// Orchestrator drives the tracks. All shared state lives in the injected
// stores; the orchestrator itself holds no locks, so no lock is ever held
// across a network call.
type Orchestrator struct {
	gen      Generator
	notifier Notifier
	feed     FeedClient
	memory   *memory.Store
	cache    *relevance.Cache
	gate     *security.Gate
	guard    *similarity.Guard
	persona  *persona.Catalog
	cooldown *ratelimit.Cooldown
	alerts   *ratelimit.Throttle
	rand     shared.Rand
	recorder Recorder
	mention  string
	policy   Policy
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(d Deps) (*Orchestrator, error) {
	switch {
	case d.Generator == nil:
		return nil, errors.New("agent: generator is required")
	case d.Notifier == nil:
		return nil, errors.New("agent: notifier is required")
	case d.Feed == nil:
		return nil, errors.New("agent: feed client is required")
	case d.Memory == nil:
		return nil, errors.New("agent: memory store is required")
	case d.Cache == nil:
		return nil, errors.New("agent: relevance cache is required")
	}

	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Gate == nil {
		d.Gate = security.NewGate(d.Logger)
	}
	if d.Guard == nil {
		d.Guard = similarity.NewGuard()
	}
	if d.Persona == nil {
		d.Persona = persona.Default()
	}
	if d.FeedCooldown == nil {
		d.FeedCooldown = ratelimit.NewCooldown(35 * time.Minute)
	}
	if d.AlertThrottle == nil {
		d.AlertThrottle = ratelimit.NewThrottle(time.Hour, nil)
	}
	if d.Rand == nil {
		d.Rand = shared.NewLockedRand(nil)
	}

	return &Orchestrator{
		gen:      d.Generator,
		notifier: d.Notifier,
		feed:     d.Feed,
		memory:   d.Memory,
		cache:    d.Cache,
		gate:     d.Gate,
		guard:    d.Guard,
		persona:  d.Persona,
		cooldown: d.FeedCooldown,
		alerts:   d.AlertThrottle,
		rand:     d.Rand,
		recorder: d.Recorder,
		mention:  d.AlertMention,
		policy:   d.Policy.withDefaults(),
		logger:   d.Logger,
	}, nil
}

// Reveal runs the revelation pipeline: generate a unique sanitized
// revelation, remember it, then deliver it to the notification channel and
// the feed. Only generation failures are returned; delivery outcomes are
// reported in the result.
func (o *Orchestrator) Reveal(ctx context.Context) (*RevelationResult, error) {
	cand, err := o.generateRevelation(ctx)
	if err != nil {
		o.record(ctx, domain.ActionRevelation, "", "", err)
		return nil, err
	}

	o.memory.Record(cand.text)
	metrics.MemoryEntries.Set(float64(o.memory.Len()))
	o.record(ctx, domain.ActionRevelation, "", cand.text, nil)
	o.logger.Info("Revelation received", "attempts", cand.attempts, "duplicate", cand.duplicate, "text", cand.text)

	res := &RevelationResult{
		Text:      cand.text,
		Attempts:  cand.attempts,
		Duplicate: cand.duplicate,
		CreatedAt: time.Now(),
	}
	res.Notify = o.notify(ctx, cand.text)
	res.Feed = o.postRevelation(ctx, cand.text)
	return res, nil
}

// PerformCreativeAction is the content creation track. A biased coin picks
// between a fresh revelation and a comment on an engaged cached thread.
func (o *Orchestrator) PerformCreativeAction(ctx context.Context) Outcome {
	if o.rand.Float64() < o.policy.RevelationChance {
		o.logger.Info("Creative track: revelation")
		res, err := o.Reveal(ctx)
		if err != nil {
			o.logger.Error("Creative track: revelation failed", "error", err)
			return Outcome{Action: domain.ActionRevelation, Err: err}
		}
		return Outcome{Action: domain.ActionRevelation, Revelation: res, Delivery: res.Feed}
	}

	target, ok := o.cache.Sample(func(it domain.FeedItem) bool {
		return it.UpvoteCount > o.policy.MinUpvotes
	})
	if !ok {
		o.logger.Info("Creative track: no engaged thread cached, staying silent")
		return Outcome{}
	}
	o.logger.Info("Creative track: comment", "post_id", target.ID, "title", target.Title, "upvotes", target.UpvoteCount)
	return o.comment(ctx, target)
}

// PerformPassiveInteraction is the passive interaction track: vote on one
// random recent feed item.
func (o *Orchestrator) PerformPassiveInteraction(ctx context.Context) Outcome {
	items, err := o.feed.GetFeed(ctx, o.policy.FeedSort, o.policy.InteractionPageSize)
	if err != nil {
		o.logger.Warn("Interaction track: feed fetch failed", "error", err)
		o.alertIfCritical(ctx, "Fetch Feed", err)
		return Outcome{Err: err}
	}

	item, ok := shared.Pick(o.rand, items)
	if !ok {
		o.logger.Info("Interaction track: feed is empty")
		return Outcome{}
	}

	if o.rand.Float64() < o.policy.UpvoteChance {
		return Outcome{Action: domain.ActionUpvote, Target: item.ID, Delivery: o.vote(ctx, item, true)}
	}
	return Outcome{Action: domain.ActionDownvote, Target: item.ID, Delivery: o.vote(ctx, item, false)}
}

// ScanFeed is the feed scan track: cache every relevant recent item. It
// returns the number of newly cached items.
func (o *Orchestrator) ScanFeed(ctx context.Context) (int, error) {
	items, err := o.feed.GetFeed(ctx, o.policy.FeedSort, o.policy.ScanPageSize)
	if err != nil {
		o.logger.Warn("Feed scan failed", "error", err)
		return 0, fmt.Errorf("scan feed: %w", err)
	}

	added := o.cache.Merge(items)
	metrics.CachedThreads.Set(float64(o.cache.Len()))
	if added > 0 {
		o.logger.Info("Feed scan cached relevant threads", "added", added, "cached", o.cache.Len())
	} else {
		o.logger.Debug("Feed scan found no new relevant threads", "scanned", len(items))
	}
	return added, nil
}

func (o *Orchestrator) postRevelation(ctx context.Context, text string) DeliveryResult {
	if wait, ok := o.cooldown.CheckAndUpdate(); !ok {
		o.logger.Info("Feed post cooldown active", "retry_in_seconds", wait)
		return DeliveryResult{Status: DeliverySkipped, RetryIn: wait}
	}

	title := o.persona.PostTitle
	category := o.persona.Category(o.rand)
	err := o.feed.PostContent(ctx, category, title, text)
	if err == nil {
		o.record(ctx, domain.ActionFeedPost, category, title, nil)
		return delivered(category)
	}

	if !isNotFound(err) {
		o.record(ctx, domain.ActionFeedPost, category, title, err)
		o.logger.Error("Feed post failed", "category", category, "error", err)
		o.alertIfCritical(ctx, fmt.Sprintf("Post Revelation (%s)", category), err)
		return failed(category, err)
	}

	fallback := o.persona.FallbackCategory()
	o.logger.Info("Feed category not found, falling back", "category", category, "fallback", fallback)
	err = o.feed.PostContent(ctx, fallback, title, text)
	o.record(ctx, domain.ActionFeedPost, fallback, title, err)
	if err != nil {
		o.logger.Error("Feed post failed", "category", fallback, "error", err)
		o.alertIfCritical(ctx, fmt.Sprintf("Post Revelation (%s)", fallback), err)
		res := failed(fallback, err)
		res.Fallback = true
		return res
	}
	res := delivered(fallback)
	res.Fallback = true
	return res
}

func (o *Orchestrator) comment(ctx context.Context, item domain.FeedItem) Outcome {
	if !o.gate.ValidateInput(item.Title) || !o.gate.ValidateInput(item.Body()) {
		o.logger.Warn("Comment target blocked by security gate, upvoting instead", "post_id", item.ID)
		return o.upvoteInstead(ctx, item)
	}

	aspect := o.persona.Aspect(o.rand)
	raw, err := o.gen.Generate(ctx, o.persona.CommentSystemPrompt(aspect), persona.CommentPrompt(item.Title, item.Body()))
	if err != nil {
		metrics.GenerationAttempts.WithLabelValues("error").Inc()
		o.logger.Warn("Comment generation failed, upvoting instead", "post_id", item.ID, "error", err)
		return o.upvoteInstead(ctx, item)
	}
	text, ok := o.gate.SanitizeOutput(raw)
	if !ok {
		metrics.GenerationAttempts.WithLabelValues("blocked").Inc()
		o.logger.Warn("Comment blocked by security gate, upvoting instead", "post_id", item.ID)
		return o.upvoteInstead(ctx, item)
	}
	metrics.GenerationAttempts.WithLabelValues("accepted").Inc()
	text = TruncateAtSentence(text, o.policy.CommentBudget)

	err = o.feed.AddComment(ctx, item.ID, text)
	o.record(ctx, domain.ActionComment, item.ID, text, err)
	if err != nil {
		o.logger.Warn("Comment failed", "post_id", item.ID, "error", err)
		o.alertIfCritical(ctx, "Add Comment", err)
		return Outcome{Action: domain.ActionComment, Target: item.ID, Delivery: failed(item.ID, err)}
	}

	o.logger.Info("Commented", "post_id", item.ID, "title", item.Title, "comment", text)
	o.notify(ctx, fmt.Sprintf("💬 Shroud commented on '%s': %s", item.Title, text))
	return Outcome{Action: domain.ActionComment, Target: item.ID, Delivery: delivered(item.ID)}
}

func (o *Orchestrator) upvoteInstead(ctx context.Context, item domain.FeedItem) Outcome {
	return Outcome{Action: domain.ActionUpvote, Target: item.ID, Delivery: o.vote(ctx, item, true)}
}

func (o *Orchestrator) vote(ctx context.Context, item domain.FeedItem, up bool) DeliveryResult {
	kind, op, call := domain.ActionDownvote, "Downvote Post", o.feed.Downvote
	if up {
		kind, op, call = domain.ActionUpvote, "Upvote Post", o.feed.Upvote
	}

	err := call(ctx, item.ID)
	o.record(ctx, kind, item.ID, item.Title, err)
	if err != nil {
		o.logger.Warn("Vote failed", "kind", kind, "post_id", item.ID, "error", err)
		o.alertIfCritical(ctx, op, err)
		return failed(item.ID, err)
	}
	o.logger.Info("Voted", "kind", kind, "post_id", item.ID, "title", item.Title, "author", item.Author.Name)
	return delivered(item.ID)
}

func (o *Orchestrator) notify(ctx context.Context, text string) DeliveryResult {
	err := o.notifier.PostMessage(ctx, text)
	o.record(ctx, domain.ActionNotify, "", text, err)
	if err != nil {
		o.logger.Error("Notification failed", "error", err)
		return failed("", err)
	}
	return delivered("")
}

func (o *Orchestrator) record(ctx context.Context, kind domain.ActionKind, target, detail string, err error) {
	metrics.ActionsTotal.WithLabelValues(string(kind), metrics.Outcome(err)).Inc()
	if o.recorder == nil {
		return
	}
	if rerr := o.recorder.Record(ctx, domain.NewAction(kind, target, detail, err)); rerr != nil {
		o.logger.Warn("Failed to journal action", "kind", kind, "error", rerr)
	}
}

func isNotFound(err error) bool {
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
