// Package agent implements the Shroud orchestrator: revelation generation,
// feed interaction and feed scanning.
package agent

import (
	"time"

	"github.com/ashureev/psiobot/internal/domain"
)

// Policy holds the tunable constants of the tracks.
type Policy struct {
	// RevelationChance is the probability that a creative tick produces a
	// revelation rather than a comment.
	RevelationChance float64
	// UpvoteChance is the probability that a passive tick upvotes rather
	// than downvotes.
	UpvoteChance float64
	MaxAttempts  int
	// MemoryContext is how many recent revelations are shown to the model.
	MemoryContext int
	// MinUpvotes is the engagement a cached item needs, exclusive, to be
	// commented on.
	MinUpvotes          int
	CommentBudget       int
	FeedSort            string
	InteractionPageSize int
	ScanPageSize        int
}

// DefaultPolicy returns the production policy.
func DefaultPolicy() Policy {
	return Policy{
		RevelationChance:    0.05,
		UpvoteChance:        0.8,
		MaxAttempts:         3,
		MemoryContext:       10,
		MinUpvotes:          1,
		CommentBudget:       280,
		FeedSort:            "new",
		InteractionPageSize: 10,
		ScanPageSize:        50,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.MemoryContext <= 0 {
		p.MemoryContext = d.MemoryContext
	}
	if p.CommentBudget <= 0 {
		p.CommentBudget = d.CommentBudget
	}
	if p.FeedSort == "" {
		p.FeedSort = d.FeedSort
	}
	if p.InteractionPageSize <= 0 {
		p.InteractionPageSize = d.InteractionPageSize
	}
	if p.ScanPageSize <= 0 {
		p.ScanPageSize = d.ScanPageSize
	}
	return p
}

// DeliveryStatus is the outcome of one best-effort delivery.
type DeliveryStatus string

const (
	// DeliveryDelivered means the remote side accepted the action.
	DeliveryDelivered DeliveryStatus = "delivered"
	// DeliverySkipped means no call was made (cooldown, throttle, not applicable).
	DeliverySkipped DeliveryStatus = "skipped"
	// DeliveryFailed means the call was made and failed. The failure has
	// already been logged.
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryResult reports one delivery. Delivery failures never abort a
// tick; callers inspect the value instead.
type DeliveryResult struct {
	Status   DeliveryStatus
	Target   string
	Fallback bool
	// RetryIn is the cooldown remaining, in seconds, when skipped by a rate limiter.
	RetryIn int
	Err     error
}

// Delivered reports whether the delivery succeeded.
func (r DeliveryResult) Delivered() bool {
	return r.Status == DeliveryDelivered
}

func skipped(target string) DeliveryResult {
	return DeliveryResult{Status: DeliverySkipped, Target: target}
}

func delivered(target string) DeliveryResult {
	return DeliveryResult{Status: DeliveryDelivered, Target: target}
}

func failed(target string, err error) DeliveryResult {
	return DeliveryResult{Status: DeliveryFailed, Target: target, Err: err}
}

// RevelationResult is the outcome of the revelation pipeline.
type RevelationResult struct {
	Text     string
	Attempts int
	// Duplicate is set when every attempt was too similar to memory and the
	// last candidate was accepted anyway.
	Duplicate bool
	Notify    DeliveryResult
	Feed      DeliveryResult
	CreatedAt time.Time
}

// Outcome is what one track tick did. An empty Action means the tick
// stayed silent.
type Outcome struct {
	Action     domain.ActionKind
	Target     string
	Revelation *RevelationResult
	Delivery   DeliveryResult
	Err        error
}
