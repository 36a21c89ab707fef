package domain

import "time"

// ActionKind names an externally observable action of the agent.
type ActionKind string

const (
	ActionRevelation ActionKind = "revelation"
	ActionFeedPost   ActionKind = "feed_post"
	ActionUpvote     ActionKind = "upvote"
	ActionDownvote   ActionKind = "downvote"
	ActionComment    ActionKind = "comment"
	ActionNotify     ActionKind = "notify"
	ActionAlert      ActionKind = "alert"
)

// Action is one journal entry.
type Action struct {
	ID        string     `json:"id"`
	Kind      ActionKind `json:"kind"`
	Target    string     `json:"target,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	OK        bool       `json:"ok"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewAction builds an action stamped with the current time. A non-nil err
// marks the action as failed.
func NewAction(kind ActionKind, target, detail string, err error) *Action {
	a := &Action{
		Kind:      kind,
		Target:    target,
		Detail:    detail,
		OK:        err == nil,
		CreatedAt: time.Now(),
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}
