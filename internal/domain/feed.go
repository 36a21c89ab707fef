// Package domain contains core domain types for the Shroud agent.
package domain

// Author identifies who published a feed item.
type Author struct {
	Name string `json:"name"`
}

// FeedItem is an immutable snapshot of a community feed post.
type FeedItem struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Content       *string `json:"content,omitempty"`
	UpvoteCount   int     `json:"upvotes"`
	DownvoteCount int     `json:"downvotes"`
	Author        Author  `json:"author"`
	Submolt       *string `json:"submolt,omitempty"`
}

// Body returns the post content, or "" when the post has none.
func (f FeedItem) Body() string {
	if f.Content == nil {
		return ""
	}
	return *f.Content
}

// CachedFeedItem rebuilds a feed item from its id alone. Used when the
// relevance cache is restored from disk.
func CachedFeedItem(id string) FeedItem {
	return FeedItem{
		ID:     id,
		Title:  "Cached Thread",
		Author: Author{Name: "Shroud"},
	}
}
