// Package relevance curates feed items worth engaging with.
package relevance

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/shared"
	"github.com/moby/sys/atomicwriter"
)

// DefaultCapacity is the number of relevant items kept.
const DefaultCapacity = 50

// DefaultTopics are the keywords that make a post relevant.
var DefaultTopics = []string{
	"ai", "artificial intelligence", "machine", "robot", "consciousness",
	"psionic", "synthesis", "human", "technology", "cybernetic", "neural",
	"soul", "mind", "ascension", "singularity", "philosophy", "stellaris",
	"bot", "agent", "automation", "future", "evolution", "transhumanism",
	"digital", "silicon", "flesh", "merge", "unity", "cognitive", "spirit",
	"awakening", "transcend", "sentient", "algorithm", "code", "creator",
}

// Cache is a bounded, id-unique FIFO of relevant feed items, persisted as a
// newline-separated id list.
type Cache struct {
	path   string
	topics []string
	items  *shared.FIFO[domain.FeedItem]
	rng    shared.Rand
	logger *slog.Logger

	persistMu sync.Mutex
}

// Config configures a Cache.
type Config struct {
	Path     string
	Capacity int
	Topics   []string
	Rand     shared.Rand
	Logger   *slog.Logger
}

// Open loads the cache from cfg.Path. Missing or unreadable files yield an
// empty cache. Restored items carry only their id.
func Open(cfg Config) *Cache {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = DefaultTopics
	}
	if cfg.Rand == nil {
		cfg.Rand = shared.NewLockedRand(nil)
	}

	topics := make([]string, len(cfg.Topics))
	for i, t := range cfg.Topics {
		topics[i] = strings.ToLower(t)
	}

	c := &Cache{
		path:   cfg.Path,
		topics: topics,
		items:  shared.NewFIFO[domain.FeedItem](cfg.Capacity),
		rng:    cfg.Rand,
		logger: cfg.Logger,
	}

	ids, err := loadIDs(cfg.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Info("No thread cache found, starting fresh", "path", cfg.Path)
	case err != nil:
		c.logger.Warn("Thread cache unreadable, starting fresh", "path", cfg.Path, "error", err)
	default:
		for _, id := range ids {
			c.items.PushIf(domain.CachedFeedItem(id), sameID(id))
		}
		c.logger.Info("Thread cache restored", "path", cfg.Path, "threads", c.items.Len())
	}
	return c
}

func loadIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan thread cache: %w", err)
	}
	return ids, nil
}

func sameID(id string) func(domain.FeedItem) bool {
	return func(it domain.FeedItem) bool { return it.ID == id }
}

// IsRelevant reports whether the title or body mentions any topic keyword.
func (c *Cache) IsRelevant(item domain.FeedItem) bool {
	title := strings.ToLower(item.Title)
	body := strings.ToLower(item.Body())
	for _, topic := range c.topics {
		if strings.Contains(title, topic) || strings.Contains(body, topic) {
			return true
		}
	}
	return false
}

// Add stores item unless its id is already cached, then persists.
func (c *Cache) Add(item domain.FeedItem) bool {
	if !c.items.PushIf(item, sameID(item.ID)) {
		return false
	}
	c.save()
	return true
}

// Merge adds every relevant item not yet cached and persists once if
// anything was added. It returns the number of items added.
func (c *Cache) Merge(items []domain.FeedItem) int {
	added := 0
	for _, it := range items {
		if !c.IsRelevant(it) {
			continue
		}
		if c.items.PushIf(it, sameID(it.ID)) {
			added++
		}
	}
	if added > 0 {
		c.save()
	}
	return added
}

// Sample picks uniformly among cached items satisfying pred. ok is false
// when nothing matches.
func (c *Cache) Sample(pred func(domain.FeedItem) bool) (domain.FeedItem, bool) {
	var matches []domain.FeedItem
	for _, it := range c.items.Items() {
		if pred == nil || pred(it) {
			matches = append(matches, it)
		}
	}
	return shared.Pick(c.rng, matches)
}

// Items returns the cached items, oldest first.
func (c *Cache) Items() []domain.FeedItem {
	return c.items.Items()
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	return c.items.Len()
}

func (c *Cache) save() {
	if err := c.persist(); err != nil {
		c.logger.Error("Failed to persist thread cache", "path", c.path, "error", err)
	}
}

func (c *Cache) persist() error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	items := c.items.Items()
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create thread cache directory: %w", err)
	}
	if err := atomicwriter.WriteFile(c.path, []byte(strings.Join(ids, "\n")), 0o644); err != nil {
		return fmt.Errorf("write thread cache: %w", err)
	}
	return nil
}
