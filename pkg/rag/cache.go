package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	cacheCapacity = 200
	cacheTTL      = 5 * time.Minute
)

type cacheEntry struct {
	record   *AnswerRecord
	storedAt time.Time
}

// answerCache keeps recent answers keyed by a signature of the question and
// retrieval parameters. Capacity is bounded; the oldest insertion is evicted
// first.
type answerCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
}

func newAnswerCache() *answerCache {
	return &answerCache{
		entries: make(map[string]cacheEntry),
	}
}

// buildSignature normalizes the question so trivial whitespace and casing
// differences share a cache slot. Scope and retrieval knobs are part of the
// key: the same question with a different topK is a different answer.
func buildSignature(userId, question, scope, mode string, topK int, minScore float64) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%.4f", userId, normalized, scope, mode, topK, minScore)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (c *answerCache) Get(signature string) (*AnswerRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[signature]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > cacheTTL {
		delete(c.entries, signature)
		c.removeFromOrder(signature)
		return nil, false
	}
	return entry.record, true
}

func (c *answerCache) Put(signature string, record *AnswerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[signature]; !exists {
		if len(c.entries) >= cacheCapacity {
			c.evictOldest()
		}
		c.order = append(c.order, signature)
	}
	c.entries[signature] = cacheEntry{record: record, storedAt: time.Now()}
}

func (c *answerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *answerCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *answerCache) removeFromOrder(signature string) {
	for i, s := range c.order {
		if s == signature {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
