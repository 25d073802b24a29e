package engine

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// promptEntry is one stored clone prompt.
type promptEntry struct {
	prompt ClonePrompt
	// source is the reference-audio identifier the prompt was built from.
	source    string
	createdAt time.Time
}

// ClonePromptCache is a content-addressed store of reusable voice-clone
// prompts. Entries live for the process lifetime; there is no eviction
// (accepted operational constraint, reference audio prompts are small
// relative to model weights).
type ClonePromptCache struct {
	mu      sync.RWMutex
	entries map[string]promptEntry
}

func NewClonePromptCache() *ClonePromptCache {
	return &ClonePromptCache{entries: make(map[string]promptEntry)}
}

// PromptID derives a deterministic cache key from the reference-audio
// identifier. The hash covers the path string, not the audio bytes: two
// different files behind the same path string collide. Intentional
// simplification; callers needing byte-level addressing pass an explicit id.
func PromptID(refAudioPath string) string {
	sum := md5.Sum([]byte(refAudioPath))
	return hex.EncodeToString(sum[:])[:12]
}

// Put stores prompt under id, overwriting any previous entry with that id.
func (c *ClonePromptCache) Put(id string, prompt ClonePrompt, source string) {
	c.mu.Lock()
	c.entries[id] = promptEntry{prompt: prompt, source: source, createdAt: time.Now()}
	c.mu.Unlock()
}

// Lookup returns the stored prompt for id. A missing id is a hard error,
// never a zero value: prompts have no safe default.
func (c *ClonePromptCache) Lookup(id string) (ClonePrompt, error) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrPromptNotFound(id)
	}
	return e.prompt, nil
}

// IDs returns the stored prompt ids, sorted for stable status output.
func (c *ClonePromptCache) IDs() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.entries))
	for id := range c.entries {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len reports the number of stored prompts.
func (c *ClonePromptCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
