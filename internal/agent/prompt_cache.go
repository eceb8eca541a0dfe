package agent

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type cachedPrompt struct {
	content string
	modTime time.Time
	size    int64
}

// PromptCache caches prompt files. Prompt files are user-editable, so an
// entry is reloaded when the file's modification time or size changes.
type PromptCache struct {
	mu  sync.RWMutex
	raw map[string]cachedPrompt
}

// NewPromptCache creates a new prompt cache
func NewPromptCache() *PromptCache {
	return &PromptCache{
		raw: make(map[string]cachedPrompt),
	}
}

// LoadPrompt loads a prompt from cache, rereading the file if it changed.
func (pc *PromptCache) LoadPrompt(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}

	pc.mu.RLock()
	entry, ok := pc.raw[path]
	pc.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.content, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}

	pc.mu.Lock()
	pc.raw[path] = cachedPrompt{
		content: string(content),
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	pc.mu.Unlock()

	return string(content), nil
}

// Preload loads multiple prompts into cache
func (pc *PromptCache) Preload(paths []string) error {
	for _, path := range paths {
		if _, err := pc.LoadPrompt(path); err != nil {
			return fmt.Errorf("preloading %s: %w", path, err)
		}
	}
	return nil
}

// Clear removes all cached prompts
func (pc *PromptCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.raw = make(map[string]cachedPrompt)
}

// Len returns the number of cached prompts.
func (pc *PromptCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.raw)
}
