package agent

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// Roles resolves the instruction text for each role. Lookup order: a
// <role>.txt override in the prompts directory, then the loaded template
// bundle. Override files are reread when edited.
type Roles struct {
	dir       string
	templates map[string]string
	cache     *PromptCache
	logger    *slog.Logger
}

// NewRoles creates a resolver. dir may be empty to disable override files.
func NewRoles(dir string, templates map[string]string, cache *PromptCache) *Roles {
	if cache == nil {
		cache = NewPromptCache()
	}
	copied := make(map[string]string, len(templates))
	for role, text := range templates {
		copied[strings.ToLower(role)] = text
	}
	return &Roles{
		dir:       dir,
		templates: copied,
		cache:     cache,
		logger:    slog.Default().With("component", "roles"),
	}
}

// WithLogger sets a custom logger
func (r *Roles) WithLogger(logger *slog.Logger) *Roles {
	r.logger = logger.With("component", "roles")
	return r
}

// RolePrompt returns the prompt for role, or "" when nothing is configured.
func (r *Roles) RolePrompt(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))

	if path := r.overridePath(role); path != "" {
		content, err := r.cache.LoadPrompt(path)
		switch {
		case err == nil && strings.TrimSpace(content) != "":
			return strings.TrimSpace(content)
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			r.logger.Warn("prompt override unreadable, using template",
				"role", role,
				"path", path,
				"error", err)
		}
	}

	return r.templates[role]
}

func (r *Roles) overridePath(role string) string {
	if r.dir == "" || role == "" {
		return ""
	}
	return filepath.Join(r.dir, role+".txt")
}
