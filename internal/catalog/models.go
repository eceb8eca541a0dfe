package catalog

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// DefaultModels is the candidate list used when no model file is usable.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"}

// LoadModelList reads a JSON array of model identifiers in priority order.
// Blank and duplicate entries are dropped. A missing, invalid or empty file
// yields DefaultModels.
func LoadModelList(path string, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog")

	if path == "" {
		return append([]string(nil), DefaultModels...)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("model list unreadable, using defaults", "path", path, "error", err)
		return append([]string(nil), DefaultModels...)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("model list invalid, using defaults", "path", path, "error", err)
		return append([]string(nil), DefaultModels...)
	}

	models := MergeModels(raw)
	if len(models) == 0 {
		logger.Warn("model list empty, using defaults", "path", path)
		return append([]string(nil), DefaultModels...)
	}
	return models
}

// MergeModels concatenates lists keeping first occurrence order.
func MergeModels(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, m := range list {
			m = strings.TrimSpace(m)
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
