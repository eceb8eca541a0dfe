package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role names used as template keys.
const (
	RoleArchitect   = "architect"
	RoleStructural  = "structural"
	RoleThermal     = "thermal"
	RoleCore        = "core"
	RoleRecommender = "recommender"
)

// DefaultTemplates returns the built-in role prompts. Recommender prompts
// for specific categories are keyed "recommender_<category>".
func DefaultTemplates() map[string]string {
	return map[string]string{
		RoleArchitect:  "You are the AUDIO ARCHITECT. Design enclosure based on inputs. Output specs list.",
		RoleStructural: "You are the STRUCTURAL ANALYST. Predict damage based on power/tolerance.",
		RoleThermal:    "You are the THERMAL PHYSICIST. Predict coil meltdown and voltage issues.",
		RoleCore:       "You are ALPHAAUDIO CORE. Synthesize reports into a GO/NO-GO verdict.",
		RoleRecommender: `You are the GEAR LAB ASSISTANT.
Task: Pick the BEST subwoofers from the provided DATABASE based on user needs.
Input: User Preferences + Database List.
Output: The top 3 choices, explaining WHY they fit the goal (e.g. 'The Zv6 is better for 20Hz wind').`,
		RecommenderKey(Amplifiers): `You are the GEAR LAB ASSISTANT.
Task: Pick the BEST amplifiers from the provided DATABASE for the user's subwoofers and goal.
Input: User Preferences + Database List.
Output: The top 3 choices, explaining WHY they fit (power at the final impedance, class, headroom).`,
		RecommenderKey(Batteries): `You are the GEAR LAB ASSISTANT.
Task: Pick the BEST batteries from the provided DATABASE to support the user's power level.
Input: User Preferences + Database List.
Output: The top 3 choices, explaining WHY they fit (chemistry, capacity, voltage stability).`,
		RecommenderKey(Alternators): `You are the GEAR LAB ASSISTANT.
Task: Pick the BEST alternators from the provided DATABASE for the user's vehicle and power level.
Input: User Preferences + Database List.
Output: The top 3 choices, explaining WHY they fit, including wiring notes (big 3, gauge).`,
		RecommenderKey(HeadUnits): `You are the GEAR LAB ASSISTANT.
Task: Pick the BEST head units from the provided DATABASE based on user needs.
Input: User Preferences + Database List.
Output: The top 3 choices, explaining WHY they fit (pre-out voltage, sub control, DSP).`,
		RecommenderKey(Processors): `You are the GEAR LAB ASSISTANT.
Task: Pick the BEST processors from the provided DATABASE based on user needs.
Input: User Preferences + Database List.
Output: The top 3 choices, explaining WHY they fit (channels, crossover and EQ features).`,
	}
}

// RecommenderKey is the template key for a category's recommender.
func RecommenderKey(cat Category) string {
	if cat == Subwoofers {
		return RoleRecommender
	}
	return RoleRecommender + "_" + string(cat)
}

// LoadTemplates reads role prompts from a YAML or JSON mapping and merges
// them over the defaults. Empty values are ignored. A missing or invalid
// file leaves the defaults in place and is logged as a warning.
func LoadTemplates(path string, logger *slog.Logger) map[string]string {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog")

	templates := DefaultTemplates()
	if path == "" {
		return templates
	}

	overrides, err := readTemplates(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("prompt template file missing, using built-in prompts", "path", path)
		} else {
			logger.Warn("prompt template file invalid, using built-in prompts", "path", path, "error", err)
		}
		return templates
	}

	applied := 0
	for role, text := range overrides {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" || strings.TrimSpace(text) == "" {
			continue
		}
		templates[role] = strings.TrimSpace(text)
		applied++
	}
	logger.Info("prompt templates loaded", "path", path, "overrides", applied)
	return templates
}

func readTemplates(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]string
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		err = json.Unmarshal(data, &out)
	} else {
		err = yaml.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return out, nil
}
