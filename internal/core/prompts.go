package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vampirenirmal/alphaaudio/internal/catalog"
)

// Prompt composition. Each builder receives only what the stage graph lets
// the stage see.

func simulationPrompt(role string, project ProjectContext, upstream map[Stage]string, extra string) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\nDATA: ")
	b.WriteString(project.String())
	if arch, ok := upstream[StageArchitect]; ok {
		b.WriteString("\nARCHITECT: ")
		b.WriteString(arch)
	}
	if strings.TrimSpace(extra) != "" {
		b.WriteString("\n")
		b.WriteString(extra)
	}
	return b.String()
}

func refinePrompt(role, prior, feedback string) string {
	return fmt.Sprintf("%s\nORIGINAL DATA: %s\nUSER FEEDBACK: %s\nRE-CALCULATE:", role, prior, feedback)
}

func synthesisPrompt(role, architect, structural, thermal string) string {
	return fmt.Sprintf("%s\nDATA: ARCH: %s\nSTRUCT: %s\nTHERM: %s", role, architect, structural, thermal)
}

func recommendPrompt(role, requirements, database string) string {
	return fmt.Sprintf("%s\n\nUSER REQS: %s\n\nDATABASE: %s", role, requirements, database)
}

// SerializeCatalog renders the items verbatim, preserving order.
func SerializeCatalog(items []catalog.Item) (string, error) {
	if items == nil {
		items = []catalog.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("serializing catalog: %w", err)
	}
	return string(data), nil
}
