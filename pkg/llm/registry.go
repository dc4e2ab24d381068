package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/apicrafter/metaclass/pkg/apperrors"
)

// Example is one sample value attached to a registry entry.
type Example struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Entry is one semantic-type record from the registry file.
type Entry struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Doc            string    `json:"doc"`
	Categories     []string  `json:"categories"`
	Countries      []string  `json:"country"`
	Langs          []string  `json:"langs"`
	Examples       []Example `json:"examples"`
	Regexp         string    `json:"regexp,omitempty"`
	Classification string    `json:"classification,omitempty"`
}

// LoadRegistry reads a line-oriented registry file: one JSON entry per line.
// Blank lines are skipped; a malformed line fails the load.
func LoadRegistry(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("registry line %d: %w", lineNo, err)
		}
		if e.ID == "" {
			return nil, fmt.Errorf("registry line %d: missing id", lineNo)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRegistryEmpty, path)
	}
	return entries, nil
}

// Textualize renders an entry into the canonical string that gets embedded.
// Index and query embeddings must come from the same shape of text, so this
// format is part of the index contract.
func (e *Entry) Textualize() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "id: %s\nname: %s\n", e.ID, e.Name)
	if e.Doc != "" {
		fmt.Fprintf(&sb, "description: %s\n", e.Doc)
	}
	if len(e.Categories) > 0 {
		fmt.Fprintf(&sb, "categories: %s\n", strings.Join(e.Categories, ", "))
	}
	if len(e.Countries) > 0 {
		fmt.Fprintf(&sb, "countries: %s\n", strings.Join(e.Countries, ", "))
	}
	if len(e.Langs) > 0 {
		fmt.Fprintf(&sb, "languages: %s\n", strings.Join(e.Langs, ", "))
	}
	if len(e.Examples) > 0 {
		values := make([]string, 0, len(e.Examples))
		for _, ex := range e.Examples {
			values = append(values, ex.Value)
		}
		fmt.Fprintf(&sb, "examples: %s\n", strings.Join(values, ", "))
	}
	if e.Regexp != "" {
		fmt.Fprintf(&sb, "pattern: %s\n", e.Regexp)
	}
	return sb.String()
}

// Metadata normalizes an entry's list fields to comma-separated strings for
// vector-store post-filtering.
func (e *Entry) Metadata() map[string]string {
	return map[string]string{
		"name":       e.Name,
		"doc":        e.Doc,
		"categories": strings.Join(e.Categories, ","),
		"country":    strings.Join(e.Countries, ","),
		"langs":      strings.Join(e.Langs, ","),
	}
}
