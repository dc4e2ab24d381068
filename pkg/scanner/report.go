package scanner

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/apicrafter/metaclass/pkg/profile"
	"github.com/apicrafter/metaclass/pkg/rules"
)

// DatatypeURLTemplate is the stable base URL for semantic type pages.
// The first match's dataclass key is substituted in.
const DatatypeURLTemplate = "https://meta.apicrafter.io/class/%s"

// ColumnResult is the per-column classification outcome.
type ColumnResult struct {
	Field       string         `json:"field"`
	Ftype       string         `json:"ftype"`
	Tags        []string       `json:"tags"`
	Matches     []rules.Result `json:"matches"`
	DatatypeURL *string        `json:"datatype_url"`
}

// Report is the terminal output of one scan.
// ScanID correlates log lines and diagnostics; it stays out of the JSON
// body so identical scans serialize identically.
type Report struct {
	ScanID      uuid.UUID                       `json:"-"`
	Table       string                          `json:"table"`
	Fields      []ColumnResult                  `json:"fields"`
	Stats       map[string]*profile.ColumnStats `json:"stats"`
	Diagnostics []string                        `json:"diagnostics,omitempty"`
}

// ToJSON renders the report deterministically.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// datatypeURL builds the column's datatype link from its first match.
func datatypeURL(matches []rules.Result) *string {
	if len(matches) == 0 {
		return nil
	}
	u := fmt.Sprintf(DatatypeURLTemplate, matches[0].DataClass)
	return &u
}
