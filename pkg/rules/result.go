package rules

// Result kinds beyond the rule types themselves.
const (
	ResultField     = "field"
	ResultData      = "data"
	ResultFieldtype = "fieldtype" // profiler intrinsic (bool/date/datetime)
	ResultDate      = "date"      // date-pattern fallback
	ResultLLM       = "llm"
)

// Result is a single classification hit for a column.
type Result struct {
	RuleID     string  `json:"ruleid,omitempty"`
	DataClass  string  `json:"dataclass"`
	Confidence float64 `json:"confidence"`
	RuleType   string  `json:"ruletype"`
	Format     string  `json:"format,omitempty"`
	PIIKey     string  `json:"piikey,omitempty"`
}

// Intrinsic builds the profiler-driven fieldtype result emitted for
// boolean, date and datetime columns.
func Intrinsic(dataclass string) Result {
	return Result{
		DataClass:  dataclass,
		Confidence: 100,
		RuleType:   ResultFieldtype,
	}
}
