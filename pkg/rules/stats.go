package rules

// SetStats summarizes a compiled rule set.
type SetStats struct {
	Total      int            `json:"total"`
	FieldRules int            `json:"field_rules"`
	DataRules  int            `json:"data_rules"`
	ByContext  map[string]int `json:"by_context"`
	ByLang     map[string]int `json:"by_lang"`
	ByCountry  map[string]int `json:"by_country"`
	ByMatch    map[string]int `json:"by_match"`
}

// Stats counts rules along the filtering dimensions.
func (s *Set) Stats() SetStats {
	st := SetStats{
		Total:      s.Len(),
		FieldRules: len(s.FieldRules),
		DataRules:  len(s.DataRules),
		ByContext:  make(map[string]int, len(s.byContext)),
		ByLang:     make(map[string]int, len(s.byLang)),
		ByCountry:  make(map[string]int, len(s.byCountry)),
		ByMatch:    make(map[string]int),
	}
	for k, v := range s.byContext {
		st.ByContext[k] = v
	}
	for k, v := range s.byLang {
		st.ByLang[k] = v
	}
	for k, v := range s.byCountry {
		st.ByCountry[k] = v
	}
	for _, r := range s.FieldRules {
		st.ByMatch[string(r.Match)]++
	}
	for _, r := range s.DataRules {
		st.ByMatch[string(r.Match)]++
	}
	return st
}
