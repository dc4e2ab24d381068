package apperrors

import "errors"

var (
	ErrConfiguration = errors.New("invalid configuration")
	ErrRuleCompile   = errors.New("rule compile failed")
	ErrNoRules       = errors.New("no rules loaded")
	ErrDataSource    = errors.New("data source unavailable")
	ErrRegistryEmpty = errors.New("semantic type registry is empty")
	ErrNotReady      = errors.New("classifier index not built")
)
