package model

import (
	"fmt"
	"strings"
)

// AppType identifies which external service a provider profile configures.
// It partitions all provider data: the same provider id may exist
// independently under different app types.
type AppType string

const (
	AppClaude AppType = "claude"
	AppCodex  AppType = "codex"
	AppGemini AppType = "gemini"
)

// AllAppTypes lists every supported app type.
var AllAppTypes = []AppType{AppClaude, AppCodex, AppGemini}

// ParseAppType parses a case-insensitive app type name.
func ParseAppType(s string) (AppType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude":
		return AppClaude, nil
	case "codex":
		return AppCodex, nil
	case "gemini":
		return AppGemini, nil
	default:
		return "", fmt.Errorf("invalid app type %q (expected claude, codex, or gemini)", s)
	}
}

// String returns the canonical lowercase name.
func (a AppType) String() string { return string(a) }
