package logparse

import (
	"strings"

	"github.com/tinytelemetry/logdesk/internal/model"
)

// Keywords are matched as lowercase substrings. The Portuguese stems come
// from the backend, which logs in pt-BR.
var (
	errorKeywords   = []string{"erro", "error", "failed"}
	successKeywords = []string{"sucesso", "success", "200"}
)

// Classify derives a log type from free text. Error keywords take
// precedence over success keywords; anything else is info.
func Classify(content string) model.LogType {
	lower := strings.ToLower(content)
	if containsAny(lower, errorKeywords) {
		return model.LogError
	}
	if containsAny(lower, successKeywords) {
		return model.LogSuccess
	}
	return model.LogInfo
}

// ParseLogType normalizes a wire type string. It reports false for values
// outside info/success/error so callers can fall back to Classify.
func ParseLogType(s string) (model.LogType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return model.LogInfo, true
	case "success":
		return model.LogSuccess, true
	case "error":
		return model.LogError, true
	default:
		return model.LogInfo, false
	}
}

// Resolve returns the wire type when it is valid, otherwise Classify(content).
func Resolve(wireType model.LogType, content string) model.LogType {
	if t, ok := ParseLogType(string(wireType)); ok {
		return t
	}
	return Classify(content)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
