package sqlstore

import (
	"regexp"
)

const redactedValue = "[REDACTED]"

// sensitiveKey matches metadata keys holding documents (CPF, CNPJ),
// credentials or uploaded file bodies.
var sensitiveKey = regexp.MustCompile(`(?i)cpf|cnpj|password|secret|token|api_?key|content`)

// RedactMetadata returns a copy of metadata with sensitive values masked at
// any depth. It never returns nil.
func RedactMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if sensitiveKey.MatchString(key) {
			out[key] = redactedValue
			continue
		}
		out[key] = redact(value)
	}
	return out
}

func redact(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactMetadata(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redact(item)
		}
		return out
	default:
		return value
	}
}
