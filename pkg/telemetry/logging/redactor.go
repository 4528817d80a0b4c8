package logging

import (
	"regexp"
	"sort"
	"strings"

	"mercator-hq/loupe/pkg/config"
)

// Redactor redacts PII from log fields, header values and bodies.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Common PII pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternEmail       = "email"
	PatternSSN         = "ssn"
	PatternCreditCard  = "credit_card"
	PatternPassword    = "password"
	PatternBearerToken = "bearer_token"
	PatternBasicAuth   = "basic_auth"
)

// Masked is the replacement for values of sensitive keys.
const Masked = "***"

var defaultPatterns = map[string]struct {
	regex       string
	replacement string
}{
	PatternAPIKey: {
		regex:       `(sk-[a-zA-Z0-9]+|api[-_]?key[-_:]\s*[a-zA-Z0-9]+)`,
		replacement: "sk-***",
	},
	PatternEmail: {
		regex:       `([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`,
		replacement: "[EMAIL]",
	},
	PatternSSN: {
		regex:       `\b\d{3}-\d{2}-\d{4}\b`,
		replacement: "***-**-****",
	},
	PatternCreditCard: {
		regex:       `\b(?:\d[ -]*?){13,16}\b`,
		replacement: "****-****-****-****",
	},
	PatternBearerToken: {
		regex:       `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
		replacement: "Bearer ***",
	},
	PatternBasicAuth: {
		regex:       `Basic\s+[a-zA-Z0-9+/]+=*`,
		replacement: "Basic ***",
	},
	PatternPassword: {
		regex:       `(password|passwd|pwd)[:=]\s*[^\s&"]+`,
		replacement: "$1: ***",
	},
}

// sensitiveKeys are substrings of field or header names whose values are
// masked entirely.
var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey", "api-key",
	"auth", "authorization",
	"cookie", "session",
	"ssn", "credit_card", "creditcard",
	"private_key", "privatekey",
}

// NewRedactor creates a new Redactor with default and custom patterns.
// Invalid custom patterns are skipped; config validation reports them.
func NewRedactor(customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{}

	names := make([]string, 0, len(defaultPatterns))
	for name := range defaultPatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := defaultPatterns[name]
		r.patterns = append(r.patterns, &redactPattern{
			name:        name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}

	return r
}

// PatternCount returns the number of active patterns.
func (r *Redactor) PatternCount() int {
	return len(r.patterns)
}

// RedactString redacts PII from a string value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}

	return redacted
}

// RedactArgs redacts PII from variadic log arguments.
// Args are in the form: key1, value1, key2, value2, ...
func (r *Redactor) RedactArgs(args ...any) []any {
	if r == nil || len(args) == 0 {
		return args
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 1; i < len(redacted); i += 2 {
		if key, ok := redacted[i-1].(string); ok && IsSensitiveKey(key) {
			redacted[i] = Masked
			continue
		}

		if str, ok := redacted[i].(string); ok {
			redacted[i] = r.RedactString(str)
		}
	}

	return redacted
}

// RedactField masks value entirely when name is sensitive and applies the
// string patterns otherwise. It is used for header and cookie values.
func (r *Redactor) RedactField(name, value string) string {
	if r == nil {
		return value
	}
	if IsSensitiveKey(name) {
		if value == "" {
			return ""
		}
		return Masked
	}
	return r.RedactString(value)
}

// IsSensitiveKey reports whether a key name indicates sensitive data.
func IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}

	return false
}
