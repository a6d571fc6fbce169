package logger

import (
	"io"
	"regexp"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

// secretKeys are config and field names whose values never reach a log line
var secretKeys = []string{"api_key", "apiKey", "api-key", "x-api-key", "token", "secret", "password"}

// redactionRule replaces matches of re with repl, which may reference groups
type redactionRule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor scrubs LLM provider credentials from log output: keyed values in
// JSON config dumps and log fields, secret FOLLOWGPT_* and provider
// environment assignments, bearer tokens, and provider key shapes.
type Redactor struct {
	rules []redactionRule
}

// NewRedactor creates a redactor with the default rules. Each non-empty
// literal in secrets is also scrubbed wherever it appears, so a configured
// API key is caught even in an unexpected shape.
func NewRedactor(secrets ...string) *Redactor {
	keys := strings.Join(quoteAll(secretKeys), "|")

	r := &Redactor{
		rules: []redactionRule{
			// "api_key":"..." in zerolog fields and config dumps, with or
			// without the escaping of a dump embedded in a string field
			{
				re:   regexp.MustCompile(`(\\?"(?i:` + keys + `)\\?"\s*:\s*\\?")(?:[^"\\]|\\[^"])*`),
				repl: "${1}" + redacted,
			},
			// api_key: ... in YAML and key=value text
			{
				re:   regexp.MustCompile(`((?i:` + keys + `)\s*[:=]\s*)[^\s",}]+`),
				repl: "${1}" + redacted,
			},
			// FOLLOWGPT_LLM_API_KEY=..., ANTHROPIC_API_KEY=..., OPENAI_API_KEY=...
			{
				re:   regexp.MustCompile(`\b((?:FOLLOWGPT_[A-Z0-9_]*(?:KEY|TOKEN|SECRET|PASSWORD)|ANTHROPIC_API_KEY|OPENAI_API_KEY)=)(?:"[^"]*"|[^\s"]+)`),
				repl: "${1}" + redacted,
			},
			{
				re:   regexp.MustCompile(`(Bearer\s+)[A-Za-z0-9._~+/-]+=*`),
				repl: "${1}" + redacted,
			},
			// Anthropic and OpenAI key shapes
			{re: regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}`), repl: redacted},
			{re: regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_-]{20,}`), repl: redacted},
		},
	}

	// Longest first so a secret that contains another is scrubbed whole.
	literals := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s = strings.TrimSpace(s); s != "" {
			literals = append(literals, s)
		}
	}
	sort.Slice(literals, func(i, j int) bool { return len(literals[i]) > len(literals[j]) })
	for _, s := range literals {
		r.rules = append(r.rules, redactionRule{re: regexp.MustCompile(regexp.QuoteMeta(s)), repl: redacted})
	}

	return r
}

func quoteAll(keys []string) []string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return quoted
}

// Redact returns s with every secret replaced by [REDACTED]
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	return s
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success so callers don't see a short write
// when redaction changes the line length.
func (w *redactingWriter) Write(p []byte) (n int, err error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
