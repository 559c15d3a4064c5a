package logger

import (
	"io"
	"regexp"
)

const redactedMark = "[REDACTED]"

// redactRule replaces the value group of a match and keeps its key group.
type redactRule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor masks credentials in log output
type Redactor struct {
	rules []redactRule
}

// keyed builds a rule for patterns of the form (key)(value).
func keyed(pattern string) redactRule {
	return redactRule{re: regexp.MustCompile(pattern), repl: "${1}" + redactedMark}
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactRule{
			// Bridge bearer tokens
			keyed(`(Bearer\s+)[a-zA-Z0-9._-]+`),

			// Query string keys of downloader endpoints
			keyed(`(?i)(api_?key=)[^&\s"]+`),
			keyed(`(access_token=)[^&\s"]+`),

			// Media decryption keys
			keyed(`("mediaKey"\s*:\s*")[^"]+`),

			keyed(`(?i)(password["\s:=]+)[^\s"]+`),
			keyed(`(?i)(secret["\s:=]+)[^\s"]+`),
			keyed(`(?i)(token["\s:=]+)[a-zA-Z0-9._-]{16,}`),
		},
	}
}

// AddPattern masks every match of pattern entirely.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactRule{re: re, repl: redactedMark})
	return nil
}

// Redact masks every match in s.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	return s
}

// Wrap returns a writer that redacts each write before passing it on.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) so a shorter redacted line is not seen as a short
// write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.writer, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
