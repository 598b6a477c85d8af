// Package masking redacts secret-shaped substrings from captured command
// output before it is written to the Context Window, Issue Tracker, or
// notification sink.
//
// Adapted from the teacher's pkg/masking CompiledPattern regex-compile-
// and-replace idiom (pattern.go); the teacher's MCP-server-scoped pattern
// resolution and its Kubernetes Secret-manifest masker are dropped here —
// this daemon never handles MCP tool results or Kubernetes manifests, so
// neither concern has a caller (see DESIGN.md).
package masking

import "regexp"

// Placeholder is substituted for any text matching a built-in pattern.
const Placeholder = "[REDACTED]"

// pattern pairs a compiled regex with the label used in its placeholder.
type pattern struct {
	name string
	re   *regexp.Regexp
}

// builtinPatterns covers the secret shapes most likely to appear in
// shell command stdout/stderr: cloud credentials, bearer tokens, and
// key=value / URL-embedded passwords.
var builtinPatterns = []pattern{
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"aws_secret_key", regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*\S+`)},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/=-]{10,}`)},
	{"authorization_header", regexp.MustCompile(`(?i)authorization:\s*\S+`)},
	{"generic_api_key", regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*['"]?[a-z0-9._~+/=-]{8,}['"]?`)},
	{"url_userinfo", regexp.MustCompile(`(?i)(https?://)[^/\s:@]+:[^/\s@]+@`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)},
}

// Redact replaces every substring matching a built-in secret pattern
// with Placeholder. Safe to call on empty or non-matching input (it is
// then a no-op, returning the input unchanged).
func Redact(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, p := range builtinPatterns {
		if p.name == "url_userinfo" {
			out = p.re.ReplaceAllString(out, "${1}"+Placeholder+"@")
			continue
		}
		out = p.re.ReplaceAllString(out, Placeholder)
	}
	return out
}
