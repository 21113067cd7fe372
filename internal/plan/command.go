package plan

import (
	"strings"
)

// Command is one compiled subprocess invocation.
type Command struct {
	Program string
	Args    []string
	Env     []string // complete environment of the child, KEY=VALUE
	Dir     string
}

// Getenv returns the last value assigned to key in c.Env.
func (c Command) Getenv(key string) string {
	return lookup(c.Env, key)
}

func (c Command) String() string {
	parts := append([]string{c.Program}, c.Args...)
	for i, p := range parts {
		if strings.ContainsAny(p, " \t\"'") {
			parts[i] = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
		}
	}
	return strings.Join(parts, " ")
}

func lookup(env []string, key string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):]
		}
	}
	return ""
}

// setenv replaces every assignment of key and appends the new one.
func setenv(env []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return append(out, prefix+value)
}

// FilterOtelEnv drops OpenTelemetry settings so children do not export into our traces.
func FilterOtelEnv(env []string) []string {
	var filtered []string
	for _, e := range env {
		if strings.HasPrefix(e, "OTEL_") || strings.HasPrefix(e, "OTLP_") {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}
