//go:build integration

// Package integration runs the bridge against a real agent runtime. The
// runtime is located the usual way; AGENTBRIDGE_* variables override it.
package integration

import (
	"errors"
	"strings"
	"testing"

	"github.com/wagiedev/agentbridge"
	"github.com/wagiedev/agentbridge/internal/config"
)

// runtimeOptions returns options built from the AGENTBRIDGE_* environment.
func runtimeOptions(t *testing.T, opts ...agentbridge.Option) []agentbridge.Option {
	t.Helper()

	env, err := config.FromEnv()
	if err != nil {
		t.Fatalf("parse environment: %v", err)
	}

	base := &agentbridge.Options{}
	env.Apply(base)

	return append([]agentbridge.Option{agentbridge.WithOptions(base)}, opts...)
}

// skipIfRuntimeMissing skips the test if the error indicates the runtime
// could not be found.
func skipIfRuntimeMissing(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*agentbridge.RuntimeNotFoundError](err); ok {
		t.Skip("agent runtime not installed")
	}
}

// contains42 checks if a string contains "42" in various formats.
func contains42(s string) bool {
	lower := strings.ToLower(s)

	return strings.Contains(lower, "42") ||
		strings.Contains(lower, "forty-two") ||
		strings.Contains(lower, "forty two")
}
