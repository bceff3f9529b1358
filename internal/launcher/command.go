package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/wagiedev/agentbridge/internal/config"
)

// Spec is a fully resolved launch command for the agent runtime.
type Spec struct {
	// Path is the executable.
	Path string

	// Args are the command line arguments, excluding the executable.
	Args []string

	// Dir is the absolute working directory.
	Dir string

	// Env is the complete environment in KEY=VALUE form.
	Env []string
}

// Resolve discovers the runtime executable and builds its Spec.
// options are expected to have defaults applied.
func Resolve(ctx context.Context, log *slog.Logger, options *config.Options) (Spec, error) {
	cfg := &Config{
		Command:          options.RuntimeCommand,
		SkipVersionCheck: options.SkipVersionCheck,
		Logger:           log,
	}

	if filepath.Base(options.RuntimeCommand) == config.DefaultRuntimeCommand {
		cfg.MinimumVersion = MinimumNpxVersion
	}

	path, err := NewDiscoverer(cfg).Discover(ctx)
	if err != nil {
		return Spec{}, err
	}

	dir, err := resolveDir(options.RuntimeDir)
	if err != nil {
		return Spec{}, err
	}

	return Spec{
		Path: path,
		Args: slices.Clone(options.RuntimeArgs),
		Dir:  dir,
		Env:  BuildEnvironment(options),
	}, nil
}

// resolveDir makes dir absolute against the current working directory.
func resolveDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}

		return wd, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve runtime directory %q: %w", dir, err)
	}

	return abs, nil
}

// BuildEnvironment constructs the environment for the child process: the
// bridge's own environment followed by the configured overrides.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	env = append(env, "AGENTBRIDGE=1")

	keys := make([]string, 0, len(options.Env))
	for key := range options.Env {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, options.Env[key]))
	}

	return env
}
