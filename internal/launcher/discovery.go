package launcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wagiedev/agentbridge/internal/errors"
)

const (
	// MinimumNpxVersion is the oldest npx that runs local packages through
	// npm exec, which the default launch command relies on.
	MinimumNpxVersion = "7.0.0"

	// VersionCheckTimeout is the timeout for the version probe.
	VersionCheckTimeout = 2 * time.Second
)

var versionPattern = regexp.MustCompile(`v?([0-9]+\.[0-9]+\.[0-9]+)`)

// Config holds configuration for runtime discovery.
type Config struct {
	// Command is the runtime executable, either a bare name or a path.
	Command string

	// MinimumVersion, if set, is compared against the probed version and a
	// warning is logged when the executable is older.
	MinimumVersion string

	// SkipVersionCheck skips the version probe.
	// Can also be controlled via AGENTBRIDGE_SKIP_VERSION_CHECK.
	SkipVersionCheck bool

	// Logger is an optional logger for discovery operations.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the agent runtime executable.
type Discoverer interface {
	// Discover returns the path of the runtime executable.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a Discoverer for cfg.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "launcher"),
	}
}

// Discover locates the executable and probes its version.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering agent runtime", "command", d.cfg.Command)

	path, err := d.find()
	if err != nil {
		d.log.Error("Failed to find agent runtime", "error", err)

		return "", err
	}

	d.log.Debug("Found agent runtime", "path", path)

	d.checkVersion(ctx, path)

	return path, nil
}

func (d *discoverer) find() (string, error) {
	command := d.cfg.Command

	// A path is used as is, without searching.
	if strings.ContainsRune(command, os.PathSeparator) || strings.ContainsRune(command, '/') {
		if _, err := os.Stat(command); err == nil {
			return command, nil
		}

		return "", &errors.RuntimeNotFoundError{Executable: command, SearchedPaths: []string{command}}
	}

	searchedPaths := make([]string, 0, 4)

	if path, err := exec.LookPath(command); err == nil {
		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	commonPaths := []string{
		filepath.Join("/usr/local/bin", command),
		filepath.Join("/usr/bin", command),
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin", command))
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)

		if _, err := os.Stat(path); err == nil {
			d.log.Debug("Found agent runtime at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Agent runtime not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.RuntimeNotFoundError{Executable: command, SearchedPaths: searchedPaths}
}

// checkVersion logs the executable's version. Failures are ignored.
func (d *discoverer) checkVersion(ctx context.Context, path string) {
	if d.cfg.SkipVersionCheck || os.Getenv("AGENTBRIDGE_SKIP_VERSION_CHECK") != "" {
		d.log.Debug("Skipping version check")

		return
	}

	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	//nolint:gosec // G204: the runtime path comes from configuration
	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		d.log.Debug("Version check failed", "error", err)

		return
	}

	match := versionPattern.FindStringSubmatch(strings.TrimSpace(string(output)))
	if match == nil {
		d.log.Debug("Could not parse runtime version", "output", string(output))

		return
	}

	version := match[1]

	if d.cfg.MinimumVersion != "" && compareVersions(version, d.cfg.MinimumVersion) < 0 {
		d.log.Warn("Agent runtime launcher is older than supported",
			"version", version,
			"minimum_required", d.cfg.MinimumVersion,
		)

		return
	}

	d.log.Debug("Version check passed", "version", version)
}

// compareVersions compares two semantic versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func compareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range 3 {
		aNum := 0
		bNum := 0

		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}

		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}

		if aNum < bNum {
			return -1
		}

		if aNum > bNum {
			return 1
		}
	}

	return 0
}
