// Package launcher locates the agent runtime executable and builds the
// command that starts it.
//
// # Discovery
//
// The Discoverer resolves the runtime executable:
//
//	discoverer := launcher.NewDiscoverer(&launcher.Config{
//	    Command: "npx",
//	    Logger:  slog.Default(),
//	})
//	path, err := discoverer.Discover(ctx)
//
// A command containing a path separator is used as is. A bare name is
// searched in the following order:
//  1. System PATH
//  2. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// During discovery the executable's version is probed with --version and
// logged. Probing can be skipped via Config.SkipVersionCheck or the
// AGENTBRIDGE_SKIP_VERSION_CHECK environment variable.
//
// # Launch specs
//
// Resolve combines discovery with the configured arguments, working
// directory and environment into a Spec the supervisor can start:
//
//	spec, err := launcher.Resolve(ctx, log, options)
package launcher
