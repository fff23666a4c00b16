// Package cli implements the prefixcache command-line interface.
//
// Every command works inside one namespace: keys given on the command line
// are prefixed before they reach the backend. Backend and prefix come from
// the environment (see package config), an optional .env file, and the
// --backend and --prefix flags, in increasing order of precedence.
//
// # Commands
//
//   - get, set, delete, exists: single-key access
//   - incr: counter arithmetic
//   - forward: any operation by name, including backend-specific ones
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/khicago/prefixcache"
	"github.com/khicago/prefixcache/config"
)

var (
	version string
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// app holds the flag values and the cache shared by all commands.
type app struct {
	out    io.Writer
	errOut io.Writer

	verbose bool
	jsonLog bool
	prefix  string
	backend string
	envFile string

	cache *config.Cache
}

// Execute runs the CLI with the process's stdout and stderr.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree writing results to out and logs
// to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:               "prefixcache",
		Short:             "Namespaced access to a memcached-style cache",
		Long:              `prefixcache reads and writes a cache backend (memory, memcached or redis) inside a key namespace.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate(fmt.Sprintf("prefixcache %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVar(&a.jsonLog, "json-log", false, "log cache failures as JSON lines")
	flags.StringVarP(&a.prefix, "prefix", "p", "", "key prefix (overrides PREFIXCACHE_PREFIX)")
	flags.StringVarP(&a.backend, "backend", "b", "", "memory, memcached or redis (overrides PREFIXCACHE_BACKEND)")
	flags.StringVar(&a.envFile, "env-file", "", "load variables from this .env file first")

	root.AddCommand(a.newGetCmd())
	root.AddCommand(a.newSetCmd())
	root.AddCommand(a.newDeleteCmd())
	root.AddCommand(a.newExistsCmd())
	root.AddCommand(a.newIncrCmd())
	root.AddCommand(a.newForwardCmd())

	return root
}

// setup configures logging and opens the cache before any command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	level := charmlog.InfoLevel
	if a.verbose {
		level = charmlog.DebugLevel
	}
	logger := newLogger(a.errOut, level)
	ctx := withLogger(cmd.Context(), logger)
	cmd.SetContext(ctx)

	var files []string
	if a.envFile != "" {
		files = append(files, a.envFile)
	}
	cfg, err := config.LoadFile(files...)
	if err != nil {
		return err
	}
	root := cmd.Root().PersistentFlags()
	if root.Changed("prefix") {
		cfg.Prefix = a.prefix
	}
	if root.Changed("backend") {
		cfg.Backend = a.backend
	}

	cache, err := config.Open(ctx, cfg,
		prefixcache.WithLogger(proxyLogger(a.errOut, a.jsonLog, a.verbose, logger)))
	if err != nil {
		return err
	}
	a.cache = cache

	logger.Debug("cache ready", "backend", cfg.Backend, "prefix", cfg.Prefix)
	return nil
}

// run wraps a command body; the cache is closed once it returns.
func (a *app) run(fn func(ctx context.Context, cache *config.Cache, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		return fn(cmd.Context(), a.cache, args)
	}
}

func (a *app) close() error {
	if a.cache == nil {
		return nil
	}
	err := a.cache.Close()
	a.cache = nil
	return err
}
