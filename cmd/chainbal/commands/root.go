package commands

import (
	"encoding/json"
	"io"
	"time"

	"chainbal/internal/application"
	"chainbal/internal/bootstrap"
	"chainbal/internal/config"

	"github.com/spf13/cobra"
)

// localNode stands in for RPC_URL in commands that never contact the node.
const localNode = "http://127.0.0.1:9933"

type globalOptions struct {
	rpcURL  string
	timeout time.Duration
	json    bool

	// settings is resolved once before any subcommand runs
	settings config.Config
	cleanup  []func()
}

func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "chainbal",
		Short:        "Read balances and chain head from a Substrate node",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd, version)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			opts.teardown()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.rpcURL, "rpc", "", "node JSON-RPC endpoint (overrides RPC_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-call timeout (overrides RPC_TIMEOUT)")
	flags.BoolVar(&opts.json, "json", false, "print JSON instead of text")

	root.AddCommand(
		newHeadCommand(opts),
		newBalanceCommand(opts),
		newKeysCommand(opts),
		newEventsCommand(opts),
	)
	return root
}

// setup resolves settings and installs logging on stderr and tracing, so
// trace context carried by events can be restored.
func (o *globalOptions) setup(cmd *cobra.Command, version string) error {
	cfg, err := o.loadConfig(config.EnvMap{"RPC_URL": localNode})
	if err != nil {
		return err
	}
	o.settings = cfg
	o.cleanup = append(o.cleanup,
		bootstrap.ConsoleLogging(cfg, cmd.ErrOrStderr()),
		bootstrap.Tracing(cmd.Context(), cfg, "chainbal-cli", version),
	)
	return nil
}

// teardown flushes tracing before closing the log file.
func (o *globalOptions) teardown() {
	for i := len(o.cleanup) - 1; i >= 0; i-- {
		o.cleanup[i]()
	}
	o.cleanup = nil
}

// loadConfig resolves flags over the environment over fallback.
func (o *globalOptions) loadConfig(fallback config.EnvSource) (config.Config, error) {
	overrides := config.EnvMap{}
	if o.rpcURL != "" {
		overrides["RPC_URL"] = o.rpcURL
	}
	if o.timeout > 0 {
		overrides["RPC_TIMEOUT"] = o.timeout.String()
	}
	return config.Load(config.Layered(overrides, config.FromEnviron(), fallback))
}

func (o *globalOptions) querier() (*application.Querier, error) {
	cfg, err := o.loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return bootstrap.Querier(cfg, nil)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
