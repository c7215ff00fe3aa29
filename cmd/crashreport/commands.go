package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memdiag/crashreport/internal/config"
	"github.com/memdiag/crashreport/internal/report"
	"github.com/memdiag/crashreport/internal/reporter"
)

type rootOptions struct {
	configPath string
	envFile    string
	cli        config.CLIOverrides
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "crashreport",
		Short:         "Assemble and deliver crash reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file (default: search standard locations)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with CR_* overrides")
	root.PersistentFlags().StringVar(&opts.cli.URL, "url", "", "report server URL")
	root.PersistentFlags().StringVar(&opts.cli.Token, "token", "", "report server token")

	root.AddCommand(newReportCmd(opts), newFlushCmd(opts), newVersionCmd())
	return root
}

// setup loads and validates configuration, then wires the reporter.
func (o *rootOptions) setup() (*config.Config, *zap.Logger, *reporter.Components, error) {
	cfg, err := config.LoadLayered(o.cli, o.configPath, o.envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := initLogger(cfg)
	components, err := reporter.FromConfig(cfg, version, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, components, nil
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		message   string
		oom       bool
		stackFile string
		custom    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Collect a crash report and deliver it",
		Long: `Collect every configured report field for the described crash, print the
report as JSON, and send it to the server (or keep it in the local store when
no server is configured).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, components, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			crash, err := buildCrashContext(message, oom, stackFile, custom)
			if err != nil {
				return err
			}

			data := components.Reporter.Report(cmd.Context(), crash)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
	cmd.Flags().StringVar(&message, "error", "", "message of the triggering error")
	cmd.Flags().BoolVar(&oom, "oom", false, "mark the crash as an out-of-memory condition")
	cmd.Flags().StringVar(&stackFile, "stack-file", "", "file holding the crash stack trace")
	cmd.Flags().StringToStringVar(&custom, "custom", nil, "custom data as key=value pairs")
	return cmd
}

// buildCrashContext turns command-line flags into a crash context.
func buildCrashContext(message string, oom bool, stackFile string, custom map[string]string) (*report.CrashContext, error) {
	var crashErr error
	switch {
	case oom && message != "":
		crashErr = fmt.Errorf("%s: %w", message, report.ErrOutOfMemory)
	case oom:
		crashErr = report.ErrOutOfMemory
	case message != "":
		crashErr = errors.New(message)
	}

	var stack []byte
	if stackFile != "" {
		var err error
		stack, err = os.ReadFile(stackFile)
		if err != nil {
			return nil, fmt.Errorf("reading stack file: %w", err)
		}
	}

	crash := report.NewCrashContext(crashErr, stack)
	for k, v := range custom {
		crash.Custom[k] = v
	}
	return crash, nil
}

func newFlushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Send reports kept in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, components, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if components.Sender == nil {
				return errors.New("no server configured; set server.url, CR_SERVER_URL or --url")
			}
			components.Sender.FlushStore(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d report(s) still stored\n", components.Store.Count())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crashreport %s\n", version)
		},
	}
}
