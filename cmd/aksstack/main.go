package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kanebernetes/aksstack/internal/logging"
	"github.com/kanebernetes/aksstack/internal/terminal"
	"github.com/spf13/cobra"
)

// Environment variables overriding global flags.
const (
	envStack      = "AKSSTACK_STACK"
	envStateURL   = "AKSSTACK_STATE_URL"
	envLogFormat  = "AKSSTACK_LOG_FORMAT"
	envLogLevel   = "AKSSTACK_LOG_LEVEL"
	envPassphrase = "AKSSTACK_CONFIG_PASSPHRASE"
)

const (
	defaultLogDir    = ".aksstack/logs"
	logRetentionDays = 7
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aksstack",
		Short: "Provision the kanebernetes AKS stack",
		Long: "aksstack deploys a fixed AKS topology (network, registry, monitoring, cluster)\n" +
			"as an Azure deployment stack and installs its in-cluster add-ons.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.String(flagStack, envOr(envStack, "dev"), "Stack name (env "+envStack+")")
	pf.String(flagConfig, "", "Stack configuration file (default aksstack.<stack>.yaml)")
	pf.String(flagProject, defaultProject, "Project prefix of configuration keys")
	pf.String(flagStateURL, envOr(envStateURL, defaultStateURL), "State database URL (env "+envStateURL+") (sqlite:/path/to.db)")
	pf.String(flagEnvFile, ".env", "Env file with Azure access settings (ignored when missing)")
	pf.String(flagLogFormat, "human", "Log format (human|text|json) (env "+envLogFormat+")")
	pf.String(flagLogLevel, "info", "Log level (debug|info|warn|error) (env "+envLogLevel+")")
	pf.String(flagLogOutput, logging.OutputStderr, "Log destination: - (stderr), none, auto (file under "+defaultLogDir+") or a path")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		format, _ := c.Flags().GetString(flagLogFormat)
		if env := os.Getenv(envLogFormat); env != "" { // env overrides flag
			format = env
		}
		level, _ := c.Flags().GetString(flagLogLevel)
		if env := os.Getenv(envLogLevel); env != "" {
			level = env
		}
		output, _ := c.Flags().GetString(flagLogOutput)
		lf, err := logging.OpenLogFile(logging.FileOptions{Output: output, Dir: defaultLogDir, RetentionDays: logRetentionDays})
		if err != nil {
			return err
		}
		logFile = lf
		l, err := logging.NewWithWriter(format, logging.ParseLevel(level), lf.Writer())
		if err != nil {
			return err
		}
		terminal.QuietKlog()
		c.SetContext(logging.WithLogger(c.Context(), l))
		return nil
	}

	cmd.AddCommand(newCmdVersion())
	cmd.AddCommand(newCmdConfig())
	cmd.AddCommand(newCmdUp())
	cmd.AddCommand(newCmdPreview())
	cmd.AddCommand(newCmdDestroy())
	cmd.AddCommand(newCmdOutputs())
	cmd.AddCommand(newCmdKubeconfig())
	cmd.AddCommand(newCmdHistory())
	cmd.AddCommand(newCmdUnlock())
	return cmd
}

// logFile is the destination opened by PersistentPreRunE, closed by main.
var logFile *logging.LogFile

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	root := newRootCmd()
	root.SetContext(context.Background())
	executed, err := root.ExecuteC()
	if err != nil {
		ctx := root.Context()
		if executed != nil {
			ctx = executed.Context()
		}
		logging.FromContext(ctx).Errorf(ctx, "Failed: %s", err)
		if logFile != nil && logFile.Path != "" {
			fmt.Fprintf(os.Stderr, "Failed: %s (log: %s)\n", err, logFile.Path)
		}
		closeLogFile()
		os.Exit(1)
	}
	closeLogFile()
}

func closeLogFile() {
	if logFile != nil {
		_ = logFile.Close()
	}
}
