// Package main is the taskflow binary: the HTTP service plus offline
// commands over the same storage.
package main

// @title taskflow API
// @version 1.0
// @description Workflow state machine and task validation engine.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @schemes http https

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/goclaw/taskflow/config"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/version"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	debug      bool
	appName    string
	storage    string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "taskflow",
		Short: "Workflow state machine and task validation service",
		Long: `taskflow runs configurable status workflows for tasks and scores
tasks against validation rules.

Run "taskflow serve" to start the HTTP API. The validate and workflows
commands work directly against the configured storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (YAML or JSON)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	flags.StringVar(&opts.appName, "app-name", "", "Override app name")
	flags.StringVar(&opts.storage, "storage", "", "Override storage type (memory, badger, redis)")

	cmd.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newWorkflowsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// overrides turns the flags into koanf keys layered over file and env.
func (o *rootOptions) overrides(extra map[string]interface{}) map[string]interface{} {
	overrides := make(map[string]interface{})
	if o.appName != "" {
		overrides["app.name"] = o.appName
	}
	if o.logLevel != "" {
		overrides["log.level"] = o.logLevel
	}
	if o.debug {
		overrides["app.debug"] = true
	}
	if o.storage != "" {
		overrides["storage.type"] = o.storage
	}
	for k, v := range extra {
		overrides[k] = v
	}
	return overrides
}

func (o *rootOptions) load(loader *config.Loader, extra map[string]interface{}) (*config.Config, error) {
	cfg, err := loader.Load(o.configPath, o.overrides(extra))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration:\n%w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug {
		logCfg.Level = logger.DebugLevel
	}
	return logger.New(logCfg)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "taskflow - workflow and task validation engine\n")
			info := version.Get()
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", info.GitCommit)
			fmt.Fprintf(out, "Go Version: %s\n", info.GoVersion)
			if info.Modified {
				fmt.Fprintln(out, "Modified:   true")
			}
		},
	}
}
