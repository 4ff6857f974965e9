// Command quotectl lets sales agents work with ERP quotes from the terminal.
//
// It talks to the ERP over XML-RPC using the connection settings from a YAML
// file and/or ERP_* environment variables.
//
// Usage:
//
//	quotectl [--config erp.yaml] [--debug] <command>
//
// Commands:
//
//	quotes list|get|create|update|export       Browse and edit quotes.
//	quotes lines|add-line|remove-line          Work with quote lines.
//	clients list                               List customer companies.
//	connection test|status|diagnose            Check the ERP connection.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dongwonkwak/erpquote/internal/client"
	"github.com/dongwonkwak/erpquote/internal/config"
	"github.com/dongwonkwak/erpquote/internal/diagnostics"
	"github.com/dongwonkwak/erpquote/internal/quotes"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	debug      bool
	agent      string
}

func (g *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// env holds the collaborators built for one command invocation.
type env struct {
	cfg    config.Config
	erp    *client.Client
	quotes *quotes.Service
}

func newEnv(cfg config.Config) *env {
	logger := log.New(os.Stderr, "quotectl ", log.LstdFlags)
	erp := client.NewClient(cfg, nil, logger)
	return &env{cfg: cfg, erp: erp, quotes: quotes.NewService(erp, cfg)}
}

func (e *env) diagnostics() *diagnostics.Runner {
	return diagnostics.NewRunner(e.cfg, e.erp, nil)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Browse, create and edit ERP sales quotes",
		Long: `quotectl connects to the ERP XML-RPC API and provides commands to list,
create and edit sales quotes, list customers and diagnose the connection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("ERP_CONFIG"), "Path to the YAML connection settings")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "Log every ERP call to stderr")
	root.PersistentFlags().StringVar(&g.agent, "agent", os.Getenv("ERP_AGENT"), "Sales agent name the quotes belong to")

	root.AddCommand(newQuotesCmd(g), newClientsCmd(g), newConnectionCmd(g))
	return root
}

// withEnv adapts a run function to cobra, loading the configuration first.
func withEnv(g *globalFlags, run func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := g.load()
		if err != nil {
			return err
		}
		return run(cmd.Context(), cmd, newEnv(cfg), args)
	}
}
