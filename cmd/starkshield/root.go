package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"starkshield/internal/platform/config"
	"starkshield/internal/platform/logger"
)

// cli carries the state shared by every subcommand once the persistent
// pre-run has loaded configuration.
type cli struct {
	jsonOutput bool
	noColor    bool
	envFile    string

	cfg    config.Config
	logger *slog.Logger
	out    *printer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "starkshield",
		Short: "Generate zero-knowledge credential proofs and register them on Starknet",
		Long: "StarkShield validates a signed credential, proves an age or membership predicate over it " +
			"with the Noir toolchain, encodes the proof for the on-chain verifier and submits it to the " +
			"Starknet verification registry.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "Load environment variables from this file (default .env)")

	root.AddCommand(
		newValidateCmd(c),
		newInputsCmd(c),
		newProveCmd(c),
		newStatusCmd(c),
		newRecordCmd(c),
		newHistoryCmd(c),
		newServeCmd(c),
	)
	return root
}

func (c *cli) load(stdout, stderr io.Writer) error {
	if c.noColor {
		color.NoColor = true
	}
	var files []string
	if c.envFile != "" {
		files = append(files, c.envFile)
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	c.cfg = cfg
	c.logger = logger.NewWithWriter(stderr, cfg.Log.Level, cfg.Log.Format)
	c.out = newPrinter(stdout, c.jsonOutput)
	return nil
}
