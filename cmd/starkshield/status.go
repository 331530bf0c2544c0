package main

import (
	"github.com/spf13/cobra"

	"starkshield/internal/chain"
	"starkshield/internal/nullifier"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <nullifier>",
		Short: "Check whether a nullifier is registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(c.cfg, c.logger)
			defer a.close()

			outcome := a.guard.CheckReuse(cmd.Context(), args[0])
			if err := c.out.emit(outcome, func() { c.out.outcome(outcome) }); err != nil {
				return err
			}
			if outcome.Status == nullifier.StatusError {
				return outcome.Err
			}
			return nil
		},
	}
}

func newRecordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "record <nullifier>",
		Short: "Fetch the registry record of a nullifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := chain.ParseNullifier(args[0])
			if err != nil {
				return err
			}
			a := newApp(c.cfg, c.logger)
			defer a.close()

			rec, err := a.reader.Record(cmd.Context(), n)
			if err != nil {
				return err
			}
			return c.out.emit(rec, func() { c.out.record(rec) })
		},
	}
}

func (p *printer) record(r *chain.VerificationRecord) {
	if !r.Exists {
		p.dim("no record for this nullifier")
		return
	}
	p.header("Verification record")
	p.field("circuit id", r.CircuitID)
	p.field("attribute key", r.AttributeKey)
	p.field("threshold / set", r.ThresholdOrSetHash)
	p.field("timestamp", r.Timestamp)
}
