package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"starkshield/internal/credential"
	"starkshield/internal/pipeline"
)

type proveReport struct {
	Preview  *pipeline.Preview       `json:"preview"`
	Verified *bool                   `json:"verified_locally,omitempty"`
	Submit   *pipeline.SubmitOutcome `json:"submission,omitempty"`
}

func newProveCmd(c *cli) *cobra.Command {
	var (
		flags  proofFlags
		submit bool
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "prove <credential.json>",
		Short: "Generate a proof, encode its calldata and check the nullifier",
		Long: "Runs the proof lifecycle up to the submission preview. With --submit the proof is sent " +
			"to the registry through the wallet bridge once the nullifier clears a fresh check.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.parameters()
			if err != nil {
				return err
			}
			doc, err := credential.Load(args[0])
			if err != nil {
				return err
			}

			a := newApp(c.cfg, c.logger)
			defer a.close()
			session, orch, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			preview, err := session.Prepare(cmd.Context(), doc, params)
			if err != nil {
				return err
			}
			report := proveReport{Preview: preview}

			if verify {
				ok, err := orch.VerifyProof(cmd.Context())
				if err != nil {
					return err
				}
				report.Verified = &ok
			}

			if submit {
				outcome, err := session.Submit(cmd.Context(), a.wallet())
				if err != nil {
					return err
				}
				report.Submit = outcome
			}

			if err := c.out.emit(report, func() { c.out.preview(report) }); err != nil {
				return err
			}
			if report.Submit != nil && report.Submit.Blocked() {
				return fmt.Errorf("submission blocked: nullifier check returned %s", report.Submit.Nullifier.Status)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit the proof through the wallet bridge")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the proof locally before submitting")
	return cmd
}

func (p *printer) preview(r proveReport) {
	pv := r.Preview
	p.header(fmt.Sprintf("%s proof", pv.Predicate.Label()))
	p.field("run id", pv.RunID)
	p.field("proving time", pv.Proof.ProvingTime)
	p.field("nullifier", pv.PublicOutputs.Nullifier)
	p.field("threshold / set", pv.PublicOutputs.ThresholdOrSetHash())
	p.field("calldata felts", len(pv.Calldata))
	if r.Verified != nil {
		if *r.Verified {
			p.ok("proof verified locally")
		} else {
			p.fail("local verification rejected the proof")
		}
	}
	p.outcome(pv.Nullifier)

	if r.Submit == nil {
		return
	}
	if r.Submit.Blocked() {
		p.outcome(r.Submit.Nullifier)
		return
	}
	p.ok("registered in transaction %s", r.Submit.Result.TxHash)
	if r.Submit.Entry != nil {
		p.field("explorer", r.Submit.Entry.ExplorerURL())
	}
}
