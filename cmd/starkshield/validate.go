package main

import (
	"github.com/spf13/cobra"

	"starkshield/internal/credential"
	"starkshield/internal/predicate"
)

func newValidateCmd(c *cli) *cobra.Command {
	var pred string
	cmd := &cobra.Command{
		Use:   "validate <credential.json>",
		Short: "Check a credential against a predicate's requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := predicate.Parse(pred)
			if err != nil {
				return err
			}
			doc, err := credential.Load(args[0])
			if err != nil {
				return err
			}
			res := credential.Validate(doc, p)
			if err := c.out.emit(res, func() { c.out.validation(p, res) }); err != nil {
				return err
			}
			return res.Err(p)
		},
	}
	cmd.Flags().StringVarP(&pred, "predicate", "p", "age", "Predicate to validate for: age or membership")
	return cmd
}

func (p *printer) validation(t predicate.Type, res credential.ValidationResult) {
	if res.Valid {
		p.ok("credential is valid for %s", t.Label())
		return
	}
	p.fail("credential is not valid for %s", t.Label())
	for _, e := range res.Errors {
		p.dim("  - %s", e)
	}
}
