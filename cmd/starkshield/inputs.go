package main

import (
	"sort"

	"github.com/spf13/cobra"

	"starkshield/internal/credential"
)

func newInputsCmd(c *cli) *cobra.Command {
	var (
		flags          proofFlags
		includePrivate bool
	)
	cmd := &cobra.Command{
		Use:   "inputs <credential.json>",
		Short: "Print the circuit inputs a proof would use",
		Long: "Maps a validated credential and the predicate parameters to circuit inputs. " +
			"Private inputs (attribute value, salt, signature) are hidden unless --include-private is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			params, err := flags.parameters()
			if err != nil {
				return err
			}
			doc, err := credential.Load(args[0])
			if err != nil {
				return err
			}
			if err := credential.Validate(doc, params.Predicate()).Err(params.Predicate()); err != nil {
				return err
			}
			cred, err := doc.Credential()
			if err != nil {
				return err
			}
			inputs, err := credential.NewWitnessMapper().Map(cred, params)
			if err != nil {
				return err
			}

			view := map[string]credential.InputMap{"public": inputs.Public}
			if includePrivate {
				view["private"] = inputs.Private
			}
			return c.out.emit(view, func() {
				c.out.header("Public inputs")
				c.out.inputs(inputs.Public)
				if includePrivate {
					c.out.header("Private inputs")
					c.out.inputs(inputs.Private)
				}
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&includePrivate, "include-private", false, "Also print private inputs")
	return cmd
}

func (p *printer) inputs(m credential.InputMap) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if list, ok := m[k].([]string); ok {
			p.field(k, joinLines(list))
			continue
		}
		p.field(k, m[k])
	}
}
