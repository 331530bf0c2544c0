package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"starkshield/internal/credential"
	"starkshield/internal/predicate"
)

// proofFlags are the predicate parameters shared by inputs and prove.
type proofFlags struct {
	predicate   string
	threshold   uint64
	allowedSet  []string
	dappContext uint64
	timestamp   int64
}

func (f *proofFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.predicate, "predicate", "p", "age", "Predicate to prove: age or membership")
	cmd.Flags().Uint64Var(&f.threshold, "threshold", 18, "Minimum attribute value for the age predicate")
	cmd.Flags().StringSliceVar(&f.allowedSet, "allowed-set", nil, "Allowed values for the membership predicate (comma separated, max 8)")
	cmd.Flags().Uint64Var(&f.dappContext, "dapp-context", 0, "dApp context id bound into the nullifier")
	cmd.Flags().Int64Var(&f.timestamp, "timestamp", 0, "Unix time to prove against (default now)")
}

func (f proofFlags) predicateType() (predicate.Type, error) {
	return predicate.Parse(f.predicate)
}

func (f proofFlags) parameters() (credential.Parameters, error) {
	p, err := f.predicateType()
	if err != nil {
		return nil, err
	}
	var at *time.Time
	if f.timestamp > 0 {
		at = credential.At(time.Unix(f.timestamp, 0))
	}
	switch p {
	case predicate.Membership:
		set := make([]string, 0, len(f.allowedSet))
		for _, v := range f.allowedSet {
			if v = strings.TrimSpace(v); v != "" {
				set = append(set, v)
			}
		}
		if len(set) == 0 {
			return nil, fmt.Errorf("--allowed-set is required for the membership predicate")
		}
		return credential.MembershipParameters{AllowedSet: set, DappContextID: f.dappContext, Timestamp: at}, nil
	default:
		return credential.AgeParameters{Threshold: f.threshold, DappContextID: f.dappContext, Timestamp: at}, nil
	}
}
