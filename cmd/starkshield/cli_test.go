package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starkshield/internal/credential"
	"starkshield/internal/history"
	"starkshield/internal/predicate"
	dErrors "starkshield/pkg/domain-errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateReportsViolationsAsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cred.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	out, err := run(t, "--json", "validate", "--predicate", "membership", path)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	var res credential.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "Missing field: subject_id")
}

func TestValidateTextOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cred.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	out, err := run(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "credential is not valid for")
	assert.Contains(t, out, "Missing field: signature")
}

func TestValidateRejectsUnknownPredicate(t *testing.T) {
	_, err := run(t, "validate", "--predicate", "kyc", "missing.json")
	require.ErrorContains(t, err, "unknown predicate")
}

func TestHistoryMemoryBackendIsEmpty(t *testing.T) {
	t.Setenv("STARKSHIELD_HISTORY_BACKEND", "memory")

	out, err := run(t, "--json", "history")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestHistoryFileBackendListsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	t.Setenv("STARKSHIELD_HISTORY_BACKEND", "file")
	t.Setenv("STARKSHIELD_HISTORY_PATH", path)

	store := history.NewFileStore(path)
	require.NoError(t, store.Append(t.Context(), history.Entry{
		TxHash:        "0x0123456789abcdef0123456789abcdef",
		Nullifier:     "0x2a",
		PredicateType: predicate.Membership,
		Threshold:     "0x99",
	}))

	out, err := run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "0x2a")
	assert.Contains(t, out, "unknown")
	assert.Contains(t, out, history.ExplorerURL("0x0123456789abcdef0123456789abcdef"))

	out, err = run(t, "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "history cleared")

	entries, err := store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryFlagsAreExclusive(t *testing.T) {
	t.Setenv("STARKSHIELD_HISTORY_BACKEND", "memory")
	_, err := run(t, "history", "--refresh", "--clear")
	require.Error(t, err)
}

func TestRecordRejectsMalformedNullifier(t *testing.T) {
	_, err := run(t, "record", "not-a-number")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestProofFlagsAge(t *testing.T) {
	f := proofFlags{predicate: "age", threshold: 21, dappContext: 7, timestamp: 1700000000}
	params, err := f.parameters()
	require.NoError(t, err)

	age, ok := params.(credential.AgeParameters)
	require.True(t, ok)
	assert.Equal(t, uint64(21), age.Threshold)
	assert.Equal(t, uint64(7), age.DappContextID)
	require.NotNil(t, age.Timestamp)
	assert.Equal(t, time.Unix(1700000000, 0), *age.Timestamp)
}

func TestProofFlagsMembership(t *testing.T) {
	f := proofFlags{predicate: "membership_proof", allowedSet: []string{" 0x1", "", "0x2 "}}
	params, err := f.parameters()
	require.NoError(t, err)

	m, ok := params.(credential.MembershipParameters)
	require.True(t, ok)
	assert.Equal(t, []string{"0x1", "0x2"}, m.AllowedSet)
	assert.Nil(t, m.Timestamp)
}

func TestProofFlagsMembershipNeedsSet(t *testing.T) {
	_, err := proofFlags{predicate: "membership"}.parameters()
	require.ErrorContains(t, err, "--allowed-set")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "0xabc", shorten("0xabc"))
	assert.Equal(t, "0x01234567…abcdef", shorten("0x0123456789abcdef0123456789abcdef"))
}
