// Package history keeps the caller-owned log of submitted verifications and
// refreshes it from the registry.
package history

import (
	"strings"
	"time"

	"starkshield/internal/predicate"
	"starkshield/internal/submitter"
)

// ExplorerBaseURL is the block explorer used for transaction links.
const ExplorerBaseURL = "https://sepolia.voyager.online"

// Entry is one submitted verification. The on-chain fields are filled by
// enrichment and stay unset until a query has succeeded.
type Entry struct {
	TxHash           string         `json:"txHash"`
	Nullifier        string         `json:"nullifier"`
	PredicateType    predicate.Type `json:"predicateType"`
	Timestamp        int64          `json:"timestamp"`
	AttributeKey     string         `json:"attributeKey"`
	Threshold        string         `json:"threshold"`
	OnChainTimestamp *uint64        `json:"onChainTimestamp,omitempty"`
	OnChainCircuitID *uint8         `json:"onChainCircuitId,omitempty"`
	Confirmed        *bool          `json:"confirmed,omitempty"`
}

// NewEntry records an accepted submission. Timestamp is in Unix milliseconds.
// For membership proofs Threshold holds the set hash.
func NewEntry(res *submitter.SubmitResult, outputs predicate.PublicOutputs, at time.Time) Entry {
	return Entry{
		TxHash:        res.TxHash,
		Nullifier:     outputs.Nullifier,
		PredicateType: outputs.Predicate,
		Timestamp:     at.UnixMilli(),
		AttributeKey:  outputs.EchoedAttributeKey,
		Threshold:     outputs.ThresholdOrSetHash(),
	}
}

// ExplorerURL links a transaction hash on the explorer.
func ExplorerURL(txHash string) string {
	return ExplorerBaseURL + "/tx/" + normalizeTxHash(txHash)
}

// ExplorerURL links the entry's transaction.
func (e Entry) ExplorerURL() string {
	return ExplorerURL(e.TxHash)
}

func normalizeTxHash(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X") {
		return "0x" + h[2:]
	}
	return "0x" + h
}
