package history

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"golang.org/x/sync/errgroup"

	"starkshield/internal/chain"
	"starkshield/internal/platform/metrics"
	dErrors "starkshield/pkg/domain-errors"
)

// DefaultConcurrency bounds parallel registry reads during a refresh.
const DefaultConcurrency = 4

// RecordReader fetches registry records.
type RecordReader interface {
	Record(ctx context.Context, nullifier *big.Int) (*chain.VerificationRecord, error)
}

// Token identifies one refresh owner. A token stops being current when a newer
// one is issued or the enricher is cancelled.
type Token struct {
	generation uint64
}

// Enricher confirms history entries against the registry.
type Enricher struct {
	reader      RecordReader
	store       Store
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu         sync.Mutex
	generation uint64
}

type EnricherOption func(*Enricher)

func WithLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) EnricherOption {
	return func(e *Enricher) {
		e.metrics = m
	}
}

func WithConcurrency(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewEnricher(reader RecordReader, store Store, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		reader:      reader,
		store:       store,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Begin issues a token for a new refresh and invalidates earlier ones.
func (e *Enricher) Begin() Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return Token{generation: e.generation}
}

// Cancel invalidates every outstanding token.
func (e *Enricher) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
}

// Current reports whether results for t may still be applied.
func (e *Enricher) Current(t Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return t.generation == e.generation
}

// Enrich returns a copy of entries with on-chain fields filled. A record that
// exists confirms the entry, an absent one marks it unconfirmed, and a failed
// query leaves the entry as it was.
func (e *Enricher) Enrich(ctx context.Context, entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range out {
		g.Go(func() error {
			out[i] = e.enrichOne(ctx, out[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, entry Entry) Entry {
	n, err := chain.ParseNullifier(entry.Nullifier)
	if err != nil {
		e.metrics.IncHistoryEnrichment("failed")
		e.logger.WarnContext(ctx, "history entry has an invalid nullifier", "tx_hash", entry.TxHash, "error", err)
		return entry
	}
	rec, err := e.reader.Record(ctx, n)
	if err != nil || rec == nil {
		e.metrics.IncHistoryEnrichment("failed")
		e.logger.DebugContext(ctx, "history enrichment query failed", "tx_hash", entry.TxHash, "error", err)
		return entry
	}

	if !rec.Exists {
		e.metrics.IncHistoryEnrichment("unconfirmed")
		confirmed := false
		entry.Confirmed = &confirmed
		return entry
	}
	e.metrics.IncHistoryEnrichment("confirmed")
	confirmed := true
	ts := rec.Timestamp
	circuit := rec.CircuitID
	entry.Confirmed = &confirmed
	entry.OnChainTimestamp = &ts
	entry.OnChainCircuitID = &circuit
	return entry
}

// Refresh enriches the stored history and writes it back while t is current.
// Entries appended during the refresh are kept; only entries that were
// enriched are replaced.
func (e *Enricher) Refresh(ctx context.Context, t Token) ([]Entry, error) {
	entries, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	enriched := e.Enrich(ctx, entries)
	byTx := make(map[string]Entry, len(enriched))
	for _, en := range enriched {
		byTx[en.TxHash] = en
	}

	var (
		result []Entry
		stale  bool
	)
	err = e.store.Update(ctx, func(current []Entry) []Entry {
		stale = !e.Current(t)
		if stale {
			return current
		}
		for i, c := range current {
			if en, ok := byTx[c.TxHash]; ok {
				current[i] = en
			}
		}
		result = current
		return current
	})
	if err != nil {
		return nil, fmt.Errorf("save enriched history: %w", err)
	}
	if stale {
		return nil, dErrors.New(dErrors.CodeStaleRun, "history refresh was superseded; results discarded")
	}
	return result, nil
}
