package history

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"starkshield/internal/chain"
	"starkshield/internal/platform/metrics"
	"starkshield/internal/predicate"
	"starkshield/internal/submitter"
	dErrors "starkshield/pkg/domain-errors"
)

type fakeReader struct {
	mu      sync.Mutex
	records map[string]*chain.VerificationRecord
	fail    map[string]bool
	onCall  func()
}

func (r *fakeReader) Record(_ context.Context, n *big.Int) (*chain.VerificationRecord, error) {
	if r.onCall != nil {
		r.onCall()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := "0x" + n.Text(16)
	if r.fail[key] {
		return nil, dErrors.New(dErrors.CodeChainQuery, "is_nullifier_used failed: timeout")
	}
	if rec, ok := r.records[key]; ok {
		return rec, nil
	}
	return chain.EmptyRecord(), nil
}

func entry(tx, nullifier string) Entry {
	return Entry{TxHash: tx, Nullifier: nullifier, PredicateType: predicate.Age, Timestamp: 1, AttributeKey: "0x1", Threshold: "0x12"}
}

type EnricherSuite struct {
	suite.Suite
	reader   *fakeReader
	store    *MemoryStore
	metrics  *metrics.Metrics
	enricher *Enricher
}

func TestEnricherSuite(t *testing.T) {
	suite.Run(t, new(EnricherSuite))
}

func (s *EnricherSuite) SetupTest() {
	s.reader = &fakeReader{
		records: map[string]*chain.VerificationRecord{
			"0xa": {Exists: true, Nullifier: big.NewInt(0xa), Timestamp: 1700000123, CircuitID: 1},
		},
		fail: map[string]bool{"0xc": true},
	}
	s.store = NewMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.enricher = NewEnricher(s.reader, s.store, WithMetrics(s.metrics), WithConcurrency(2))
}

func (s *EnricherSuite) TestEnrichOutcomes() {
	in := []Entry{entry("0x1", "0xa"), entry("0x2", "0xb"), entry("0x3", "0xc"), entry("0x4", "garbage")}
	out := s.enricher.Enrich(context.Background(), in)

	s.Require().Len(out, 4)
	s.Require().NotNil(out[0].Confirmed)
	s.True(*out[0].Confirmed)
	s.Equal(uint64(1700000123), *out[0].OnChainTimestamp)
	s.Equal(uint8(1), *out[0].OnChainCircuitID)

	s.Require().NotNil(out[1].Confirmed)
	s.False(*out[1].Confirmed)
	s.Nil(out[1].OnChainTimestamp)

	s.Equal(in[2], out[2])
	s.Equal(in[3], out[3])
	s.Nil(in[0].Confirmed, "input must not be mutated")

	s.Equal(1.0, testutil.ToFloat64(s.metrics.HistoryEnrichments.WithLabelValues("confirmed")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.HistoryEnrichments.WithLabelValues("unconfirmed")))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.HistoryEnrichments.WithLabelValues("failed")))
}

func (s *EnricherSuite) TestRefreshPersists() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, entry("0x1", "0xa")))

	out, err := s.enricher.Refresh(ctx, s.enricher.Begin())
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.True(*out[0].Confirmed)

	stored, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.True(*stored[0].Confirmed)
}

func (s *EnricherSuite) TestRefreshKeepsEntriesAppendedMeanwhile() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, entry("0x1", "0xa")))
	var once sync.Once
	s.reader.onCall = func() {
		once.Do(func() { _ = s.store.Append(ctx, entry("0x9", "0xb")) })
	}

	out, err := s.enricher.Refresh(ctx, s.enricher.Begin())
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal("0x9", out[0].TxHash)
	s.Nil(out[0].Confirmed)
	s.True(*out[1].Confirmed)
}

func (s *EnricherSuite) TestCancelledRefreshIsDiscarded() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, entry("0x1", "0xa")))
	token := s.enricher.Begin()
	s.reader.onCall = s.enricher.Cancel

	_, err := s.enricher.Refresh(ctx, token)
	s.True(dErrors.HasCode(err, dErrors.CodeStaleRun))
	s.False(s.enricher.Current(token))

	stored, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Nil(stored[0].Confirmed)
}

func (s *EnricherSuite) TestNewerTokenSupersedes() {
	first := s.enricher.Begin()
	second := s.enricher.Begin()
	s.False(s.enricher.Current(first))
	s.True(s.enricher.Current(second))
}

func (s *EnricherSuite) TestRefreshEmpty() {
	out, err := s.enricher.Refresh(context.Background(), s.enricher.Begin())
	s.NoError(err)
	s.Empty(out)
}

type StoreSuite struct {
	suite.Suite
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) exercise(store Store) {
	ctx := context.Background()
	list, err := store.List(ctx)
	s.Require().NoError(err)
	s.Empty(list)

	s.Require().NoError(store.Append(ctx, entry("0x1", "0xa")))
	s.Require().NoError(store.Append(ctx, entry("0x2", "0xb")))
	list, err = store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("0x2", list[0].TxHash, "newest first")

	s.Require().NoError(store.Update(ctx, func(entries []Entry) []Entry {
		confirmed := true
		entries[1].Confirmed = &confirmed
		return entries
	}))
	list, err = store.List(ctx)
	s.Require().NoError(err)
	s.True(*list[1].Confirmed)

	s.Require().NoError(store.Clear(ctx))
	list, err = store.List(ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *StoreSuite) TestMemoryStore() {
	s.exercise(NewMemoryStore())
}

func (s *StoreSuite) TestFileStore() {
	path := filepath.Join(s.T().TempDir(), "nested", "history.json")
	s.exercise(NewFileStore(path))
}

func (s *StoreSuite) TestFileStoreFormat() {
	path := filepath.Join(s.T().TempDir(), "history.json")
	store := NewFileStore(path)
	e := entry("0xabc", "0xa")
	ts := uint64(1700000123)
	e.OnChainTimestamp = &ts
	s.Require().NoError(store.Append(context.Background(), e))

	raw, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.JSONEq(`[{"txHash":"0xabc","nullifier":"0xa","predicateType":"age_verify","timestamp":1,
		"attributeKey":"0x1","threshold":"0x12","onChainTimestamp":1700000123}]`, string(raw))
}

func (s *StoreSuite) TestCorruptFileStore() {
	path := filepath.Join(s.T().TempDir(), "history.json")
	s.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileStore(path).List(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeDecoding))
}

func (s *StoreSuite) TestClearMissingFile() {
	s.NoError(NewFileStore(filepath.Join(s.T().TempDir(), "none.json")).Clear(context.Background()))
}

type EntrySuite struct {
	suite.Suite
}

func TestEntrySuite(t *testing.T) {
	suite.Run(t, new(EntrySuite))
}

func (s *EntrySuite) TestNewEntryFromMembershipOutputs() {
	at := time.UnixMilli(1700000000123)
	e := NewEntry(&submitter.SubmitResult{TxHash: "0xfeed"}, predicate.PublicOutputs{
		Predicate:          predicate.Membership,
		Nullifier:          "0xabc",
		EchoedAttributeKey: "0x2",
		SetHash:            "0x5e7",
	}, at)
	s.Equal(Entry{
		TxHash:        "0xfeed",
		Nullifier:     "0xabc",
		PredicateType: predicate.Membership,
		Timestamp:     1700000000123,
		AttributeKey:  "0x2",
		Threshold:     "0x5e7",
	}, e)
}

func (s *EntrySuite) TestExplorerURL() {
	s.Equal("https://sepolia.voyager.online/tx/0xabc", ExplorerURL("0xabc"))
	s.Equal("https://sepolia.voyager.online/tx/0xABC", ExplorerURL(" 0XABC "))
	s.Equal("https://sepolia.voyager.online/tx/0xabc", ExplorerURL("abc"))
	s.Equal("https://sepolia.voyager.online/tx/", ExplorerURL(""))
	s.Equal(ExplorerURL("0x1"), entry("0x1", "0xa").ExplorerURL())
}
