package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"starkshield/internal/chain"
	"starkshield/internal/history"
	"starkshield/internal/nullifier"
	"starkshield/internal/predicate"
	"starkshield/internal/transport/http/mocks"
	dErrors "starkshield/pkg/domain-errors"
)

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	guard     *mocks.MockNullifierChecker
	refresher *mocks.MockHistoryRefresher
	store     *history.MemoryStore
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.guard = mocks.NewMockNullifierChecker(s.ctrl)
	s.refresher = mocks.NewMockHistoryRefresher(s.ctrl)
	s.store = history.NewMemoryStore()
	h := NewHandler(s.guard, s.store, s.refresher, nil)
	s.router = NewRouter(h, nil, prometheus.NewRegistry(), discardLogger())
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v))
}

func (s *HandlerSuite) TestValidateReportsMissingFields() {
	rec := s.do(http.MethodPost, "/v1/credentials/validate?predicate=age", `{}`)
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Predicate string   `json:"predicate"`
		Valid     bool     `json:"valid"`
		Errors    []string `json:"errors"`
	}
	s.decode(rec, &body)
	s.Equal("age_verify", body.Predicate)
	s.False(body.Valid)
	s.Contains(body.Errors, "Missing field: signature")
}

func (s *HandlerSuite) TestValidateRejectsUnknownPredicate() {
	rec := s.do(http.MethodPost, "/v1/credentials/validate?predicate=kyc", `{}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestValidateRejectsNullDocument() {
	rec := s.do(http.MethodPost, "/v1/credentials/validate?predicate=membership", `null`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestValidateRejectsNonJSONContentType() {
	req := httptest.NewRequest(http.MethodPost, "/v1/credentials/validate?predicate=age", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnsupportedMediaType, rec.Code)
}

func (s *HandlerSuite) TestNullifierUsed() {
	s.guard.EXPECT().CheckReuse(gomock.Any(), "0x2a").Return(nullifier.Outcome{
		Status: nullifier.StatusUsed,
		Record: &chain.VerificationRecord{Exists: true, Nullifier: big.NewInt(42), Timestamp: 1700000000},
	})

	rec := s.do(http.MethodGet, "/v1/nullifiers/0x2a", "")
	s.Equal(http.StatusOK, rec.Code)

	var body map[string]any
	s.decode(rec, &body)
	s.Equal("used", body["status"])
	s.NotNil(body["record"])
}

func (s *HandlerSuite) TestNullifierLookupFailureIsBadGateway() {
	s.guard.EXPECT().CheckReuse(gomock.Any(), "0x2a").Return(nullifier.Outcome{
		Status: nullifier.StatusError,
		Err:    dErrors.New(dErrors.CodeChainQuery, "rpc unavailable"),
	})

	rec := s.do(http.MethodGet, "/v1/nullifiers/0x2a", "")
	s.Equal(http.StatusBadGateway, rec.Code)

	var body map[string]any
	s.decode(rec, &body)
	s.Equal("error", body["status"])
	s.Equal("rpc unavailable", body["error"])
}

func (s *HandlerSuite) TestListHistoryAddsExplorerLinks() {
	s.Require().NoError(s.store.Append(context.Background(), history.Entry{
		TxHash:        "0xABC",
		PredicateType: predicate.Age,
	}))

	rec := s.do(http.MethodGet, "/v1/history", "")
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Entries []map[string]any `json:"entries"`
	}
	s.decode(rec, &body)
	s.Require().Len(body.Entries, 1)
	s.Equal("0xABC", body.Entries[0]["txHash"])
	s.Equal("age_verify", body.Entries[0]["predicateType"])
	s.Equal(history.ExplorerURL("0xABC"), body.Entries[0]["explorerUrl"])
}

func (s *HandlerSuite) TestListHistoryEmpty() {
	rec := s.do(http.MethodGet, "/v1/history", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"entries":[]}`, rec.Body.String())
}

func (s *HandlerSuite) TestRefreshHistory() {
	confirmed := true
	token := history.Token{}
	s.refresher.EXPECT().Begin().Return(token)
	s.refresher.EXPECT().Refresh(gomock.Any(), token).Return([]history.Entry{
		{TxHash: "0x1", PredicateType: predicate.Membership, Confirmed: &confirmed},
	}, nil)

	rec := s.do(http.MethodPost, "/v1/history/refresh", "")
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Entries []map[string]any `json:"entries"`
	}
	s.decode(rec, &body)
	s.Require().Len(body.Entries, 1)
	s.Equal(true, body.Entries[0]["confirmed"])
}

func (s *HandlerSuite) TestRefreshSupersededIsConflict() {
	s.refresher.EXPECT().Begin().Return(history.Token{})
	s.refresher.EXPECT().Refresh(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeStaleRun, "refresh superseded"))

	rec := s.do(http.MethodPost, "/v1/history/refresh", "")
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestRefreshUnexpectedErrorIsHidden() {
	s.refresher.EXPECT().Begin().Return(history.Token{})
	s.refresher.EXPECT().Refresh(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk on fire"))

	rec := s.do(http.MethodPost, "/v1/history/refresh", "")
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotContains(rec.Body.String(), "disk on fire")
}

func (s *HandlerSuite) TestClearHistoryCancelsRefresh() {
	s.Require().NoError(s.store.Append(context.Background(), history.Entry{TxHash: "0x1"}))
	s.refresher.EXPECT().Cancel()

	rec := s.do(http.MethodDelete, "/v1/history", "")
	s.Equal(http.StatusNoContent, rec.Code)

	entries, err := s.store.List(context.Background())
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	rec := s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
}
