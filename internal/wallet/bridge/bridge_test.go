package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"starkshield/internal/chain/rpc"
	"starkshield/internal/wallet"
	dErrors "starkshield/pkg/domain-errors"
)

type stubNode struct {
	chainID  string
	waitErr  error
	waited   string
	interval time.Duration
}

func (n *stubNode) ChainID(context.Context) (string, error) {
	return n.chainID, nil
}

func (n *stubNode) WaitForTransaction(_ context.Context, hash string, interval time.Duration) (*rpc.Receipt, error) {
	n.waited, n.interval = hash, interval
	if n.waitErr != nil {
		return nil, n.waitErr
	}
	return &rpc.Receipt{TransactionHash: hash, FinalityStatus: "ACCEPTED_ON_L2"}, nil
}

type bridgeRequest struct {
	ID     any               `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type BridgeSuite struct {
	suite.Suite
	mu      sync.Mutex
	last    bridgeRequest
	respond func(req bridgeRequest) map[string]any
	server  *httptest.Server
	node    *stubNode
	wallet  *Wallet
}

func TestBridgeSuite(t *testing.T) {
	suite.Run(t, new(BridgeSuite))
}

func (s *BridgeSuite) SetupTest() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bridgeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.mu.Lock()
		s.last = req
		respond := s.respond
		s.mu.Unlock()

		resp := respond(req)
		resp["jsonrpc"] = "2.0"
		resp["id"] = req.ID
		_ = json.NewEncoder(w).Encode(resp)
	}))
	s.node = &stubNode{chainID: "0x534e5f5345504f4c4941"}
	s.wallet = New(s.server.URL, s.node, WithPollInterval(time.Millisecond))
}

func (s *BridgeSuite) TearDownTest() {
	s.server.Close()
}

func (s *BridgeSuite) setResponder(fn func(req bridgeRequest) map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond = fn
}

func (s *BridgeSuite) lastRequest() bridgeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *BridgeSuite) TestRequestChainID() {
	s.setResponder(func(bridgeRequest) map[string]any {
		return map[string]any{"result": "SN_SEPOLIA"}
	})
	id, err := s.wallet.RequestChainID(context.Background())
	s.Require().NoError(err)
	s.Equal("SN_SEPOLIA", id)
	s.Equal(MethodRequestChainID, s.lastRequest().Method)
}

func (s *BridgeSuite) TestRequestChainIDUnsupported() {
	s.setResponder(func(bridgeRequest) map[string]any {
		return map[string]any{"error": map[string]any{"code": -32601, "message": "Method not found"}}
	})
	id, err := s.wallet.RequestChainID(context.Background())
	s.Require().NoError(err)
	s.Empty(id)
}

func (s *BridgeSuite) TestRequestChainIDFailure() {
	s.setResponder(func(bridgeRequest) map[string]any {
		return map[string]any{"error": map[string]any{"code": 113, "message": "wallet locked"}}
	})
	_, err := s.wallet.RequestChainID(context.Background())
	s.Require().Error(err)
}

func (s *BridgeSuite) TestChainIDComesFromNode() {
	id, err := s.wallet.ChainID(context.Background())
	s.Require().NoError(err)
	s.Equal("0x534e5f5345504f4c4941", id)
}

func (s *BridgeSuite) TestExecute() {
	s.setResponder(func(bridgeRequest) map[string]any {
		return map[string]any{"result": map[string]any{"transaction_hash": "0xbeef"}}
	})
	calls := []wallet.Call{{ContractAddress: "0xreg", Entrypoint: "verify_and_register", Calldata: []string{"0", "0x1", "0x5"}}}

	hash, err := s.wallet.Execute(context.Background(), calls)
	s.Require().NoError(err)
	s.Equal("0xbeef", hash)

	req := s.lastRequest()
	s.Equal(MethodAddInvoke, req.Method)
	s.Require().Len(req.Params, 1)
	s.JSONEq(`{"calls":[{"contract_address":"0xreg","entry_point":"verify_and_register","calldata":["0","0x1","0x5"]}]}`, string(req.Params[0]))
}

func (s *BridgeSuite) TestExecuteRejected() {
	s.setResponder(func(bridgeRequest) map[string]any {
		return map[string]any{"error": map[string]any{"code": 113, "message": "User rejected request"}}
	})
	_, err := s.wallet.Execute(context.Background(), []wallet.Call{{ContractAddress: "0x1", Entrypoint: "x"}})
	s.Require().Error(err)
	s.Contains(err.Error(), "User rejected request")
}

func (s *BridgeSuite) TestExecuteWithoutHash() {
	s.setResponder(func(bridgeRequest) map[string]any {
		return map[string]any{"result": map[string]any{}}
	})
	_, err := s.wallet.Execute(context.Background(), []wallet.Call{{ContractAddress: "0x1", Entrypoint: "x"}})
	s.True(dErrors.HasCode(err, dErrors.CodeDecoding))

	_, err = s.wallet.Execute(context.Background(), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *BridgeSuite) TestWaitForTransactionUsesNode() {
	s.Require().NoError(s.wallet.WaitForTransaction(context.Background(), "0xbeef"))
	s.Equal("0xbeef", s.node.waited)
	s.Equal(time.Millisecond, s.node.interval)

	s.node.waitErr = errors.New("reverted")
	s.Error(s.wallet.WaitForTransaction(context.Background(), "0xbeef"))
}
