package wallet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"starkshield/internal/wallet"
	"starkshield/internal/wallet/mocks"
	dErrors "starkshield/pkg/domain-errors"
)

type NetworkGuardSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	wallet *mocks.MockWallet
	guard  *wallet.NetworkGuard
}

func TestNetworkGuardSuite(t *testing.T) {
	suite.Run(t, new(NetworkGuardSuite))
}

func (s *NetworkGuardSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.wallet = mocks.NewMockWallet(s.ctrl)
	s.guard = wallet.NewNetworkGuard(wallet.Sepolia())
}

func (s *NetworkGuardSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *NetworkGuardSuite) TestMatchingNetworkPasses() {
	s.wallet.EXPECT().RequestChainID(gomock.Any()).Return("SN_SEPOLIA", nil)
	s.wallet.EXPECT().ChainID(gomock.Any()).Return("0x534e5f5345504f4c4941", nil)

	s.NoError(s.guard.AssertCorrectNetwork(context.Background(), s.wallet))
}

func (s *NetworkGuardSuite) TestBothEncodingsAccepted() {
	for _, id := range []string{"SN_SEPOLIA", "0x534e5f5345504f4c4941", "0x534E5F5345504F4C4941", "0x00534e5f5345504f4c4941"} {
		s.True(wallet.Sepolia().Matches(id), id)
	}
	for _, id := range []string{"", "SN_MAIN", "0x534e5f4d41494e", "sn_sepolia", "534e5f5345504f4c4941"} {
		s.False(wallet.Sepolia().Matches(id), id)
	}
}

// A wrong extension network aborts before the account is asked and before any
// transaction is built.
func (s *NetworkGuardSuite) TestExtensionMismatchStopsBeforeAccountQuery() {
	s.wallet.EXPECT().RequestChainID(gomock.Any()).Return("0x534e5f4d41494e", nil)
	s.wallet.EXPECT().ChainID(gomock.Any()).Times(0)
	s.wallet.EXPECT().Execute(gomock.Any(), gomock.Any()).Times(0)

	err := s.guard.AssertCorrectNetwork(context.Background(), s.wallet)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNetworkMismatch))

	var merr *wallet.MismatchError
	s.Require().True(errors.As(err, &merr))
	s.Equal(wallet.SourceExtension, merr.Source)
	s.Equal("0x534e5f4d41494e", merr.Observed)
	s.Contains(err.Error(), "0x534e5f4d41494e")
	s.Contains(err.Error(), "0x534e5f5345504f4c4941")
}

func (s *NetworkGuardSuite) TestAccountMismatch() {
	s.wallet.EXPECT().RequestChainID(gomock.Any()).Return("SN_SEPOLIA", nil)
	s.wallet.EXPECT().ChainID(gomock.Any()).Return("SN_MAIN", nil)

	err := s.guard.AssertCorrectNetwork(context.Background(), s.wallet)
	var merr *wallet.MismatchError
	s.Require().True(errors.As(err, &merr))
	s.Equal(wallet.SourceAccount, merr.Source)
	s.Contains(err.Error(), "account is connected to SN_MAIN")
}

func (s *NetworkGuardSuite) TestUnreportedExtensionFallsBackToAccount() {
	s.wallet.EXPECT().RequestChainID(gomock.Any()).Return("", nil)
	s.wallet.EXPECT().ChainID(gomock.Any()).Return("SN_SEPOLIA", nil)

	s.NoError(s.guard.AssertCorrectNetwork(context.Background(), s.wallet))
}

func (s *NetworkGuardSuite) TestQueryFailuresFailClosed() {
	s.Run("extension", func() {
		s.wallet.EXPECT().RequestChainID(gomock.Any()).Return("", errors.New("extension locked"))
		err := s.guard.AssertCorrectNetwork(context.Background(), s.wallet)
		s.True(dErrors.HasCode(err, dErrors.CodeNetworkMismatch))
		s.Contains(err.Error(), "extension locked")
	})
	s.Run("account", func() {
		s.wallet.EXPECT().RequestChainID(gomock.Any()).Return("SN_SEPOLIA", nil)
		s.wallet.EXPECT().ChainID(gomock.Any()).Return("", errors.New("rpc down"))
		err := s.guard.AssertCorrectNetwork(context.Background(), s.wallet)
		s.True(dErrors.HasCode(err, dErrors.CodeNetworkMismatch))
	})
}

func (s *NetworkGuardSuite) TestNilWallet() {
	err := s.guard.AssertCorrectNetwork(context.Background(), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
