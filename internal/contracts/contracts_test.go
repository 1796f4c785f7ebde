package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestEventID(t *testing.T) {
	tests := []struct {
		contractType string
		name         string
		signature    string
	}{
		{config.ContractTypeToken, "Transfer", "Transfer(address,address,uint256)"},
		{config.ContractTypeToken, "Lock", "Lock(address,address,uint256,string)"},
		{config.ContractTypeToken, "Unlock", "Unlock(address,address,address,uint256,string)"},
		{config.ContractTypeToken, "ApplyForTransfer", "ApplyForTransfer(uint256,address,address,uint256,string)"},
		{config.ContractTypeToken, "ApproveTransfer", "ApproveTransfer(uint256,address,address,string)"},
		{config.ContractTypeToken, "CancelTransfer", "CancelTransfer(uint256,address,address,string)"},
		{config.ContractTypeExchange, "NewOrder", "NewOrder(address,uint256,address,bool,uint256,uint256,address)"},
		{config.ContractTypeExchange, "CancelOrder", "CancelOrder(address,uint256,address,bool,uint256,uint256,address)"},
		{config.ContractTypeExchange, "Agree", "Agree(address,uint256,uint256,address,address,uint256,uint256,address)"},
		{config.ContractTypeExchange, "SettlementOK", "SettlementOK(address,uint256,uint256,address,address,uint256,uint256,address)"},
		{config.ContractTypeExchange, "SettlementNG", "SettlementNG(address,uint256,uint256,address,address,uint256,uint256,address)"},
		{config.ContractTypeTokenList, "Register", "Register(address,string,address)"},
	}

	for _, tt := range tests {
		t.Run(tt.contractType+"/"+tt.name, func(t *testing.T) {
			id, ok, err := EventID(tt.contractType, tt.name)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, crypto.Keccak256Hash([]byte(tt.signature)), id)
		})
	}
}

func TestEvent_Missing(t *testing.T) {
	_, ok, err := Event(config.ContractTypeTokenList, "Transfer")
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = Event("bond", "Transfer")
	require.ErrorContains(t, err, "unknown contract type")
}

func TestEventNames(t *testing.T) {
	names, err := EventNames(config.ContractTypeExchange)
	require.NoError(t, err)
	require.Equal(t, []string{"Agree", "CancelOrder", "NewOrder", "SettlementNG", "SettlementOK"}, names)
}

func TestIsKnownTemplate(t *testing.T) {
	require.True(t, IsKnownTemplate("ShareToken"))
	require.True(t, IsKnownTemplate("CouponToken"))
	require.False(t, IsKnownTemplate("shareToken"))
	require.False(t, IsKnownTemplate(""))
}
