package events

import (
	"testing"

	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" settlementok ")
	require.NoError(t, err)
	require.Equal(t, KindSettlementOK, kind)

	_, err = ParseKind("Mint")
	require.ErrorContains(t, err, "unknown event kind")
}

func TestKindsFor(t *testing.T) {
	require.Equal(t, []Kind{KindRegister}, KindsFor(config.ContractTypeTokenList))
	require.Len(t, KindsFor(config.ContractTypeToken), 6)
	require.Len(t, KindsFor(config.ContractTypeExchange), 5)
	require.Empty(t, KindsFor("bond"))

	// callers may not alter the table
	kinds := KindsFor(config.ContractTypeTokenList)
	kinds[0] = KindTransfer
	require.Equal(t, []Kind{KindRegister}, KindsFor(config.ContractTypeTokenList))
}

func TestKind_ContractType(t *testing.T) {
	for _, kind := range AllKinds() {
		require.Contains(t, KindsFor(kind.ContractType()), kind)
	}
	require.Empty(t, Kind("Mint").ContractType())
}

func TestCoupledKinds(t *testing.T) {
	require.Equal(t, []Kind{KindLock, KindUnlock}, CoupledKinds(KindUnlock))
	require.Equal(t, []Kind{KindAgree}, CoupledKinds(KindAgree))
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t)

	require.Len(t, r.Kinds(), len(AllKinds()))
	for _, kind := range AllKinds() {
		h, ok := r.Handler(kind)
		require.True(t, ok, kind)
		require.Equal(t, kind, h.Kind())
	}

	_, ok := r.Handler("Mint")
	require.False(t, ok)
}
