package bridge_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unqnft/marketplace-proxy/internal/module/market/bridge"
)

func TestMintKeyNoCollision(t *testing.T) {
	a := bridge.MintKey{Contract: "0xABC", TokenID: "12"}
	b := bridge.MintKey{Contract: "0xAB", TokenID: "C12"}

	assert.NotEqual(t, a.String(), b.String())
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestMintKeyStable(t *testing.T) {
	k := bridge.MintKey{Contract: "0xdeadbeef", TokenID: "42"}

	assert.Equal(t, "0xdeadbeef:42", k.String())
	assert.Equal(t, k.Hash(), k.Hash())
}

func TestTransferABIPacks(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(bridge.TransferABI))
	require.NoError(t, err)

	key := bridge.MintKey{Contract: "0xdeadbeef", TokenID: "42"}
	data, err := parsed.Pack("transfer",
		big.NewInt(1),
		key.Hash(),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		big.NewInt(42),
	)
	require.NoError(t, err)

	// 4 byte selector + 5 static words
	assert.Len(t, data, 4+5*32)
}
