package bridge

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/unqnft/marketplace-proxy/utils/config"
)

// TransferABI is the bridge contract fragment used to relay a mint request.
const TransferABI = `[{"name":"transfer","type":"function","inputs":[{"name":"sourceChainId","type":"uint256"},{"name":"txHash","type":"bytes32"},{"name":"recipient","type":"address"},{"name":"tokenContract","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}]`

// MintKey identifies one mint request by its source contract and token id.
// The two parts are joined with a separator when rendered so distinct pairs
// can never collide ("0xABC"+"12" vs "0xAB"+"C12").
type MintKey struct {
	Contract string
	TokenID  string
}

func (k MintKey) String() string {
	return k.Contract + ":" + k.TokenID
}

// Hash derives the bytes32 the bridge contract expects as the synthetic
// source transaction hash.
func (k MintKey) Hash() common.Hash {
	return crypto.Keccak256Hash([]byte(k.String()))
}

// TransferHandlers receive the transaction lifecycle notifications. Any of
// them may be nil.
type TransferHandlers struct {
	OnHash    func(txHash string)
	OnReceipt func(receipt *ethtypes.Receipt)
	OnError   func(err error)
}

// Client relays a cross-chain mint/transfer request through the bridge
// contract. Transfer returns once the signed transaction is accepted by the
// node; confirmation is reported through the handlers.
type Client interface {
	Transfer(ctx context.Context, sourceTxHash common.Hash, recipient, tokenContract common.Address, tokenID *big.Int, handlers TransferHandlers) error
}

type ethBridge struct {
	client        *ethclient.Client
	key           *ecdsa.PrivateKey
	from          common.Address
	contract      common.Address
	chainID       *big.Int
	sourceChainID *big.Int
	gasLimit      uint64
	abi           abi.ABI
	logger        zerolog.Logger
}

func NewClient(cfg config.Bridge, logger zerolog.Logger) (Client, error) {
	ethClient, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge rpc: %v", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge private key: %v", err)
	}

	parsed, err := abi.JSON(strings.NewReader(TransferABI))
	if err != nil {
		return nil, err
	}

	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read bridge chain id: %v", err)
	}

	return &ethBridge{
		client:        ethClient,
		key:           key,
		from:          crypto.PubkeyToAddress(key.PublicKey),
		contract:      common.HexToAddress(cfg.ContractAddress),
		chainID:       chainID,
		sourceChainID: big.NewInt(cfg.SourceChainID),
		gasLimit:      cfg.GasLimit,
		abi:           parsed,
		logger:        logger.With().Str("component", "bridge").Logger(),
	}, nil
}

func (b *ethBridge) Transfer(ctx context.Context, sourceTxHash common.Hash, recipient, tokenContract common.Address, tokenID *big.Int, handlers TransferHandlers) error {
	nonce, err := b.client.PendingNonceAt(ctx, b.from)
	if err != nil {
		b.notifyError(handlers, err)
		return err
	}

	gasPrice, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		b.notifyError(handlers, err)
		return err
	}

	data, err := b.abi.Pack("transfer", b.sourceChainID, sourceTxHash, recipient, tokenContract, tokenID)
	if err != nil {
		b.notifyError(handlers, err)
		return err
	}

	tx := ethtypes.NewTransaction(nonce, b.contract, big.NewInt(0), b.gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(b.chainID), b.key)
	if err != nil {
		b.notifyError(handlers, err)
		return err
	}

	if err := b.client.SendTransaction(ctx, signed); err != nil {
		b.notifyError(handlers, err)
		return err
	}

	b.logger.Info().Str("tx", signed.Hash().Hex()).Str("source", sourceTxHash.Hex()).Msg("bridge transfer submitted")
	if handlers.OnHash != nil {
		handlers.OnHash(signed.Hash().Hex())
	}

	go b.waitReceipt(signed.Hash(), handlers)

	return nil
}

// waitReceipt polls for the mined receipt. The caller already considers the
// transfer sent; this only feeds the optional handlers.
func (b *ethBridge) waitReceipt(txHash common.Hash, handlers TransferHandlers) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.notifyError(handlers, fmt.Errorf("timed out waiting for receipt of %s", txHash.Hex()))
			return
		case <-ticker.C:
			receipt, err := b.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue
			}

			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				b.notifyError(handlers, fmt.Errorf("bridge transfer %s reverted", txHash.Hex()))
				return
			}

			b.logger.Info().Str("tx", txHash.Hex()).Uint64("block", receipt.BlockNumber.Uint64()).Msg("bridge transfer confirmed")
			if handlers.OnReceipt != nil {
				handlers.OnReceipt(receipt)
			}
			return
		}
	}
}

func (b *ethBridge) notifyError(handlers TransferHandlers, err error) {
	b.logger.Error().Err(err).Msg("bridge transfer failed")
	if handlers.OnError != nil {
		handlers.OnError(err)
	}
}
