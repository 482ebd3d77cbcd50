package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20TransferABI = `[{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

// Gas ceiling for a plain ERC-20 transfer; USDC transfers land around 65k.
const transferGasLimit = 80_000

// Wallet submits a USDC transfer to a recipient and returns the transaction
// hash. Submission is fire-and-forget: confirmation happens separately via
// receipt verification.
type Wallet interface {
	Address() common.Address
	Transfer(ctx context.Context, to common.Address, amountMicro int64) (common.Hash, error)
}

// SigningWallet signs ERC-20 transfer calls with a locally held key and
// broadcasts them through the RPC client.
type SigningWallet struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	token   common.Address
	chainID *big.Int
	erc20   abi.ABI
}

func NewSigningWallet(
	client *ethclient.Client,
	hexKey string,
	token common.Address,
	chainID *big.Int,
) (*SigningWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &SigningWallet{
		client:  client,
		key:     key,
		token:   token,
		chainID: chainID,
		erc20:   parsed,
	}, nil
}

func (w *SigningWallet) Address() common.Address {
	return crypto.PubkeyToAddress(w.key.PublicKey)
}

func (w *SigningWallet) Transfer(
	ctx context.Context,
	to common.Address,
	amountMicro int64,
) (common.Hash, error) {
	if amountMicro <= 0 {
		return common.Hash{}, fmt.Errorf("transfer amount must be positive")
	}

	data, err := w.erc20.Pack("transfer", to, big.NewInt(amountMicro))
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack transfer call: %w", err)
	}

	from := w.Address()
	nonce, err := w.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, w.token, big.NewInt(0), transferGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transfer: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast transfer: %w", err)
	}
	return signed.Hash(), nil
}
