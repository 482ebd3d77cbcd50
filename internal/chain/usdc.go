package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// USDC on Base. 6 decimal places; amounts are handled as micro-USDC int64
// everywhere outside this package.
const (
	DefaultUSDCContract = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	USDCDecimals        = 6
)

// keccak256("Transfer(address,address,uint256)")
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

var ErrNoTransfer = errors.New("no matching transfer event in receipt")

type TransferEvent struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// FindTransfer locates the ERC-20 Transfer event emitted by the given token
// contract within a receipt. The recipient comes from the indexed topics, the
// amount from the log data; the client's claim about either is never used.
func FindTransfer(receipt *types.Receipt, token common.Address) (*TransferEvent, error) {
	for _, entry := range receipt.Logs {
		if entry.Address != token {
			continue
		}
		if len(entry.Topics) != 3 || entry.Topics[0] != TransferTopic {
			continue
		}
		return &TransferEvent{
			From:   common.BytesToAddress(entry.Topics[1].Bytes()[12:]),
			To:     common.BytesToAddress(entry.Topics[2].Bytes()[12:]),
			Amount: new(big.Int).SetBytes(entry.Data),
		}, nil
	}
	return nil, ErrNoTransfer
}

// ParseUSDC converts a decimal USDC string ("25", "24.999999") to micro-USDC.
// More than six fractional digits is rejected rather than rounded so a client
// can never undercut the fee by truncation.
func ParseUSDC(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac := value, ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole, frac = value[:idx], value[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > USDCDecimals {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", value, USDCDecimals)
	}
	frac += strings.Repeat("0", USDCDecimals-len(frac))

	combined := whole + frac
	micro, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	if !micro.IsInt64() || micro.Sign() < 0 {
		return 0, fmt.Errorf("amount %q out of range", value)
	}
	return micro.Int64(), nil
}

// FormatUSDC renders micro-USDC as a fixed six-decimal string, e.g. "25.000000".
func FormatUSDC(micro int64) string {
	sign := ""
	if micro < 0 {
		sign = "-"
		micro = -micro
	}
	return fmt.Sprintf("%s%d.%06d", sign, micro/1_000_000, micro%1_000_000)
}

// SameAddress compares two hex addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// ValidAddress reports whether the string is a well-formed 0x address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}
