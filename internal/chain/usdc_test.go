package chain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func transferLog(token, from, to common.Address, amount *big.Int) *types.Log {
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

func TestFindTransferExtractsRecipientAndAmount(t *testing.T) {
	token := common.HexToAddress(DefaultUSDCContract)
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount := big.NewInt(25_000_000)

	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			// Unrelated log from another contract sharing the Transfer topic.
			transferLog(common.HexToAddress("0x3333333333333333333333333333333333333333"), from, to, big.NewInt(1)),
			transferLog(token, from, to, amount),
		},
	}

	event, err := FindTransfer(receipt, token)
	if err != nil {
		t.Fatalf("FindTransfer: %v", err)
	}
	if event.To != to {
		t.Errorf("expected recipient %s, got %s", to, event.To)
	}
	if event.From != from {
		t.Errorf("expected sender %s, got %s", from, event.From)
	}
	if event.Amount.Cmp(amount) != 0 {
		t.Errorf("expected amount %s, got %s", amount, event.Amount)
	}
}

func TestFindTransferNoMatchingLog(t *testing.T) {
	token := common.HexToAddress(DefaultUSDCContract)
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{
			{Address: token, Topics: []common.Hash{common.HexToHash("0x01")}},
		},
	}

	if _, err := FindTransfer(receipt, token); !errors.Is(err, ErrNoTransfer) {
		t.Fatalf("expected ErrNoTransfer, got %v", err)
	}
}

func TestParseUSDC(t *testing.T) {
	cases := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "25", want: 25_000_000},
		{input: "25.000001", want: 25_000_001},
		{input: "24.999999", want: 24_999_999},
		{input: "0.5", want: 500_000},
		{input: ".5", want: 500_000},
		{input: "0", want: 0},
		{input: "25.0000001", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseUSDC(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseUSDC(%q): expected error, got %d", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseUSDC(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseUSDC(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestFormatUSDC(t *testing.T) {
	if got := FormatUSDC(25_000_000); got != "25.000000" {
		t.Errorf("FormatUSDC(25_000_000) = %q", got)
	}
	if got := FormatUSDC(24_999_999); got != "24.999999" {
		t.Errorf("FormatUSDC(24_999_999) = %q", got)
	}
	if got := FormatUSDC(1); got != "0.000001" {
		t.Errorf("FormatUSDC(1) = %q", got)
	}
}

func TestSameAddressIgnoresCase(t *testing.T) {
	if !SameAddress(DefaultUSDCContract, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913") {
		t.Error("expected checksum and lowercase forms to match")
	}
	if SameAddress(DefaultUSDCContract, "0x1111111111111111111111111111111111111111") {
		t.Error("expected different addresses not to match")
	}
}
