package chain

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestVerifyPersonalSignRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	message := "eduniche sign-in\nfid:12345\naddress:" + address.Hex()
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := VerifyPersonalSign(message, hexutil.Encode(sig), address.Hex())
	if err != nil {
		t.Fatalf("VerifyPersonalSign: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}

	ok, err = VerifyPersonalSign(message, hexutil.Encode(sig), "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("VerifyPersonalSign with wrong address: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail for a different address")
	}
}

func TestVerifyPersonalSignWalletStyleV(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	message := "hello"
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// Browser wallets report V as 27/28.
	sig[64] += 27

	ok, err := VerifyPersonalSign(message, hexutil.Encode(sig), address.Hex())
	if err != nil {
		t.Fatalf("VerifyPersonalSign: %v", err)
	}
	if !ok {
		t.Fatal("expected signature with V=27/28 to verify")
	}
}

func TestVerifyPersonalSignRejectsMalformed(t *testing.T) {
	if _, err := VerifyPersonalSign("msg", "0x1234", "0x1111111111111111111111111111111111111111"); err == nil {
		t.Fatal("expected error for short signature")
	}
	if _, err := VerifyPersonalSign("msg", "not-hex", "0x1111111111111111111111111111111111111111"); err == nil {
		t.Fatal("expected error for non-hex signature")
	}
}
