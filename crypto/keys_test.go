package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	addr := NewAddress(AccountPrefix, payload)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AccountPrefix)+"1") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix: %s", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), payload) {
		t.Fatalf("payload mismatch: %x", decoded.Bytes())
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round-tripped address not equal")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatalf("expected error for invalid bech32")
	}
}

func TestNewAddressRequires20Bytes(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for short payload")
		}
	}()
	NewAddress(AccountPrefix, []byte{0x01})
}

func TestAddressZeroAndEqual(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	a := NewAddress(AccountPrefix, make([]byte, 20))
	if a.IsZero() {
		t.Fatalf("populated address should not report IsZero")
	}
	b := NewAddress(AccountPrefix, make([]byte, 20))
	if !a.Equal(b) {
		t.Fatalf("identical addresses should be equal")
	}
}
