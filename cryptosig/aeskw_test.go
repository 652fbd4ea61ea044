package cryptosig

import (
	"bytes"
	"testing"
)

func TestAESKW_Roundtrip(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	keyIn := bytes.Repeat([]byte{0x22}, 32)
	wrapped, err := AESKeyWrapRFC3394(kek, keyIn)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := AESKeyUnwrapRFC3394(kek, wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, keyIn) {
		t.Fatalf("unwrap mismatch")
	}
}

func TestAESKW_WrongKEKFailsIntegrityCheck(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	otherKEK := bytes.Repeat([]byte{0x33}, 32)
	keyIn := bytes.Repeat([]byte{0x22}, 32)
	wrapped, err := AESKeyWrapRFC3394(kek, keyIn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AESKeyUnwrapRFC3394(otherKEK, wrapped); err == nil {
		t.Fatalf("expected integrity check failure with wrong KEK")
	}
}
