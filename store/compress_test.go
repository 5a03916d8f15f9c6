package store

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeBlockSmallPayloadStored(t *testing.T) {
	data := []byte("tiny")
	block := EncodeBlock(data)
	if BlockKind(block[0]) != BlockStored {
		t.Fatalf("small payload should be stored verbatim, got kind %d", block[0])
	}
	decoded, err := DecodeBlock(block)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("decoded = %q, want %q", decoded, data)
	}
}

func TestEncodeDecodeBlockCompressible(t *testing.T) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))
	block := EncodeBlock(data)
	if BlockKind(block[0]) != BlockS2 {
		t.Fatalf("highly repetitive payload should compress, got kind %d", block[0])
	}
	decoded, err := DecodeBlock(block)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("decoded payload does not match original")
	}
}

func TestEncodeDecodeBlockIncompressible(t *testing.T) {
	// Random-looking, non-repetitive data above the compression threshold
	// that s2 cannot shrink; EncodeBlock should fall back to BlockStored.
	data := []byte("ab1Qz9Xk3Tn7Lp0Rm2Wv8Ys5Hd4Jc6Ef1Bi0Ou3Ay7Gt2Nq9Zx6Cv4Bn8Mj1Kl3Hg5Fd7")
	block := EncodeBlock(data)
	decoded, err := DecodeBlock(block)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("decoded payload does not match original")
	}
}

func TestDecodeBlockRejectsEmpty(t *testing.T) {
	if _, err := DecodeBlock(nil); err == nil {
		t.Fatal("expected error decoding empty block")
	}
}

func TestDecodeBlockRejectsUnknownKind(t *testing.T) {
	buf := []byte{0xff, 0x00}
	if _, err := DecodeBlock(buf); err == nil {
		t.Fatal("expected error for unknown block kind")
	}
}
