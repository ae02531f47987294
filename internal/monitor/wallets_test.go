package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// curveAddress returns a base58 address that is a valid curve point.
// Derived from the generator so the test needs no fixture data.
func curveAddress(scalarByte byte) string {
	s, err := edwards25519.NewScalar().SetBytesWithClamping(append([]byte{0, scalarByte}, make([]byte, 30)...))
	if err != nil {
		panic(err)
	}
	p := new(edwards25519.Point).ScalarBaseMult(s)
	return base58.Encode(p.Bytes())
}

// offCurveAddress returns a 32-byte base58 address that fails point
// decompression, the same shape a PDA has.
func offCurveAddress(t *testing.T) string {
	t.Helper()
	b := make([]byte, 32)
	for i := 0; i < 256; i++ {
		b[0] = byte(i)
		if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
			return base58.Encode(b)
		}
	}
	t.Fatal("no off-curve encoding found")
	return ""
}

func TestParseWallets_BareList(t *testing.T) {
	a, b := curveAddress(1), curveAddress(2)
	data, _ := json.Marshal([]string{a, b})

	got, err := ParseWallets(data)
	if err != nil {
		t.Fatalf("ParseWallets: %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("got %v, want [%s %s]", got, a, b)
	}
}

func TestParseWallets_ObjectList(t *testing.T) {
	a := curveAddress(3)
	data := []byte(fmt.Sprintf(`[{"address": %q, "label": "whale"}]`, a))

	got, err := ParseWallets(data)
	if err != nil {
		t.Fatalf("ParseWallets: %v", err)
	}
	if len(got) != 1 || got[0] != a {
		t.Errorf("got %v, want [%s]", got, a)
	}
}

func TestParseWallets_WrappedList(t *testing.T) {
	a := curveAddress(4)
	data := []byte(fmt.Sprintf(`{"wallets": [%q]}`, a))

	got, err := ParseWallets(data)
	if err != nil {
		t.Fatalf("ParseWallets: %v", err)
	}
	if len(got) != 1 || got[0] != a {
		t.Errorf("got %v, want [%s]", got, a)
	}
}

func TestParseWallets_DropsInvalidAndDuplicates(t *testing.T) {
	a := curveAddress(5)
	data, _ := json.Marshal([]string{
		a,
		a,                 // duplicate
		"not-base58-0OIl", // illegal alphabet
		"abc",             // too short
		offCurveAddress(t),
	})

	got, err := ParseWallets(data)
	if err != nil {
		t.Fatalf("ParseWallets: %v", err)
	}
	if len(got) != 1 || got[0] != a {
		t.Errorf("got %v, want only %s", got, a)
	}
}

func TestParseWallets_EmptyIsError(t *testing.T) {
	for _, data := range []string{`[]`, `{"wallets": []}`, `["tooshort"]`} {
		if _, err := ParseWallets([]byte(data)); !errors.Is(err, ErrNoWallets) {
			t.Errorf("ParseWallets(%s) = %v, want ErrNoWallets", data, err)
		}
	}
}

func TestLoadWallets_File(t *testing.T) {
	a := curveAddress(6)
	path := filepath.Join(t.TempDir(), "wallets.json")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(`[%q]`, a)), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadWallets(path)
	if err != nil {
		t.Fatalf("LoadWallets: %v", err)
	}
	if len(got) != 1 || got[0] != a {
		t.Errorf("got %v, want [%s]", got, a)
	}
}

func TestLoadWallets_MissingFile(t *testing.T) {
	if _, err := LoadWallets(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
