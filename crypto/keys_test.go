package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

func TestDecodeAddressChecksum(t *testing.T) {
	const cusd = "0x765DE816845861e75A25fCA122bb6898B8B1282a"
	addr, err := DecodeAddress(cusd)
	if err != nil {
		t.Fatalf("decode checksummed: %v", err)
	}
	if addr.Hex() != cusd {
		t.Fatalf("unexpected hex %s", addr.Hex())
	}
	if _, err := DecodeAddress(strings.ToLower(cusd)); err != nil {
		t.Fatalf("decode lower: %v", err)
	}
	broken := "0x765de816845861e75A25fCA122bb6898B8B1282a"
	if _, err := DecodeAddress(broken); err == nil {
		t.Fatalf("expected checksum failure")
	}
	if _, err := DecodeAddress("0x1234"); err == nil {
		t.Fatalf("expected length failure")
	}
}

func TestPrivateKeyHexRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	decoded, err := PrivateKeyFromHex(key.Hex())
	if err != nil {
		t.Fatalf("from hex: %v", err)
	}
	if decoded.PubKey().Address() != key.PubKey().Address() {
		t.Fatalf("address mismatch")
	}
}

func useLightScrypt(t *testing.T) {
	t.Helper()
	n, p := ScryptN, ScryptP
	ScryptN, ScryptP = keystore.LightScryptN, keystore.LightScryptP
	t.Cleanup(func() { ScryptN, ScryptP = n, p })
}

func TestKeystoreDefaultsToStandardScrypt(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "owner.json")
	if err := SaveToKeystore(path, key, "hunter2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var file struct {
		Crypto struct {
			KDFParams struct {
				N int `json:"n"`
				P int `json:"p"`
			} `json:"kdfparams"`
		} `json:"crypto"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("decode keystore: %v", err)
	}
	if file.Crypto.KDFParams.N != keystore.StandardScryptN || file.Crypto.KDFParams.P != keystore.StandardScryptP {
		t.Fatalf("unexpected scrypt params %+v", file.Crypto.KDFParams)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("keystore must be private: %v %v", info, err)
	}
}

func TestKeystoreSaveLoad(t *testing.T) {
	useLightScrypt(t)
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "owner.json")
	if err := SaveToKeystore(path, key, "hunter2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "hunter2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey().Address() != key.PubKey().Address() {
		t.Fatalf("address mismatch after load")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}
