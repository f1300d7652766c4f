package crypto

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

var (
	errNilKey       = errors.New("crypto: nil private key")
	errEmptyPath    = errors.New("crypto: empty keystore path")
	errKeystoreMiss = errors.New("crypto: failed to create keystore file")
)

// Scrypt cost used when writing keystore files. Tests lower these to the
// light parameters.
var (
	ScryptN = keystore.StandardScryptN
	ScryptP = keystore.StandardScryptP
)

// SaveToKeystore encrypts key into a v3 keystore file at path. The parent
// directory is created with 0700 permissions when missing and the file is
// replaced atomically by rename.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errNilKey
	}
	if path == "" {
		return errEmptyPath
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	staging, err := os.MkdirTemp(dir, ".pettrace-key-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	ks := keystore.NewKeyStore(staging, ScryptN, ScryptP)
	if _, err := ks.ImportECDSA(key.PrivateKey, passphrase); err != nil {
		return err
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errKeystoreMiss
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(filepath.Join(staging, entries[0].Name()), path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadFromKeystore decrypts the keystore file at path.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errEmptyPath
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
