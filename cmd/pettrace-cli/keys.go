package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"pettrace/cmd/internal/passphrase"
	"pettrace/crypto"
)

var keystorePassphrase = func() (string, error) {
	return passphrase.NewSource(keyPassEnv).Get()
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-key", stderr)
	out := fs.String("out", "", "path of the keystore file to write")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	importPath := fs.String("import", "", "file holding a hex private key to import instead of generating one")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		return printError(stderr, "--out is required")
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return printError(stderr, fmt.Sprintf("%s already exists; pass --force to replace it", path))
	}
	pass, err := keystorePassphrase()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := newOrImportedKey(*importPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		return printError(stderr, fmt.Sprintf("write keystore: %v", err))
	}
	fmt.Fprintf(stdout, "Address: %s\nKeystore: %s\n", key.PubKey().Address().Hex(), path)
	return 0
}

func newOrImportedKey(importPath string) (*crypto.PrivateKey, error) {
	importPath = strings.TrimSpace(importPath)
	if importPath == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		return key, nil
	}
	raw, err := os.ReadFile(importPath)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	key, err := crypto.PrivateKeyFromHex(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode key %s: %w", importPath, err)
	}
	return key, nil
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	keyPath := fs.String("key", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, key.PubKey().Address().Hex())
	return 0
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--key is required")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found. run pettrace-cli generate-key first", path)
		}
		return nil, err
	}
	pass, err := keystorePassphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore %s: %w", path, err)
	}
	return key, nil
}
