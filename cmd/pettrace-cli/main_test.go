package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pettrace/core/types"
	"pettrace/native/bounty"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type stubCall struct {
	method string
	params interface{}
	auth   bool
}

// stubRPC replaces rpcCall for the test and answers with handler.
func stubRPC(t *testing.T, handler func(call stubCall) (interface{}, *rpcError)) *[]stubCall {
	t.Helper()
	calls := &[]stubCall{}
	original := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		call := stubCall{method: method, params: params, auth: requireAuth}
		*calls = append(*calls, call)
		result, rpcErr := handler(call)
		if rpcErr != nil {
			return nil, rpcErr, nil
		}
		raw, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal stub result: %v", err)
		}
		return raw, nil, nil
	}
	t.Cleanup(func() { rpcCall = original })
	return calls
}

func newKeystore(t *testing.T) string {
	t.Helper()
	t.Setenv(keyPassEnv, "correct horse battery staple")
	path := filepath.Join(t.TempDir(), "owner.json")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"generate-key", "--out", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("generate-key failed: %s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "Address: 0x") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	return path
}

func TestGenerateKeyImportsHex(t *testing.T) {
	t.Setenv(keyPassEnv, "correct horse battery staple")
	dir := t.TempDir()
	hexPath := filepath.Join(dir, "key.hex")
	const hexKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	if err := os.WriteFile(hexPath, []byte(hexKey+"\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	keyPath := filepath.Join(dir, "imported.json")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"generate-key", "--out", keyPath, "--import", hexPath}, &stdout, &stderr); code != 0 {
		t.Fatalf("import failed: %s", stderr.String())
	}
	const want = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	if !strings.Contains(stdout.String(), want) {
		t.Fatalf("expected address %s in %q", want, stdout.String())
	}
	stdout.Reset()
	if code := run([]string{"address", "--key", keyPath}, &stdout, &stderr); code != 0 {
		t.Fatalf("address failed: %s", stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != want {
		t.Fatalf("unexpected address %q", stdout.String())
	}
	if code := run([]string{"generate-key", "--out", keyPath, "--import", hexPath}, &stdout, &stderr); code == 0 {
		t.Fatalf("expected existing keystore to be protected")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1", "1000000000000000000", true},
		{"1.5", "1500000000000000000", true},
		{".25", "250000000000000000", true},
		{"42wei", "42", true},
		{"0.000000000000000001", "1", true},
		{"", "", false},
		{"-1", "", false},
		{"1.", "", false},
		{"1.0000000000000000001", "", false},
		{"abc", "", false},
		{"+3", "", false},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("parseAmount(%q) err=%v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && got.String() != tc.want {
			t.Fatalf("parseAmount(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := formatAmount(amount); got != "1.5" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := formatAmount(big.NewInt(1)); got != "0.000000000000000001" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := formatAmount(nil); got != "0" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"fly"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Unknown command: fly") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestApplyGlobalFlags(t *testing.T) {
	original := rpcEndpoint
	defer func() { rpcEndpoint = original }()

	rest, err := applyGlobalFlags([]string{"--rpc", "http://node:8545", "get", "3"})
	if err != nil {
		t.Fatalf("applyGlobalFlags: %v", err)
	}
	if rpcEndpoint != "http://node:8545" || len(rest) != 2 || rest[0] != "get" {
		t.Fatalf("unexpected result %q %v", rpcEndpoint, rest)
	}
	if _, err := applyGlobalFlags([]string{"--rpc"}); err == nil {
		t.Fatalf("expected missing value error")
	}
}

func TestMutatingCallRequiresToken(t *testing.T) {
	originalToken := rpcAuthToken
	rpcAuthToken = ""
	defer func() { rpcAuthToken = originalToken }()

	if _, _, err := callRPC("pettrace_sendTransaction", map[string]string{}, true); err == nil || !strings.Contains(err.Error(), rpcTokenEnv) {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestCallRPCDialErrorIncludesEndpoint(t *testing.T) {
	originalEndpoint := rpcEndpoint
	rpcEndpoint = "http://test.invalid"
	defer func() { rpcEndpoint = originalEndpoint }()

	originalClient := http.DefaultClient
	http.DefaultClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused (test stub)")
	})}
	defer func() { http.DefaultClient = originalClient }()

	var stdout, stderr bytes.Buffer
	if code := run([]string{"count"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(stderr.String(), "POST http://test.invalid") || !strings.Contains(stderr.String(), "test stub") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestGetPrintsReport(t *testing.T) {
	calls := stubRPC(t, func(call stubCall) (interface{}, *rpcError) {
		return map[string]interface{}{"id": 3, "name": "Juniper", "status": "Created"}, nil
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"get", "3"}, &stdout, &stderr); code != 0 {
		t.Fatalf("get failed: %s", stderr.String())
	}
	if len(*calls) != 1 || (*calls)[0].method != "pettrace_getPetDetails" {
		t.Fatalf("unexpected calls %+v", *calls)
	}
	params := (*calls)[0].params.(map[string]uint64)
	if params["id"] != 3 {
		t.Fatalf("unexpected params %+v", params)
	}
	if !strings.Contains(stdout.String(), `"name": "Juniper"`) {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestQueryErrorIsReported(t *testing.T) {
	stubRPC(t, func(stubCall) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32022, Message: "Pet does not exist"}
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"get", "9"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(stderr.String(), "Pet does not exist (code -32022)") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestClaimSignsWithAccountNonce(t *testing.T) {
	keyPath := newKeystore(t)
	var sent *types.Transaction
	calls := stubRPC(t, func(call stubCall) (interface{}, *rpcError) {
		switch call.method {
		case "pettrace_chainId":
			return 44787, nil
		case "pettrace_getAccount":
			return map[string]interface{}{"nonce": 7}, nil
		case "pettrace_sendTransaction":
			sent = call.params.(*types.Transaction)
			return map[string]interface{}{"hash": "0x01", "status": "success"}, nil
		}
		t.Fatalf("unexpected method %s", call.method)
		return nil, nil
	})

	var stdout, stderr bytes.Buffer
	if code := run([]string{"claim", "--key", keyPath, "--id", "4"}, &stdout, &stderr); code != 0 {
		t.Fatalf("claim failed: %s", stderr.String())
	}
	if sent == nil || sent.Type != types.TxTypeClaimBounty || sent.Nonce != 7 || sent.ChainID.Uint64() != 44787 {
		t.Fatalf("unexpected transaction %+v", sent)
	}
	if !(*calls)[2].auth {
		t.Fatalf("send should require auth")
	}
	if _, err := sent.From(); err != nil {
		t.Fatalf("transaction not signed: %v", err)
	}
	var payload types.ReportPayload
	if err := json.Unmarshal(sent.Data, &payload); err != nil || payload.ID != 4 {
		t.Fatalf("unexpected payload %s", sent.Data)
	}
}

func TestRevertedTransactionExitCode(t *testing.T) {
	keyPath := newKeystore(t)
	stubRPC(t, func(call stubCall) (interface{}, *rpcError) {
		switch call.method {
		case "pettrace_chainId":
			return 44787, nil
		case "pettrace_getAccount":
			return map[string]interface{}{"nonce": 0}, nil
		}
		return map[string]interface{}{"hash": "0x01", "status": "reverted", "error": "Not finder"}, nil
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"claim", "--key", keyPath, "--id", "0"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2 for revert, got %d", code)
	}
}

func TestPostSimulatesWithYAMLReport(t *testing.T) {
	keyPath := newKeystore(t)
	reportPath := filepath.Join(t.TempDir(), "report.yaml")
	report := `name: Juniper
breed: Border Collie
gender: female
sizeCm: 52
ageMonths: 18
dateTimeLost: "2024-06-11T07:45:00Z"
description: Black and white, blue harness
imageUrl: ipfs://bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku
lastSeenLocation: North trailhead
contact:
  name: Robin
  phone: "+1 555 0142"
  email: robin@example.org
`
	if err := os.WriteFile(reportPath, []byte(report), 0o600); err != nil {
		t.Fatalf("write report: %v", err)
	}
	var sent *types.Transaction
	stubRPC(t, func(call stubCall) (interface{}, *rpcError) {
		switch call.method {
		case "pettrace_chainId":
			return 44787, nil
		case "pettrace_getAccount":
			return map[string]interface{}{"nonce": 0}, nil
		case "pettrace_simulateTransaction":
			if call.auth {
				t.Fatalf("simulation should not require auth")
			}
			sent = call.params.(*types.Transaction)
			return map[string]interface{}{"status": 1}, nil
		}
		t.Fatalf("unexpected method %s", call.method)
		return nil, nil
	})

	var stdout, stderr bytes.Buffer
	args := []string{"post", "--key", keyPath, "--report", reportPath, "--celo", "1.5", "--cusd", "10", "--dry-run"}
	if code := run(args, &stdout, &stderr); code != 0 {
		t.Fatalf("post failed: %s", stderr.String())
	}
	if sent.Value.String() != "1500000000000000000" {
		t.Fatalf("unexpected value %s", sent.Value)
	}
	var payload types.PostLostPetPayload
	if err := json.Unmarshal(sent.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ContactEmail != "robin@example.org" || payload.StableBounty.String() != "10000000000000000000" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPostValidation(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"post", "--report", "x.yaml"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected failure without bounty")
	}
	if !strings.Contains(stderr.String(), "--celo or --cusd") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}

	reportPath := filepath.Join(t.TempDir(), "report.yaml")
	if err := os.WriteFile(reportPath, []byte("name: Rex\ncolour: red\n"), 0o600); err != nil {
		t.Fatalf("write report: %v", err)
	}
	if _, err := loadReportFile(reportPath); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestApproveDefaultsToRegistry(t *testing.T) {
	keyPath := newKeystore(t)
	var sent *types.Transaction
	stubRPC(t, func(call stubCall) (interface{}, *rpcError) {
		switch call.method {
		case "pettrace_chainId":
			return 44787, nil
		case "pettrace_getAccount":
			return map[string]interface{}{"nonce": 0}, nil
		}
		sent = call.params.(*types.Transaction)
		return map[string]interface{}{"status": "success"}, nil
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"approve", "--key", keyPath, "--amount", "25"}, &stdout, &stderr); code != 0 {
		t.Fatalf("approve failed: %s", stderr.String())
	}
	var payload types.StableApprovePayload
	if err := json.Unmarshal(sent.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Spender != bounty.RegistryAddress {
		t.Fatalf("expected registry spender, got %s", payload.Spender.Hex())
	}
}
