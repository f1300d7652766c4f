package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	rpcURLEnv   = "PETTRACE_RPC_URL"
	rpcTokenEnv = "PETTRACE_RPC_TOKEN"
	keyPassEnv  = "PETTRACE_KEY_PASS"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv(rpcTokenEnv)

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	rest := args[1:]
	switch args[0] {
	case "generate-key":
		return runGenerateKey(rest, stdout, stderr)
	case "address":
		return runAddress(rest, stdout, stderr)
	case "balance":
		return runBalance(rest, stdout, stderr)
	case "allowance":
		return runAllowance(rest, stdout, stderr)
	case "approve":
		return runApprove(rest, stdout, stderr)
	case "transfer":
		return runTransfer(rest, stdout, stderr)
	case "post":
		return runPost(rest, stdout, stderr)
	case "mark-found", "confirm", "claim", "cancel":
		return runReportAction(args[0], rest, stdout, stderr)
	case "transfer-admin":
		return runTransferAdmin(rest, stdout, stderr)
	case "emergency-withdraw":
		return runEmergencyWithdraw(rest, stdout, stderr)
	case "get":
		return runGet(rest, stdout, stderr)
	case "list":
		return runList(rest, stdout, stderr)
	case "count":
		return runQuery("pettrace_getLostPetsCount", nil, stdout, stderr)
	case "all":
		return runQuery("pettrace_getAllLostPets", nil, stdout, stderr)
	case "registry":
		return runQuery("pettrace_getRegistry", nil, stdout, stderr)
	case "escrow":
		return runEscrow(rest, stdout, stderr)
	case "receipt":
		return runReceipt(rest, stdout, stderr)
	case "recent":
		return runRecent(rest, stdout, stderr)
	case "events":
		return runEvents(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: pettrace-cli [--rpc URL] <command> [flags]

Keys:
  generate-key --out <keystore> [--import <hexfile>] [--force]
  address --key <keystore>

Accounts:
  balance <address>
  allowance --owner <address> [--spender <address>]
  approve --key <keystore> --amount <cUSD>
  transfer --key <keystore> --to <address> --amount <n> [--asset celo|cusd]

Reports:
  post --key <keystore> --report <report.yaml> [--celo <n>] [--cusd <n>] [--dry-run]
  mark-found|confirm|claim|cancel --key <keystore> --id <n> [--dry-run]
  get <id>
  list [--offset n] [--limit n]
  count | all | registry
  escrow <id>
  events <id>
  receipt <hash>
  recent [--limit n]

Admin:
  transfer-admin --key <keystore> --new-admin <address>
  emergency-withdraw --key <keystore> --to <address>

The keystore passphrase is read from ` + keyPassEnv + ` or prompted for.
Mutating calls send ` + rpcTokenEnv + ` as a bearer token.`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) String() string {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return fmt.Sprintf("%s (code %d): %s", e.Message, e.Code, string(e.Data))
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

var rpcCall = callRPC

func callRPC(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response: %w", err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		if strings.TrimSpace(rpcAuthToken) == "" {
			return nil, fmt.Errorf("mutating RPC call requires %s to be set", rpcTokenEnv)
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

// runQuery performs a read call and pretty-prints the result.
func runQuery(method string, params interface{}, stdout, stderr io.Writer) int {
	result, rpcErr, err := rpcCall(method, params, false)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		fmt.Fprintf(stderr, "Error: %s\n", rpcErr.String())
		return 1
	}
	return printJSON(stdout, stderr, result)
}

func printJSON(stdout, stderr io.Writer, raw json.RawMessage) int {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintf(stderr, "Error: malformed result: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, buf.String())
	return 0
}

func printError(stderr io.Writer, msg string) int {
	fmt.Fprintf(stderr, "Error: %s\n", msg)
	return 1
}
