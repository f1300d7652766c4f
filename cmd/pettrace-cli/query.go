package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"pettrace/native/bounty"
)

func runBalance(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: balance <address>")
	}
	addr, err := parseAddressFlag("address", args[0])
	if err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("pettrace_getAccount", map[string]string{"address": addr.Hex()}, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if rpcErr != nil {
		return printError(stderr, rpcErr.String())
	}
	var account struct {
		Address string   `json:"address"`
		Nonce   uint64   `json:"nonce"`
		Native  *big.Int `json:"celo"`
		Stable  *big.Int `json:"cUSD"`
	}
	if err := json.Unmarshal(result, &account); err != nil {
		return printError(stderr, fmt.Sprintf("decode account: %v", err))
	}
	fmt.Fprintf(stdout, "Address: %s\nNonce:   %d\nCELO:    %s\ncUSD:    %s\n",
		addr.Hex(), account.Nonce, formatAmount(account.Native), formatAmount(account.Stable))
	return 0
}

func runAllowance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("allowance", stderr)
	ownerStr := fs.String("owner", "", "token owner")
	spenderStr := fs.String("spender", "", "spender (defaults to the registry)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	owner, err := parseAddressFlag("owner", *ownerStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	spender := bounty.RegistryAddress
	if strings.TrimSpace(*spenderStr) != "" {
		if spender, err = parseAddressFlag("spender", *spenderStr); err != nil {
			return printError(stderr, err.Error())
		}
	}
	return runQuery("pettrace_getAllowance", map[string]string{"owner": owner.Hex(), "spender": spender.Hex()}, stdout, stderr)
}

func runGet(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: get <id>")
	}
	id, err := parseReportID(args[0])
	if err != nil {
		return printError(stderr, err.Error())
	}
	return runQuery("pettrace_getPetDetails", map[string]uint64{"id": id}, stdout, stderr)
}

func runEscrow(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: escrow <id>")
	}
	id, err := parseReportID(args[0])
	if err != nil {
		return printError(stderr, err.Error())
	}
	return runQuery("pettrace_getEscrowedCUSD", map[string]uint64{"id": id}, stdout, stderr)
}

func runEvents(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: events <id>")
	}
	id, err := parseReportID(args[0])
	if err != nil {
		return printError(stderr, err.Error())
	}
	return runQuery("pettrace_getReportEvents", map[string]uint64{"id": id}, stdout, stderr)
}

func runList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("list", stderr)
	offset := fs.Uint64("offset", 0, "first report id to scan")
	limit := fs.Uint64("limit", 20, "maximum ids to return")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return runQuery("pettrace_getLostPetIds", map[string]uint64{"offset": *offset, "limit": *limit}, stdout, stderr)
}

func runReceipt(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return printError(stderr, "usage: receipt <hash>")
	}
	return runQuery("pettrace_getReceipt", map[string]string{"hash": strings.TrimSpace(args[0])}, stdout, stderr)
}

func runRecent(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("recent", stderr)
	limit := fs.Uint64("limit", 10, "maximum receipts to return")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return runQuery("pettrace_getRecentReceipts", map[string]uint64{"limit": *limit}, stdout, stderr)
}
