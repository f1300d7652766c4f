package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"pettrace/core/types"
	"pettrace/crypto"
	"pettrace/native/bounty"
)

type txOptions struct {
	dryRun bool
}

// submit signs a transaction for key with the account's current nonce and
// either sends or simulates it.
func submit(key *crypto.PrivateKey, txType types.TxType, value *big.Int, payload interface{}, opts txOptions, stdout, stderr io.Writer) int {
	data, err := json.Marshal(payload)
	if err != nil {
		return printError(stderr, fmt.Sprintf("encode payload: %v", err))
	}
	chainID, err := fetchChainID()
	if err != nil {
		return printError(stderr, err.Error())
	}
	nonce, err := fetchNonce(key.PubKey().Address())
	if err != nil {
		return printError(stderr, err.Error())
	}
	tx := &types.Transaction{
		ChainID: new(big.Int).SetUint64(chainID),
		Type:    txType,
		Nonce:   nonce,
		Value:   value,
		Data:    data,
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return printError(stderr, fmt.Sprintf("sign transaction: %v", err))
	}

	method, auth := "pettrace_sendTransaction", true
	if opts.dryRun {
		method, auth = "pettrace_simulateTransaction", false
	}
	result, rpcErr, err := rpcCall(method, tx, auth)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if rpcErr != nil {
		return printError(stderr, rpcErr.String())
	}
	if code := printJSON(stdout, stderr, result); code != 0 {
		return code
	}
	var status struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(result, &status); err == nil {
		switch strings.Trim(string(status.Status), `"`) {
		case "reverted", strconv.Itoa(int(types.ReceiptStatusReverted)):
			return 2
		}
	}
	return 0
}

func fetchChainID() (uint64, error) {
	result, rpcErr, err := rpcCall("pettrace_chainId", nil, false)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, fmt.Errorf("chain id: %s", rpcErr.String())
	}
	var id uint64
	if err := json.Unmarshal(result, &id); err != nil {
		return 0, fmt.Errorf("chain id: %w", err)
	}
	return id, nil
}

func fetchNonce(addr common.Address) (uint64, error) {
	result, rpcErr, err := rpcCall("pettrace_getAccount", map[string]string{"address": addr.Hex()}, false)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, fmt.Errorf("account: %s", rpcErr.String())
	}
	var account struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(result, &account); err != nil {
		return 0, fmt.Errorf("account: %w", err)
	}
	return account.Nonce, nil
}

func parseAddressFlag(name, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, fmt.Errorf("--%s is required", name)
	}
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

func runApprove(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("approve", stderr)
	keyPath := fs.String("key", "", "keystore file")
	amountStr := fs.String("amount", "", "cUSD allowance for the registry")
	spenderStr := fs.String("spender", "", "spender address (defaults to the registry)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	spender := bounty.RegistryAddress
	if strings.TrimSpace(*spenderStr) != "" {
		if spender, err = parseAddressFlag("spender", *spenderStr); err != nil {
			return printError(stderr, err.Error())
		}
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(key, types.TxTypeStableApprove, nil, types.StableApprovePayload{Spender: spender, Amount: amount}, txOptions{}, stdout, stderr)
}

func runTransfer(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer", stderr)
	keyPath := fs.String("key", "", "keystore file")
	toStr := fs.String("to", "", "recipient address")
	amountStr := fs.String("amount", "", "amount to send")
	asset := fs.String("asset", "celo", "celo or cusd")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	to, err := parseAddressFlag("to", *toStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := parseAmount(*amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	var (
		txType  types.TxType
		value   *big.Int
		payload interface{}
	)
	switch strings.ToLower(strings.TrimSpace(*asset)) {
	case "celo":
		txType, value, payload = types.TxTypeTransfer, amount, types.TransferPayload{To: to}
	case "cusd":
		txType, payload = types.TxTypeStableTransfer, types.StableTransferPayload{To: to, Amount: amount}
	default:
		return printError(stderr, "--asset must be celo or cusd")
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(key, txType, value, payload, txOptions{}, stdout, stderr)
}

// reportFile is the on-disk description of a lost pet.
type reportFile struct {
	Name             string `yaml:"name"`
	Breed            string `yaml:"breed"`
	Gender           string `yaml:"gender"`
	SizeCm           uint64 `yaml:"sizeCm"`
	AgeMonths        uint64 `yaml:"ageMonths"`
	DateTimeLost     string `yaml:"dateTimeLost"`
	Description      string `yaml:"description"`
	ImageURL         string `yaml:"imageUrl"`
	LastSeenLocation string `yaml:"lastSeenLocation"`
	Contact          struct {
		Name  string `yaml:"name"`
		Phone string `yaml:"phone"`
		Email string `yaml:"email"`
	} `yaml:"contact"`
}

func loadReportFile(path string) (*reportFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report reportFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &report, nil
}

func (r *reportFile) payload(stable *big.Int) types.PostLostPetPayload {
	return types.PostLostPetPayload{
		Name:             r.Name,
		Breed:            r.Breed,
		Gender:           r.Gender,
		SizeCm:           r.SizeCm,
		AgeMonths:        r.AgeMonths,
		DateTimeLost:     r.DateTimeLost,
		Description:      r.Description,
		ImageURL:         r.ImageURL,
		LastSeenLocation: r.LastSeenLocation,
		ContactName:      r.Contact.Name,
		ContactPhone:     r.Contact.Phone,
		ContactEmail:     r.Contact.Email,
		StableBounty:     stable,
	}
}

func runPost(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("post", stderr)
	keyPath := fs.String("key", "", "keystore file")
	reportPath := fs.String("report", "", "YAML file describing the pet")
	celo := fs.String("celo", "", "CELO bounty attached as value")
	cusd := fs.String("cusd", "", "cUSD bounty pulled from the approved allowance")
	dryRun := fs.Bool("dry-run", false, "simulate without committing")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*reportPath) == "" {
		return printError(stderr, "--report is required")
	}
	if strings.TrimSpace(*celo) == "" && strings.TrimSpace(*cusd) == "" {
		return printError(stderr, "at least one of --celo or --cusd is required")
	}
	var native, stable *big.Int
	var err error
	if strings.TrimSpace(*celo) != "" {
		if native, err = parseAmount(*celo); err != nil {
			return printError(stderr, "--celo: "+err.Error())
		}
	}
	if strings.TrimSpace(*cusd) != "" {
		if stable, err = parseAmount(*cusd); err != nil {
			return printError(stderr, "--cusd: "+err.Error())
		}
	}
	report, err := loadReportFile(*reportPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(key, types.TxTypePostLostPet, native, report.payload(stable), txOptions{dryRun: *dryRun}, stdout, stderr)
}

var reportActions = map[string]types.TxType{
	"mark-found": types.TxTypeMarkFound,
	"confirm":    types.TxTypeConfirmFound,
	"claim":      types.TxTypeClaimBounty,
	"cancel":     types.TxTypeCancelAndRefund,
}

func runReportAction(action string, args []string, stdout, stderr io.Writer) int {
	txType, ok := reportActions[action]
	if !ok {
		return printError(stderr, "unknown report action "+action)
	}
	fs := newFlagSet(action, stderr)
	keyPath := fs.String("key", "", "keystore file")
	idStr := fs.String("id", "", "report id")
	dryRun := fs.Bool("dry-run", false, "simulate without committing")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	id, err := parseReportID(*idStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(key, txType, nil, types.ReportPayload{ID: id}, txOptions{dryRun: *dryRun}, stdout, stderr)
}

func runTransferAdmin(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer-admin", stderr)
	keyPath := fs.String("key", "", "admin keystore file")
	newAdmin := fs.String("new-admin", "", "address of the next admin")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := parseAddressFlag("new-admin", *newAdmin)
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(key, types.TxTypeTransferAdmin, nil, types.TransferAdminPayload{NewAdmin: addr}, txOptions{}, stdout, stderr)
}

func runEmergencyWithdraw(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("emergency-withdraw", stderr)
	keyPath := fs.String("key", "", "admin keystore file")
	toStr := fs.String("to", "", "sweep destination")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	to, err := parseAddressFlag("to", *toStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := loadKey(*keyPath)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return submit(key, types.TxTypeEmergencyWithdraw, nil, types.EmergencyWithdrawPayload{To: to}, txOptions{}, stdout, stderr)
}

func parseReportID(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("--id is required")
	}
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--id must be a non-negative integer")
	}
	return id, nil
}
