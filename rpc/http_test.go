package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pettrace/core/types"
	"pettrace/native/bounty"
	"pettrace/storage/eventlog"
)

func TestLostPetQueries(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)

	posted := env.send(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))
	if posted.Status != "success" || posted.ReportID == nil || *posted.ReportID != 0 {
		t.Fatalf("unexpected post result %+v", posted)
	}
	env.send(t, env.owner, types.TxTypePostLostPet, ether(2), samplePost(nil))

	reply := env.call(t, "pettrace_getPetDetails", map[string]uint64{"id": 1}, false)
	if reply.resp.Error != nil {
		t.Fatalf("getPetDetails: %+v", reply.resp.Error)
	}
	var details struct {
		ID     uint64 `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(reply.resp.Result, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.ID != 1 || details.Name != "Juniper" || details.Status != bounty.StatusCreated.String() {
		t.Fatalf("unexpected details %+v", details)
	}

	reply = env.call(t, "pettrace_getLostPetIds", map[string]uint64{"offset": 0, "limit": 1}, false)
	var page LostPetIDsResult
	if err := json.Unmarshal(reply.resp.Result, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.IDs) != 1 || page.IDs[0] != 0 || !page.HasMore {
		t.Fatalf("unexpected page %+v", page)
	}

	reply = env.call(t, "pettrace_getLostPetsCount", nil, false)
	if strings.TrimSpace(string(reply.resp.Result)) != "2" {
		t.Fatalf("expected count 2, got %s", reply.resp.Result)
	}

	reply = env.call(t, "pettrace_getAllLostPets", nil, false)
	var all AllLostPetsResult
	if err := json.Unmarshal(reply.resp.Result, &all); err != nil {
		t.Fatalf("decode all: %v", err)
	}
	if len(all.IDs) != 2 || len(all.Reports) != 2 {
		t.Fatalf("unexpected listing %+v", all)
	}

	reply = env.call(t, "pettrace_getRegistry", nil, false)
	var registry struct {
		NextID      uint64 `json:"nextPetId"`
		NativeFunds string `json:"celoBalance"`
	}
	if err := json.Unmarshal(reply.resp.Result, &registry); err != nil {
		t.Fatalf("decode registry: %v", err)
	}
	if registry.NextID != 2 || registry.NativeFunds != ether(3).String() {
		t.Fatalf("unexpected registry %+v", registry)
	}
}

func TestGetPetDetailsUnknownID(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)

	reply := env.call(t, "pettrace_getPetDetails", map[string]uint64{"id": 7}, false)
	rpcErr := expectError(t, reply, http.StatusNotFound, codeRegistryNotFound)
	if rpcErr.Message != bounty.ErrReportNotFound.Error() {
		t.Fatalf("unexpected message %q", rpcErr.Message)
	}
}

func TestSendTransactionRequiresAuth(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)
	tx := env.signedTx(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))

	expectError(t, env.call(t, "pettrace_sendTransaction", tx, false), http.StatusUnauthorized, codeUnauthorized)

	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": "pettrace_sendTransaction", "params": []interface{}{tx},
	})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "someone-else", testJWTAud, time.Now().Add(time.Minute)))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected wrong issuer to be refused, got %d", rec.Code)
	}
}

func TestSendTransactionDuplicate(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)
	tx := env.signedTx(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))

	reply := env.call(t, "pettrace_sendTransaction", tx, true)
	if reply.resp.Error != nil {
		t.Fatalf("first submit: %+v", reply.resp.Error)
	}
	expectError(t, env.call(t, "pettrace_sendTransaction", tx, true), http.StatusConflict, codeDuplicateTx)
}

func TestSendTransactionRejections(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)

	env.owner.nonce = 5
	tx := env.signedTx(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))
	expectError(t, env.call(t, "pettrace_sendTransaction", tx, true), http.StatusBadRequest, codeInvalidParams)

	// rejected hashes are forgotten so the same bytes can be retried
	reply := env.call(t, "pettrace_sendTransaction", tx, true)
	if reply.resp.Error == nil || reply.resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected nonce rejection again, got %+v", reply.resp.Error)
	}

	env.owner.nonce = 0
	bad := env.signedTx(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))
	bad.Type = 0x7f
	expectError(t, env.call(t, "pettrace_sendTransaction", bad, true), http.StatusBadRequest, codeInvalidParams)
}

func TestSendTransactionRevertIsReported(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)

	result := env.send(t, env.finder, types.TxTypeMarkFound, nil, types.ReportPayload{ID: 3})
	if result.Status != "reverted" || result.Error != bounty.ErrReportNotFound.Error() {
		t.Fatalf("expected revert, got %+v", result)
	}

	reply := env.call(t, "pettrace_getReceipt", map[string]string{"hash": result.Hash}, false)
	var receipt types.Receipt
	if err := json.Unmarshal(reply.resp.Result, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.Succeeded() || receipt.Nonce != 0 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	reply = env.call(t, "pettrace_getRecentReceipts", map[string]uint64{"limit": 5}, false)
	var recent []types.Receipt
	if err := json.Unmarshal(reply.resp.Result, &recent); err != nil {
		t.Fatalf("decode recent receipts: %v", err)
	}
	if len(recent) != 1 || recent[0].TxHash != receipt.TxHash {
		t.Fatalf("unexpected recent receipts %+v", recent)
	}
}

func TestSendTransactionRateLimited(t *testing.T) {
	env := newTestEnv(t, ServerConfig{TxPerMinute: 1, TxBurst: 1}, nil)

	env.send(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))
	tx := env.signedTx(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))
	expectError(t, env.call(t, "pettrace_sendTransaction", tx, true), http.StatusTooManyRequests, codeRateLimited)
}

func TestSimulateTransactionLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)
	tx := env.signedTx(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))

	reply := env.call(t, "pettrace_simulateTransaction", tx, false)
	var receipt types.Receipt
	if err := json.Unmarshal(reply.resp.Result, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if !receipt.Succeeded() || receipt.ReportID == nil {
		t.Fatalf("unexpected simulation %+v", receipt)
	}
	reply = env.call(t, "pettrace_getLostPetsCount", nil, false)
	if strings.TrimSpace(string(reply.resp.Result)) != "0" {
		t.Fatalf("simulation should not persist, count %s", reply.resp.Result)
	}
}

func TestParamValidation(t *testing.T) {
	env := newTestEnv(t, ServerConfig{MaxPageSize: 10}, nil)

	cases := []struct {
		name   string
		method string
		param  interface{}
	}{
		{"missing id", "pettrace_getPetDetails", map[string]interface{}{}},
		{"unknown field", "pettrace_getPetDetails", map[string]interface{}{"id": 1, "extra": true}},
		{"limit over page size", "pettrace_getLostPetIds", map[string]uint64{"offset": 0, "limit": 11}},
		{"bad address", "pettrace_getAccount", map[string]string{"address": "0x1234"}},
		{"bad spender", "pettrace_getAllowance", map[string]string{"owner": env.owner.addr.Hex(), "spender": "nope"}},
		{"short hash", "pettrace_getReceipt", map[string]string{"hash": "0xdead"}},
		{"receipts over page size", "pettrace_getRecentReceipts", map[string]uint64{"limit": 11}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, env.call(t, tc.method, tc.param, false), http.StatusBadRequest, codeInvalidParams)
		})
	}
}

func TestUnknownMethodAndMalformedBody(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)
	expectError(t, env.call(t, "pettrace_nope", nil, false), http.StatusNotFound, codeMethodNotFound)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "-32700") {
		t.Fatalf("expected parse error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAccountAndAllowance(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)
	env.send(t, env.owner, types.TxTypeStableApprove, nil, types.StableApprovePayload{Spender: bounty.RegistryAddress, Amount: ether(5)})

	reply := env.call(t, "pettrace_getAllowance", map[string]string{
		"owner":   env.owner.addr.Hex(),
		"spender": bounty.RegistryAddress.Hex(),
	}, false)
	var allowance AllowanceResult
	if err := json.Unmarshal(reply.resp.Result, &allowance); err != nil {
		t.Fatalf("decode allowance: %v", err)
	}
	if allowance.Amount.Cmp(ether(5)) != 0 {
		t.Fatalf("unexpected allowance %s", allowance.Amount)
	}

	reply = env.call(t, "pettrace_getAccount", map[string]string{"address": env.owner.addr.Hex()}, false)
	var account struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(reply.resp.Result, &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Nonce != 1 {
		t.Fatalf("expected nonce 1, got %d", account.Nonce)
	}
}

func TestGetEscrowedCUSD(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)
	env.send(t, env.owner, types.TxTypeStableApprove, nil, types.StableApprovePayload{Spender: bounty.RegistryAddress, Amount: ether(10)})
	env.send(t, env.owner, types.TxTypePostLostPet, nil, samplePost(ether(10)))

	reply := env.call(t, "pettrace_getEscrowedCUSD", map[string]uint64{"id": 0}, false)
	var escrow EscrowResult
	if err := json.Unmarshal(reply.resp.Result, &escrow); err != nil {
		t.Fatalf("decode escrow: %v", err)
	}
	if escrow.Amount.Cmp(ether(10)) != 0 {
		t.Fatalf("unexpected escrow %s", escrow.Amount)
	}
}

type stubArchive struct {
	rows []eventlog.Record
	err  error
}

func (a *stubArchive) ByReport(_ context.Context, id uint64) ([]eventlog.Record, error) {
	return a.rows, a.err
}

func TestGetReportEvents(t *testing.T) {
	disabled := newTestEnv(t, ServerConfig{}, nil)
	expectError(t, disabled.call(t, "pettrace_getReportEvents", map[string]uint64{"id": 0}, false), http.StatusServiceUnavailable, codeServerError)

	archive := &stubArchive{}
	env := newTestEnv(t, ServerConfig{}, archive)
	expectError(t, env.call(t, "pettrace_getReportEvents", map[string]uint64{"id": 0}, false), http.StatusNotFound, codeRegistryNotFound)

	env.send(t, env.owner, types.TxTypePostLostPet, ether(1), samplePost(nil))
	archive.rows = []eventlog.Record{{
		TxHash:     "0xabc",
		Sequence:   1,
		Position:   0,
		Type:       bounty.EventTypePetPosted,
		Attributes: `{"id":"0"}`,
	}}
	reply := env.call(t, "pettrace_getReportEvents", map[string]uint64{"id": 0}, false)
	var out []ReportEventResult
	if err := json.Unmarshal(reply.resp.Result, &out); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(out) != 1 || out[0].Event.Type != bounty.EventTypePetPosted {
		t.Fatalf("unexpected events %+v", out)
	}

	archive.err = errors.New("db down")
	expectError(t, env.call(t, "pettrace_getReportEvents", map[string]uint64{"id": 0}, false), http.StatusInternalServerError, codeServerError)
}

func TestHealthAndChainID(t *testing.T) {
	env := newTestEnv(t, ServerConfig{}, nil)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("unexpected health response %d", rec.Code)
	}

	reply := env.call(t, "pettrace_chainId", nil, false)
	if strings.TrimSpace(string(reply.resp.Result)) != "44787" {
		t.Fatalf("unexpected chain id %s", reply.resp.Result)
	}
}
