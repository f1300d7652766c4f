package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"

	"pettrace/core"
	"pettrace/core/genesis"
	"pettrace/core/types"
	"pettrace/crypto"
	"pettrace/storage"
	"pettrace/storage/receipts"
)

const (
	testJWTEnvVar  = "RPC_TEST_JWT_SECRET"
	testJWTSecret  = "rpc-test-secret"
	testJWTIssuer  = "rpc-tests"
	testJWTAud     = "unit-tests"
	testChainID    = 44787
	testRemoteAddr = "192.0.2.10:7000"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type rpcAccount struct {
	key   *crypto.PrivateKey
	addr  common.Address
	nonce uint64
}

func newRPCAccount(t testing.TB) *rpcAccount {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &rpcAccount{key: key, addr: key.PubKey().Address()}
}

type rpcEnv struct {
	server *Server
	node   *core.Node
	hub    *EventHub
	admin  *rpcAccount
	owner  *rpcAccount
	finder *rpcAccount
}

func newTestNode(t testing.TB, admin *rpcAccount, funded ...*rpcAccount) *core.Node {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "chainId: %d\nadmin: %q\nalloc:\n", testChainID, strings.ToLower(admin.addr.Hex()))
	for _, acc := range funded {
		fmt.Fprintf(&b, "  %q:\n    native: %q\n    cusd: %q\n", strings.ToLower(acc.addr.Hex()), ether(20).String(), ether(500).String())
	}
	spec, err := genesis.ParseGenesisSpec([]byte(b.String()))
	if err != nil {
		t.Fatalf("parse genesis: %v", err)
	}
	node, err := core.NewNode(storage.NewMemDB(), spec)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	store, err := receipts.Open(filepath.Join(t.TempDir(), "receipts.db"), nil)
	if err != nil {
		t.Fatalf("open receipts: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	node.SetReceiptStore(store)
	return node
}

func newTestEnv(t testing.TB, cfg ServerConfig, archive EventArchive) *rpcEnv {
	t.Helper()
	env := &rpcEnv{
		admin:  newRPCAccount(t),
		owner:  newRPCAccount(t),
		finder: newRPCAccount(t),
		hub:    NewEventHub(),
	}
	env.node = newTestNode(t, env.admin, env.owner, env.finder)
	env.node.SetEventSink(env.hub)
	if !cfg.JWT.Enable {
		t.Setenv(testJWTEnvVar, testJWTSecret)
		cfg.JWT = JWTConfig{
			Enable:         true,
			HSSecretEnv:    testJWTEnvVar,
			Issuer:         testJWTIssuer,
			Audience:       testJWTAud,
			MaxSkewSeconds: 60,
		}
	}
	srv, err := NewServer(env.node, archive, env.hub, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env.server = srv
	return env
}

func signTestToken(t testing.TB, issuer, audience string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (env *rpcEnv) signedTx(t testing.TB, from *rpcAccount, txType types.TxType, value *big.Int, payload interface{}) *types.Transaction {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	tx := &types.Transaction{
		ChainID: big.NewInt(testChainID),
		Type:    txType,
		Nonce:   from.nonce,
		Value:   value,
		Data:    data,
	}
	if err := tx.Sign(from.key.PrivateKey); err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	return tx
}

type rpcReply struct {
	status int
	resp   struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
}

func (env *rpcEnv) call(t testing.TB, method string, param interface{}, authorize bool) rpcReply {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if param != nil {
		req["params"] = []interface{}{param}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.RemoteAddr = testRemoteAddr
	if authorize {
		httpReq.Header.Set("Authorization", "Bearer "+signTestToken(t, testJWTIssuer, testJWTAud, time.Now().Add(time.Minute)))
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httpReq)

	var reply rpcReply
	reply.status = rec.Code
	if err := json.Unmarshal(rec.Body.Bytes(), &reply.resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return reply
}

func (env *rpcEnv) send(t testing.TB, from *rpcAccount, txType types.TxType, value *big.Int, payload interface{}) SendTransactionResult {
	t.Helper()
	reply := env.call(t, "pettrace_sendTransaction", env.signedTx(t, from, txType, value, payload), true)
	if reply.resp.Error != nil {
		t.Fatalf("send %s: %+v", txType, reply.resp.Error)
	}
	from.nonce++
	var result SendTransactionResult
	if err := json.Unmarshal(reply.resp.Result, &result); err != nil {
		t.Fatalf("decode send result: %v", err)
	}
	return result
}

func expectError(t testing.TB, reply rpcReply, status, code int) *RPCError {
	t.Helper()
	if reply.resp.Error == nil {
		t.Fatalf("expected error code %d, got result %s", code, reply.resp.Result)
	}
	if reply.status != status || reply.resp.Error.Code != code {
		t.Fatalf("expected status %d code %d, got status %d error %+v", status, code, reply.status, reply.resp.Error)
	}
	return reply.resp.Error
}

func samplePost(stable *big.Int) types.PostLostPetPayload {
	return types.PostLostPetPayload{
		Name:             "Juniper",
		Breed:            "Border Collie",
		Gender:           "female",
		SizeCm:           52,
		AgeMonths:        18,
		DateTimeLost:     "2024-06-11T07:45:00Z",
		Description:      "Black and white, blue harness",
		ImageURL:         "ipfs://bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku",
		LastSeenLocation: "North trailhead",
		ContactName:      "Robin",
		ContactPhone:     "+1 555 0142",
		ContactEmail:     "robin@example.org",
		StableBounty:     stable,
	}
}
