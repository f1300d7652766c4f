package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pettrace/core"
	"pettrace/observability"
	"pettrace/storage/eventlog"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	txSeenTTL       = 15 * time.Minute
	metricsModule   = "pettrace"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeDuplicateTx    = -32010
	codeRateLimited    = -32020

	codeRegistryInvalid   = -32021
	codeRegistryNotFound  = -32022
	codeRegistryForbidden = -32023
	codeRegistryConflict  = -32024
	codeRegistryInternal  = -32025
)

// EventArchive is the read side of the event archive.
type EventArchive interface {
	ByReport(ctx context.Context, id uint64) ([]eventlog.Record, error)
}

// ServerConfig tunes the RPC server.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxPageSize       uint64
	TxPerMinute       float64
	TxBurst           int
	AllowedOrigins    []string
	JWT               JWTConfig
}

type Server struct {
	node    *core.Node
	archive EventArchive
	hub     *EventHub
	cfg     ServerConfig
	auth    *authenticator
	limiter *sourceLimiter
	logger  *slog.Logger

	mu     sync.Mutex
	txSeen map[string]time.Time

	httpMu     sync.Mutex
	httpServer *http.Server
}

// NewServer builds a server over node. archive may be nil when the event
// archive is disabled.
func NewServer(node *core.Node, archive EventArchive, hub *EventHub, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	auth, err := newAuthenticator(cfg.JWT)
	if err != nil {
		return nil, err
	}
	if cfg.MaxPageSize == 0 {
		cfg.MaxPageSize = 100
	}
	if hub == nil {
		hub = NewEventHub()
	}
	return &Server{
		node:    node,
		archive: archive,
		hub:     hub,
		cfg:     cfg,
		auth:    auth,
		limiter: newSourceLimiter(cfg.TxPerMinute, cfg.TxBurst),
		logger:  slog.Default().With(slog.String("component", "rpc")),
		txSeen:  make(map[string]time.Time),
	}, nil
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(cors(s.cfg.AllowedOrigins))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Post("/", s.handle)
	return otelhttp.NewHandler(r, "pettrace-rpc")
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.httpMu.Lock()
	s.httpServer = srv
	s.httpMu.Unlock()
	s.logger.Info("rpc server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes websocket subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	s.httpMu.Lock()
	srv := s.httpServer
	s.httpMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusOK
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusRecorder keeps the written status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	method := "unknown"
	defer func() {
		observability.ModuleMetrics().Observe(metricsModule, method, recorder.status, time.Since(started))
	}()
	w = recorder

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	method = req.Method

	switch req.Method {
	case "pettrace_sendTransaction":
		if authErr := s.auth.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSendTransaction(w, r, req)
	case "pettrace_simulateTransaction":
		s.handleSimulateTransaction(w, r, req)
	case "pettrace_getPetDetails":
		s.handleGetPetDetails(w, r, req)
	case "pettrace_getLostPetIds":
		s.handleGetLostPetIDs(w, r, req)
	case "pettrace_getLostPetsCount":
		s.handleGetLostPetsCount(w, r, req)
	case "pettrace_getAllLostPets":
		s.handleGetAllLostPets(w, r, req)
	case "pettrace_getRegistry":
		s.handleGetRegistry(w, r, req)
	case "pettrace_getEscrowedCUSD":
		s.handleGetEscrowedCUSD(w, r, req)
	case "pettrace_getAccount":
		s.handleGetAccount(w, r, req)
	case "pettrace_getAllowance":
		s.handleGetAllowance(w, r, req)
	case "pettrace_getReceipt":
		s.handleGetReceipt(w, r, req)
	case "pettrace_getRecentReceipts":
		s.handleGetRecentReceipts(w, r, req)
	case "pettrace_getReportEvents":
		s.handleGetReportEvents(w, r, req)
	case "pettrace_chainId":
		writeResult(w, req.ID, s.node.ChainID())
	default:
		method = "unknown"
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func (s *Server) rememberTx(hash string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, seenAt := range s.txSeen {
		if now.Sub(seenAt) > txSeenTTL {
			delete(s.txSeen, h)
		}
	}
	if _, exists := s.txSeen[hash]; exists {
		return false
	}
	s.txSeen[hash] = now
	return true
}

func (s *Server) forgetTx(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txSeen, hash)
}

// decodeParamObject unmarshals the single positional parameter object.
func decodeParamObject(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "parameter object required"}
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func writeParamError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	writeError(w, http.StatusBadRequest, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}

func ensureHexPrefix(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return "0x" + value[2:]
	}
	return "0x" + value
}
