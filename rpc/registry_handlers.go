package rpc

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"pettrace/core"
	"pettrace/core/events"
	"pettrace/core/types"
	"pettrace/crypto"
	"pettrace/native/bounty"
)

type reportIDParams struct {
	ID *uint64 `json:"id"`
}

type limitParams struct {
	Limit uint64 `json:"limit"`
}

type pageParams struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type addressParams struct {
	Address string `json:"address"`
}

type allowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type hashParams struct {
	Hash string `json:"hash"`
}

// writeRegistryError maps registry reverts and node errors onto RPC codes.
func writeRegistryError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, core.ErrReceiptNotFound):
		writeError(w, http.StatusNotFound, id, codeRegistryNotFound, err.Error(), nil)
		return
	}
	reason := bounty.Reason(err)
	switch bounty.Classify(err) {
	case bounty.ClassInvalid:
		writeError(w, http.StatusBadRequest, id, codeRegistryInvalid, reason, nil)
	case bounty.ClassNotFound:
		writeError(w, http.StatusNotFound, id, codeRegistryNotFound, reason, nil)
	case bounty.ClassForbidden:
		writeError(w, http.StatusForbidden, id, codeRegistryForbidden, reason, nil)
	case bounty.ClassConflict:
		writeError(w, http.StatusConflict, id, codeRegistryConflict, reason, nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeRegistryInternal, "internal error", err.Error())
	}
}

// writeSubmitError maps transaction rejections onto RPC codes.
func writeSubmitError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, core.ErrKnownTransaction):
		writeError(w, http.StatusConflict, id, codeDuplicateTx, "transaction has already been applied", nil)
	case errors.Is(err, types.ErrMissingSignature), errors.Is(err, types.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid transaction signature", err.Error())
	case errors.Is(err, core.ErrInvalidChainID), errors.Is(err, core.ErrNonceMismatch),
		errors.Is(err, core.ErrUnsupportedTxType), errors.Is(err, core.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "failed to apply transaction", err.Error())
	}
}

func decodeTransaction(w http.ResponseWriter, req *RPCRequest) (*types.Transaction, bool) {
	if len(req.Params) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "transaction parameter required", nil)
		return nil, false
	}
	var tx types.Transaction
	if rpcErr := decodeParamObject(&RPCRequest{Params: req.Params[:1]}, &tx); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid transaction format", rpcErr.Data)
		return nil, false
	}
	return &tx, true
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	tx, ok := decodeTransaction(w, req)
	if !ok {
		return
	}
	source := clientSource(r)
	if !s.limiter.allow(source) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "transaction rate limit exceeded", source)
		return
	}
	hash, err := tx.Hash()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "failed to hash transaction", err.Error())
		return
	}
	hashHex := events.FormatHash(hash)
	if !s.rememberTx(hashHex, time.Now()) {
		writeError(w, http.StatusConflict, req.ID, codeDuplicateTx, "transaction has already been submitted", hashHex)
		return
	}
	receipt, err := s.node.SubmitTransaction(tx)
	if err != nil {
		// A rejected transaction may be corrected and resent.
		s.forgetTx(hashHex)
		s.logger.Debug("transaction rejected",
			slog.String("requestId", RequestIDFromContext(r.Context())),
			slog.String("hash", hashHex),
			slog.Any("error", err))
		writeSubmitError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, SendTransactionResult{
		Hash:     hashHex,
		Sequence: receipt.Sequence,
		Status:   statusLabel(receipt),
		Error:    receipt.Error,
		ReportID: receipt.ReportID,
	})
}

func (s *Server) handleSimulateTransaction(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	tx, ok := decodeTransaction(w, req)
	if !ok {
		return
	}
	receipt, err := s.node.SimulateTransaction(tx)
	if err != nil {
		writeSubmitError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetPetDetails(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params reportIDParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if params.ID == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id is required", nil)
		return
	}
	report, err := s.node.Report(*params.ID)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, reportResult(report))
}

func (s *Server) handleGetLostPetIDs(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pageParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if params.Limit > s.cfg.MaxPageSize {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit exceeds maximum page size", s.cfg.MaxPageSize)
		return
	}
	ids, hasMore, err := s.node.LostReportIDs(params.Offset, params.Limit)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, LostPetIDsResult{IDs: ids, HasMore: hasMore})
}

func (s *Server) handleGetLostPetsCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.node.LostReportCount()
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleGetAllLostPets(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	ids, reports, err := s.node.AllLostReports()
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	result := AllLostPetsResult{IDs: ids, Reports: make([]ReportResult, 0, len(reports))}
	for _, report := range reports {
		result.Reports = append(result.Reports, reportResult(report))
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetRegistry(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	view, err := s.node.Registry()
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleGetEscrowedCUSD(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params reportIDParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if params.ID == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id is required", nil)
		return
	}
	amount, err := s.node.EscrowedStable(*params.ID)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, EscrowResult{ID: *params.ID, Amount: amount})
}

func parseAddressParam(w http.ResponseWriter, id interface{}, field, raw string) (common.Address, bool) {
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid "+field, err.Error())
		return common.Address{}, false
	}
	return addr, true
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	addr, ok := parseAddressParam(w, req.ID, "address", params.Address)
	if !ok {
		return
	}
	view, err := s.node.Account(addr)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleGetAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params allowanceParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	owner, ok := parseAddressParam(w, req.ID, "owner", params.Owner)
	if !ok {
		return
	}
	spender, ok := parseAddressParam(w, req.ID, "spender", params.Spender)
	if !ok {
		return
	}
	amount, err := s.node.Allowance(owner, spender)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	if amount == nil {
		amount = new(big.Int)
	}
	writeResult(w, req.ID, AllowanceResult{Owner: owner, Spender: spender, Amount: amount})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params hashParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	raw, err := hexutil.Decode(ensureHexPrefix(params.Hash))
	if err != nil || len(raw) != common.HashLength {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "hash must be 32 bytes of hex", nil)
		return
	}
	receipt, err := s.node.Receipt(common.BytesToHash(raw))
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetRecentReceipts(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params limitParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if params.Limit > s.cfg.MaxPageSize {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "limit exceeds maximum page size", s.cfg.MaxPageSize)
		return
	}
	list, err := s.node.RecentReceipts(int(params.Limit))
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, list)
}

func (s *Server) handleGetReportEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params reportIDParams
	if rpcErr := decodeParamObject(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if params.ID == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "id is required", nil)
		return
	}
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "event archive disabled", nil)
		return
	}
	if _, err := s.node.Report(*params.ID); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	rows, err := s.archive.ByReport(r.Context(), *params.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to read event archive", err.Error())
		return
	}
	out := make([]ReportEventResult, 0, len(rows))
	for i := range rows {
		evt, err := rows[i].Event()
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "corrupt archive record", err.Error())
			return
		}
		out = append(out, ReportEventResult{
			TxHash:   rows[i].TxHash,
			Sequence: rows[i].Sequence,
			Index:    rows[i].Position,
			Event:    evt,
		})
	}
	writeResult(w, req.ID, out)
}
