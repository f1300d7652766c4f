package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pettrace/core/events"
	"pettrace/core/genesis"
	nhstate "pettrace/core/state"
	"pettrace/core/types"
	"pettrace/native/bounty"
	"pettrace/observability"
	"pettrace/observability/logging"
	obsotel "pettrace/observability/otel"
	"pettrace/storage"
)

// ReceiptStore persists receipts of applied transactions.
type ReceiptStore interface {
	PutReceipt(*types.Receipt) error
	Receipt(hash common.Hash) (*types.Receipt, error)
	Has(hash common.Hash) (bool, error)
	Recent(limit int) ([]*types.Receipt, error)
}

// ErrReceiptNotFound is returned when no receipt is stored for a hash.
var ErrReceiptNotFound = errors.New("receipt not found")

// Node is the central controller, wiring state, execution and persistence
// together. Transactions are applied one at a time.
type Node struct {
	db       storage.Database
	state    *StateProcessor
	receipts ReceiptStore
	sink     events.Sink
	chainID  uint64
	logger   *slog.Logger
	now      func() time.Time

	stateMu sync.Mutex
}

// NewNode opens the node over db. An empty store is initialised from spec;
// a store that already carries state must match spec's chain id when spec is
// given.
func NewNode(db storage.Database, spec *genesis.GenesisSpec) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	mgr := nhstate.NewManager(db)
	chainID, err := mgr.ChainID()
	if err != nil {
		return nil, fmt.Errorf("node: read chain id: %w", err)
	}
	switch {
	case chainID == 0 && spec == nil:
		return nil, ErrNodeNotInitialised
	case chainID == 0:
		overlay := storage.NewOverlay(db)
		if err := genesis.Apply(spec, nhstate.NewManager(overlay)); err != nil {
			return nil, fmt.Errorf("node: apply genesis: %w", err)
		}
		if err := overlay.Commit(); err != nil {
			return nil, fmt.Errorf("node: commit genesis: %w", err)
		}
		chainID = spec.ChainID
		slog.Default().Info("genesis applied",
			slog.String("component", "node"),
			slog.Uint64("chainId", chainID),
			slog.Time("genesisTime", spec.GenesisTimestamp()),
			slog.Int("allocations", len(spec.Allocations())))
	case spec != nil && spec.ChainID != chainID:
		return nil, fmt.Errorf("node: store chain id %d does not match genesis chain id %d", chainID, spec.ChainID)
	}
	return &Node{
		db:      db,
		state:   NewStateProcessor(),
		chainID: chainID,
		logger:  slog.Default().With(slog.String("component", "node")),
		now:     time.Now,
	}, nil
}

// SetReceiptStore configures where receipts are persisted.
func (n *Node) SetReceiptStore(store ReceiptStore) { n.receipts = store }

// SetEventSink configures the consumer of committed events.
func (n *Node) SetEventSink(sink events.Sink) { n.sink = sink }

// SetCaps overrides the registry bounty caps.
func (n *Node) SetCaps(maxNative, maxStable *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.SetCaps(maxNative, maxStable)
}

// ChainID returns the chain id recorded at genesis.
func (n *Node) ChainID() uint64 { return n.chainID }

// SubmitTransaction validates and applies tx. A returned error means the
// transaction was rejected and left no trace. Otherwise the receipt tells
// whether it committed or reverted; a reverted transaction still consumes
// its nonce.
func (n *Node) SubmitTransaction(tx *types.Transaction) (*types.Receipt, error) {
	return n.apply(tx, true)
}

// SimulateTransaction executes tx exactly like SubmitTransaction and returns
// the receipt it would produce, then drops every write.
func (n *Node) SimulateTransaction(tx *types.Transaction) (*types.Receipt, error) {
	return n.apply(tx, false)
}

func (n *Node) apply(tx *types.Transaction, commit bool) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrInvalidPayload)
	}
	started := n.now()
	metrics := observability.Registry()
	_, span := obsotel.Tracer().Start(context.Background(), "node.apply", trace.WithAttributes(
		attribute.String("tx.type", tx.Type.String()),
		attribute.Bool("tx.commit", commit),
	))
	defer span.End()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	hash, from, err := n.precheck(tx)
	if err != nil {
		if commit {
			metrics.RecordRejected(rejectReason(err))
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	overlay := storage.NewOverlay(n.db)
	defer overlay.Discard()
	mgr := nhstate.NewManager(overlay)
	seq, err := n.consumeNonce(mgr, from)
	if err != nil {
		return nil, err
	}

	receipt := &types.Receipt{
		TxHash:    hash,
		Sequence:  seq,
		Type:      tx.Type.String(),
		From:      from,
		Nonce:     tx.Nonce,
		Status:    types.ReceiptStatusSuccess,
		Events:    []types.Event{},
		Timestamp: started.Unix(),
	}
	result, execErr := n.state.ApplyTransaction(mgr, tx, from)
	if execErr != nil {
		overlay.Discard()
		if _, err := n.consumeNonce(mgr, from); err != nil {
			return nil, err
		}
		receipt.Status = types.ReceiptStatusReverted
		receipt.Error = bounty.Reason(execErr)
		span.SetAttributes(attribute.String("tx.revert", receipt.Error))
	} else {
		receipt.ReportID = result.ReportID
		receipt.Events = result.Events
	}
	if !commit {
		return receipt, nil
	}
	if execErr != nil {
		level := slog.LevelInfo
		if bounty.Classify(execErr) == bounty.ClassInternal && !isRevertError(execErr) {
			level = slog.LevelWarn
		}
		n.logger.Log(context.Background(), level, "transaction reverted",
			slog.String("hash", events.FormatHash(hash)),
			slog.String("type", receipt.Type),
			slog.String("reason", receipt.Error),
			slog.Any("error", execErr))
	}

	if err := overlay.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	n.publish(receipt)
	if receipt.Succeeded() && tx.Type == types.TxTypePostLostPet && receipt.ReportID != nil {
		n.logReported(*receipt.ReportID)
	}

	status := "success"
	if !receipt.Succeeded() {
		status = "reverted"
	}
	metrics.RecordTransaction(receipt.Type, status, n.now().Sub(started))
	n.recordEscrowBalances()
	return receipt, nil
}

func (n *Node) precheck(tx *types.Transaction) (common.Hash, common.Address, error) {
	hash, err := tx.Hash()
	if err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	from, err := tx.From()
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	if tx.ChainID == nil || !tx.ChainID.IsUint64() || tx.ChainID.Uint64() != n.chainID {
		return common.Hash{}, common.Address{}, fmt.Errorf("%w: expected %d", ErrInvalidChainID, n.chainID)
	}
	if !tx.Type.Valid() {
		return common.Hash{}, common.Address{}, fmt.Errorf("%w: %d", ErrUnsupportedTxType, tx.Type)
	}
	if n.receipts != nil {
		known, err := n.receipts.Has(hash)
		if err != nil {
			return common.Hash{}, common.Address{}, err
		}
		if known {
			return common.Hash{}, common.Address{}, ErrKnownTransaction
		}
	}
	account, err := nhstate.NewManager(n.db).GetAccount(from)
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	if tx.Nonce != account.Nonce {
		return common.Hash{}, common.Address{}, fmt.Errorf("%w: expected %d, got %d", ErrNonceMismatch, account.Nonce, tx.Nonce)
	}
	return hash, from, nil
}

// consumeNonce bumps the sender nonce and the node sequence, returning the
// new sequence.
func (n *Node) consumeNonce(mgr *nhstate.Manager, from common.Address) (uint64, error) {
	account, err := mgr.GetAccount(from)
	if err != nil {
		return 0, err
	}
	account.Nonce++
	if err := mgr.PutAccount(from, account); err != nil {
		return 0, err
	}
	seq, err := mgr.Sequence()
	if err != nil {
		return 0, err
	}
	seq++
	if err := mgr.SetSequence(seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// publish persists the receipt and hands its events to the sink. State is
// already committed at this point, so failures are logged only.
func (n *Node) publish(receipt *types.Receipt) {
	if n.receipts != nil {
		if err := n.receipts.PutReceipt(receipt); err != nil {
			n.logger.Error("persist receipt failed",
				slog.String("hash", events.FormatHash(receipt.TxHash)),
				slog.Any("error", err))
		}
	}
	metrics := observability.Registry()
	for _, evt := range receipt.Events {
		metrics.RecordEvent(evt.Type)
	}
	if n.sink != nil && len(receipt.Events) > 0 {
		n.sink.Publish(events.FromReceipt(receipt))
	}
}

// logReported records a new listing with its contact details masked.
func (n *Node) logReported(id uint64) {
	report, err := n.Report(id)
	if err != nil {
		return
	}
	n.logger.Info("lost pet reported",
		slog.Uint64("reportId", id),
		slog.String("name", report.Name),
		logging.Contact(report.ContactName, report.ContactPhone, report.ContactEmail))
}

func (n *Node) recordEscrowBalances() {
	mgr := nhstate.NewManager(n.db)
	metrics := observability.Registry()
	if account, err := mgr.GetAccount(bounty.RegistryAddress); err == nil {
		metrics.SetEscrowBalance(NativeAssetSymbol, account.Balance, NativeDecimals)
	}
	token := stableToken(mgr)
	if balance, err := token.BalanceOf(bounty.RegistryAddress); err == nil {
		metrics.SetEscrowBalance(token.Symbol(), balance, token.Decimals())
	}
}

func isRevertError(err error) bool {
	return errors.Is(err, ErrValueNotAccepted) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, nhstate.ErrInsufficientBalance) ||
		errors.Is(err, nhstate.ErrInsufficientAllowance) ||
		errors.Is(err, nhstate.ErrNegativeAmount)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, types.ErrMissingSignature), errors.Is(err, types.ErrInvalidSignature):
		return "signature"
	case errors.Is(err, ErrInvalidChainID):
		return "chain_id"
	case errors.Is(err, ErrNonceMismatch):
		return "nonce"
	case errors.Is(err, ErrUnsupportedTxType):
		return "type"
	case errors.Is(err, ErrKnownTransaction):
		return "duplicate"
	default:
		return "other"
	}
}
