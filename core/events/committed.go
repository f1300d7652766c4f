package events

import (
	"github.com/ethereum/go-ethereum/common"

	"pettrace/core/types"
)

// Committed is an event that belongs to a committed transaction. Sequence is
// the node-wide application counter and Index the position inside the
// transaction's receipt.
type Committed struct {
	TxHash   common.Hash `json:"txHash"`
	Sequence uint64      `json:"sequence"`
	Index    int         `json:"index"`
	Event    types.Event `json:"event"`
}

// Sink receives committed events after their transaction has been persisted.
type Sink interface {
	Publish([]Committed)
}

// FromReceipt expands a receipt into its committed events.
func FromReceipt(r *types.Receipt) []Committed {
	if r == nil || len(r.Events) == 0 {
		return nil
	}
	out := make([]Committed, 0, len(r.Events))
	for i := range r.Events {
		out = append(out, Committed{
			TxHash:   r.TxHash,
			Sequence: r.Sequence,
			Index:    i,
			Event:    *r.Events[i].Clone(),
		})
	}
	return out
}

// Fanout publishes to every non-nil sink in order.
type Fanout []Sink

func (f Fanout) Publish(batch []Committed) {
	for _, sink := range f {
		if sink != nil {
			sink.Publish(batch)
		}
	}
}
