package bounty

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reads take no lock; they observe whatever state backend is configured.

// Report returns a copy of the report with the given id.
func (e *Engine) Report(id uint64) (*Report, error) {
	report, err := e.loadReport(id)
	if err != nil {
		return nil, err
	}
	return report.Clone(), nil
}

// LostReportIDs scans ids from offset upwards and collects at most limit ids
// of reports that are not found. hasMore is true when another not-found
// report exists past the returned page.
func (e *Engine) LostReportIDs(offset, limit uint64) ([]uint64, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	next, err := e.state.BountyNextID()
	if err != nil {
		return nil, false, err
	}
	ids := make([]uint64, 0)
	for id := offset; id < next; id++ {
		lost, err := e.isLost(id)
		if err != nil {
			return nil, false, err
		}
		if !lost {
			continue
		}
		if uint64(len(ids)) == limit {
			return ids, true, nil
		}
		ids = append(ids, id)
	}
	return ids, false, nil
}

// LostReportCount counts reports that are not found.
func (e *Engine) LostReportCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	next, err := e.state.BountyNextID()
	if err != nil {
		return 0, err
	}
	var count uint64
	for id := uint64(0); id < next; id++ {
		lost, err := e.isLost(id)
		if err != nil {
			return 0, err
		}
		if lost {
			count++
		}
	}
	return count, nil
}

// AllLostReports returns every report that is not found, in id order, with
// a parallel id slice. The result is unbounded.
func (e *Engine) AllLostReports() ([]uint64, []*Report, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	next, err := e.state.BountyNextID()
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uint64, 0)
	reports := make([]*Report, 0)
	for id := uint64(0); id < next; id++ {
		report, err := e.loadReport(id)
		if err != nil {
			return nil, nil, err
		}
		if report.IsFound {
			continue
		}
		ids = append(ids, id)
		reports = append(reports, report)
	}
	return ids, reports, nil
}

func (e *Engine) isLost(id uint64) (bool, error) {
	report, err := e.loadReport(id)
	if err != nil {
		return false, err
	}
	return !report.IsFound, nil
}

// Admin returns the current registry admin.
func (e *Engine) Admin() (common.Address, error) {
	if e == nil || e.state == nil {
		return common.Address{}, errNilState
	}
	return e.state.BountyAdmin()
}

// NextID returns the id the next report will receive.
func (e *Engine) NextID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.BountyNextID()
}

// EscrowedStable returns the stablecoin ledger entry for id. Unknown ids
// read as zero.
func (e *Engine) EscrowedStable(id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	amount, err := e.state.BountyEscrowedStable(id)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(amount), nil
}

// Locked reports whether a mutating entry point is executing.
func (e *Engine) Locked() bool {
	if e == nil {
		return false
	}
	return e.guard.Locked()
}

// Params returns the caps, addresses and field limits.
func (e *Engine) Params() Params {
	return Params{
		MaxNativeBounty: cloneBigInt(e.maxNative),
		MaxStableBounty: cloneBigInt(e.maxStable),
		StableToken:     StableTokenAddress,
		Registry:        RegistryAddress,
		Limits:          DefaultLimits(),
	}
}
