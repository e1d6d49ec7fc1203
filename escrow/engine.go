// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package escrow

import (
	"context"
	"math/big"
	"sync"

	"github.com/pborman/uuid"

	"github.com/clawshake/shake/log"
	"github.com/clawshake/shake/metrics"
)

var engineLogger = log.NewModuleLogger(log.Escrow)

// Engine is the single entry point for escrow operations: every public
// method validates against the current committed snapshot, mutates
// shake records/adjacency/remaining-budget, invokes the Ledger and
// ReputationSink collaborators in a fixed order, and returns a typed
// error on any precondition failure.
//
// Concurrency: by default Engine serializes operations per root tree (a
// mutex keyed by root id); WithGlobalLock switches to a single
// engine-wide mutex instead. Either way, no operation straddles two
// independent root trees.
type Engine struct {
	cfg   Config
	store Store

	ledger     Ledger
	reputation ReputationSink
	feePolicy  FeePolicy

	globalMu sync.Mutex // serializes root creation; also the engine-wide lock under WithGlobalLock

	treeMu    sync.Map // rootID(uint64) -> *sync.Mutex; only used when !cfg.UseGlobalLock
	rootIdxMu sync.Mutex
	rootIdx   map[uint64]uint64 // shake id -> its root id
}

// NewEngine constructs an Engine. ledger and reputation must not be nil;
// feePolicy may be nil, in which case Config.ProtocolFeeBPS is used
// directly via an internal StaticFeePolicy.
func NewEngine(store Store, ledger Ledger, reputation ReputationSink, feePolicy FeePolicy, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if store == nil {
		store = NewMemStore(1024)
	}
	if feePolicy == nil {
		feePolicy = NewStaticFeePolicy(cfg.ProtocolFeeBPS)
	}
	return &Engine{
		cfg:        cfg,
		store:      store,
		ledger:     ledger,
		reputation: reputation,
		feePolicy:  feePolicy,
		rootIdx:    make(map[uint64]uint64),
	}
}

// lockRoot acquires (and, on first use, lazily creates) the mutex for
// the tree rooted at rootID, returning an unlock func. Under
// WithGlobalLock it always locks the same engine-wide mutex regardless
// of rootID.
func (e *Engine) lockRoot(rootID uint64) func() {
	if e.cfg.UseGlobalLock {
		e.globalMu.Lock()
		return e.globalMu.Unlock
	}
	v, _ := e.treeMu.LoadOrStore(rootID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// rootOf resolves the root id of a shake from the engine's lightweight
// id->root index, populated at creation time so that resolving which
// tree-lock to take never itself requires walking the store under lock.
func (e *Engine) rootOf(id uint64) (uint64, bool) {
	e.rootIdxMu.Lock()
	defer e.rootIdxMu.Unlock()
	root, ok := e.rootIdx[id]
	return root, ok
}

func (e *Engine) recordRoot(id, root uint64) {
	e.rootIdxMu.Lock()
	defer e.rootIdxMu.Unlock()
	e.rootIdx[id] = root
}

// CreateShake allocates a new root shake, pulls amount from caller into
// custody before any state mutation, and commits it as Pending.
func (e *Engine) CreateShake(ctx context.Context, caller Principal, amount *big.Int, deadlineDuration int64, taskFingerprint Fingerprint, pubkeyHash Fingerprint) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrAmountZero
	}
	if deadlineDuration <= 0 {
		return 0, ErrDeadlineZero
	}

	e.globalMu.Lock()
	defer e.globalMu.Unlock()

	if err := e.ledger.Pull(ctx, caller, amount); err != nil {
		engineLogger.Warn("ledger pull failed", "caller", caller, "amount", amount, "err", err)
		metrics.IncLedgerPullFailure()
		return 0, wrapLedgerErr(ErrLedgerPullFailed, err)
	}

	now := e.cfg.Clock.Now().Unix()
	id := e.store.NextID()
	shake := newShake(id, caller, amount, now+deadlineDuration, taskFingerprint, pubkeyHash)
	e.store.PutShake(shake)
	e.recordRoot(id, id)

	metrics.IncShakesCreated()
	// corrID is a log-correlation token only; the engine itself never
	// persists or compares it. A host wanting idempotent creation
	// should dedupe on its own key before calling CreateShake.
	corrID := uuid.New()
	engineLogger.Info("shake created", "id", id, "corrID", corrID, "requester", caller, "amount", amount)
	return id, nil
}

func wrapLedgerErr(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &ledgerErr{sentinel: sentinel, cause: cause}
}

type ledgerErr struct {
	sentinel error
	cause    error
}

func (e *ledgerErr) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *ledgerErr) Unwrap() error { return e.sentinel }
func (e *ledgerErr) Cause() error  { return e.cause }
