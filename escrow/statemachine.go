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
	"time"

	"github.com/clawshake/shake/metrics"
)

func (e *Engine) getShake(id uint64) (*Shake, error) {
	s, ok := e.store.GetShake(id)
	if !ok {
		return nil, ErrShakeNotFound
	}
	return s, nil
}

// AcceptShake binds a worker to a Pending shake before its deadline,
// moving it to Active.
func (e *Engine) AcceptShake(ctx context.Context, id uint64, caller Principal) error {
	root, ok := e.rootOf(id)
	if !ok {
		return ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return err
	}
	if s.status != StatusPending {
		return ErrNotPending
	}
	if !s.worker.IsZero() {
		return ErrAlreadyAccepted
	}
	now := e.cfg.Clock.Now()
	if now.Unix() >= s.deadlineAt {
		return timingErr(ErrDeadlinePassed, now, time.Unix(s.deadlineAt, 0))
	}

	s.worker = caller
	s.status = StatusActive
	e.store.PutShake(s)
	e.store.SetRemaining(id, s.amount)

	engineLogger.Info("shake accepted", "id", id, "worker", caller)
	return nil
}

// DeliverShake records the worker's delivery fingerprint and moves an
// Active shake to Delivered, starting its dispute window.
func (e *Engine) DeliverShake(ctx context.Context, id uint64, caller Principal, deliveryFingerprint, encryptedDeliveryKey Fingerprint) error {
	root, ok := e.rootOf(id)
	if !ok {
		return ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return err
	}
	if s.status != StatusActive {
		return ErrNotActive
	}
	if s.worker != caller {
		return ErrNotWorker
	}

	s.deliveryFingerprint = deliveryFingerprint
	s.encryptedDeliveryKey = encryptedDeliveryKey
	s.deliveredAt = e.cfg.Clock.Now().Unix()
	s.status = StatusDelivered
	e.store.PutShake(s)

	engineLogger.Info("shake delivered", "id", id, "worker", caller)
	return nil
}

// CreateChildShake lets an Active shake's worker delegate part of its
// own budget to a new child shake it requests. No ledger movement
// occurs: the parent's original deposit already covers the child, so
// only remaining[parent_id] is decremented.
func (e *Engine) CreateChildShake(ctx context.Context, parentID uint64, caller Principal, amount *big.Int, deadlineDuration int64, taskFingerprint Fingerprint) (uint64, error) {
	root, ok := e.rootOf(parentID)
	if !ok {
		return 0, ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	parent, err := e.getShake(parentID)
	if err != nil {
		return 0, err
	}
	if parent.status != StatusActive {
		return 0, ErrParentNotActive
	}
	if parent.worker != caller {
		return 0, ErrNotParentWorker
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrAmountZero
	}
	remaining, ok := e.store.Remaining(parentID)
	if !ok || amount.Cmp(remaining) > 0 {
		return 0, ErrExceedsParentBudget
	}
	if deadlineDuration <= 0 {
		return 0, ErrDeadlineZero
	}

	newRemaining := new(big.Int).Sub(remaining, amount)
	e.store.SetRemaining(parentID, newRemaining)

	now := e.cfg.Clock.Now().Unix()
	childID := e.store.NextID()
	child := newShake(childID, caller, amount, now+deadlineDuration, taskFingerprint, Fingerprint{})
	child.isChild = true
	child.parentID = parentID
	e.store.PutShake(child)
	e.store.AppendChild(parentID, childID)
	e.recordRoot(childID, root)

	engineLogger.Info("child shake created", "parent", parentID, "child", childID, "amount", amount)
	return childID, nil
}

// DisputeShake lets the requester contest a Delivered shake within its
// dispute window. It marks id Disputed and freezes every ancestor
// currently Active or Delivered, regardless of how many levels up they
// sit.
func (e *Engine) DisputeShake(ctx context.Context, id uint64, caller Principal) error {
	root, ok := e.rootOf(id)
	if !ok {
		return ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return err
	}
	if s.status != StatusDelivered {
		return ErrNotDelivered
	}
	if s.requester != caller {
		return ErrNotRequester
	}
	now := e.cfg.Clock.Now()
	windowEnd := time.Unix(s.deliveredAt, 0).Add(e.cfg.DisputeWindow)
	if !now.Before(windowEnd) {
		return timingErr(ErrDisputeWindowClosed, now, windowEnd)
	}

	s.status = StatusDisputed
	e.store.PutShake(s)
	freezeAncestors(e.store, id)

	metrics.IncShakesDisputed()
	engineLogger.Info("shake disputed", "id", id, "requester", caller)
	return nil
}

// settlementAmounts computes the (fee, childSpend, workerNet) triple
// shared by release_shake and the worker-wins branch of resolve_dispute.
func (e *Engine) settlementAmounts(s *Shake) (fee, childSpend, workerNet *big.Int) {
	remaining, ok := e.store.Remaining(s.id)
	if !ok {
		remaining = new(big.Int) // Delivered without ever being Active is impossible, but stay defensive
	}
	childSpend = new(big.Int).Sub(s.amount, remaining)
	d := depth(e.store, s.id)
	bps := e.feePolicy.FeeBPS(s.amount, d)
	fee = computeFee(s.amount, bps)
	workerNet = new(big.Int).Sub(s.amount, childSpend)
	workerNet.Sub(workerNet, fee)
	return fee, childSpend, workerNet
}

// ReleaseShake settles a Delivered shake with no unsettled children and
// no Disputed descendant, paying the worker its net amount and the
// protocol fee to the treasury.
func (e *Engine) ReleaseShake(ctx context.Context, id uint64, caller Principal) error {
	root, ok := e.rootOf(id)
	if !ok {
		return ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return err
	}
	if s.status != StatusDelivered {
		return ErrNotDelivered
	}
	if err := e.checkChildrenSettled(id); err != nil {
		return err
	}
	if !isSubtreeClean(e.store, id) {
		return ErrSubtreeNotClean
	}

	now := e.cfg.Clock.Now()
	windowEnd := effectiveWindowEnd(s, e.cfg.DisputeWindow)
	if caller != s.requester && now.Before(windowEnd) {
		return timingErr(ErrDisputeWindowActive, now, windowEnd)
	}

	fee, _, workerNet := e.settlementAmounts(s)
	s.status = StatusReleased
	e.store.PutShake(s)

	if err := e.ledger.Push(ctx, s.worker, workerNet); err != nil {
		engineLogger.Error("ledger push to worker failed after release committed", "id", id, "worker", s.worker, "amount", workerNet, "err", err)
		metrics.IncLedgerPushFailure()
		return wrapLedgerErr(ErrLedgerPushFailed, err)
	}
	if err := e.ledger.Push(ctx, e.cfg.Treasury, fee); err != nil {
		engineLogger.Error("ledger push to treasury failed after release committed", "id", id, "amount", fee, "err", err)
		metrics.IncLedgerPushFailure()
		return wrapLedgerErr(ErrLedgerPushFailed, err)
	}

	safeRecord(ctx, e.reputation, id, s.worker, workerNet, true)
	metrics.IncShakesReleased()
	metrics.AddFeeCollected(fee)
	metrics.ObserveSettlementDepth(depth(e.store, id))
	engineLogger.Info("shake released", "id", id, "worker", s.worker, "workerNet", workerNet, "fee", fee)
	return nil
}

// checkChildrenSettled returns ErrChildrenNotSettled if any direct child
// of id is not yet in a terminal status — a cheaper, shallower check
// than isSubtreeClean, kept alongside it so callers still see a distinct
// error for "unsettled child" versus "disputed descendant".
func (e *Engine) checkChildrenSettled(id uint64) error {
	for _, childID := range e.store.Children(id) {
		child, ok := e.store.GetShake(childID)
		if !ok {
			continue
		}
		if !child.status.Terminal() {
			return ErrChildrenNotSettled
		}
	}
	return nil
}

// effectiveWindowEnd computes
// max(delivered_at + dispute_window, dispute_frozen_until).
func effectiveWindowEnd(s *Shake, disputeWindow time.Duration) time.Time {
	windowEnd := time.Unix(s.deliveredAt, 0).Add(disputeWindow)
	if s.disputeFrozenUntil != 0 {
		frozenUntil := time.Unix(s.disputeFrozenUntil, 0)
		if s.disputeFrozenUntil == timeCeiling {
			// Sentinel: frozen "forever" until the subtree clears, not
			// until a real clock reading.
			return time.Unix(1<<62, 0)
		}
		if frozenUntil.After(windowEnd) {
			return frozenUntil
		}
	}
	return windowEnd
}

// ResolveDispute lets the treasury adjudicate a Disputed shake, paying
// either the worker (net of fee) or refunding the requester's
// undelegated remainder, then unfreezing any ancestor whose subtree has
// gone clean again.
func (e *Engine) ResolveDispute(ctx context.Context, id uint64, caller Principal, workerWins bool) error {
	root, ok := e.rootOf(id)
	if !ok {
		return ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return err
	}
	if s.status != StatusDisputed {
		return ErrNotDisputed
	}
	if caller != e.cfg.Treasury {
		return ErrNotTreasury
	}

	if workerWins {
		fee, _, workerNet := e.settlementAmounts(s)
		s.status = StatusReleased
		e.store.PutShake(s)

		if err := e.ledger.Push(ctx, s.worker, workerNet); err != nil {
			engineLogger.Error("ledger push to worker failed after resolve committed", "id", id, "err", err)
			metrics.IncLedgerPushFailure()
			return wrapLedgerErr(ErrLedgerPushFailed, err)
		}
		if err := e.ledger.Push(ctx, e.cfg.Treasury, fee); err != nil {
			engineLogger.Error("ledger push to treasury failed after resolve committed", "id", id, "err", err)
			metrics.IncLedgerPushFailure()
			return wrapLedgerErr(ErrLedgerPushFailed, err)
		}
		safeRecord(ctx, e.reputation, id, s.worker, workerNet, true)
		metrics.IncShakesReleased()
		metrics.AddFeeCollected(fee)
		engineLogger.Info("dispute resolved for worker", "id", id, "worker", s.worker)
	} else {
		remaining, ok := e.store.Remaining(s.id)
		if !ok {
			remaining = new(big.Int)
		}
		s.status = StatusRefunded
		e.store.PutShake(s)

		if err := e.ledger.Push(ctx, s.requester, remaining); err != nil {
			engineLogger.Error("ledger push to requester failed after resolve committed", "id", id, "err", err)
			metrics.IncLedgerPushFailure()
			return wrapLedgerErr(ErrLedgerPushFailed, err)
		}
		safeRecord(ctx, e.reputation, id, s.worker, new(big.Int), false)
		metrics.IncShakesRefunded()
		engineLogger.Info("dispute resolved against worker", "id", id, "worker", s.worker)
	}

	unfreezeAncestors(e.store, id)
	return nil
}

// RefundShake returns a shake's undelegated funds to its requester once
// its deadline has passed without settling: the full deposit if it was
// never accepted, or whatever remains undelegated if it was Active.
func (e *Engine) RefundShake(ctx context.Context, id uint64) error {
	root, ok := e.rootOf(id)
	if !ok {
		return ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return err
	}
	if s.status != StatusPending && s.status != StatusActive {
		return ErrCannotRefund
	}
	now := e.cfg.Clock.Now()
	if now.Unix() < s.deadlineAt {
		return timingErr(ErrDeadlineNotPassed, now, time.Unix(s.deadlineAt, 0))
	}

	var payout *big.Int
	if s.status == StatusPending {
		payout = s.amount
	} else {
		remaining, ok := e.store.Remaining(s.id)
		if !ok {
			remaining = new(big.Int)
		}
		payout = remaining
	}

	s.status = StatusRefunded
	e.store.PutShake(s)

	if err := e.ledger.Push(ctx, s.requester, payout); err != nil {
		engineLogger.Error("ledger push to requester failed after refund committed", "id", id, "err", err)
		metrics.IncLedgerPushFailure()
		return wrapLedgerErr(ErrLedgerPushFailed, err)
	}

	metrics.IncShakesRefunded()
	engineLogger.Info("shake refunded", "id", id, "requester", s.requester, "amount", payout)
	return nil
}
