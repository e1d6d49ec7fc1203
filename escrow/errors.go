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
	"errors"
	"fmt"
	"time"
)

// Precondition violations (caller error).
var (
	ErrAmountZero          = errors.New("amount must be positive")
	ErrDeadlineZero        = errors.New("deadline duration must be positive")
	ErrNotPending          = errors.New("shake is not Pending")
	ErrNotActive           = errors.New("shake is not Active")
	ErrNotDelivered        = errors.New("shake is not Delivered")
	ErrNotDisputed         = errors.New("shake is not Disputed")
	ErrAlreadyAccepted     = errors.New("shake already has a worker")
	ErrNotWorker           = errors.New("caller is not the shake's worker")
	ErrNotRequester        = errors.New("caller is not the shake's requester")
	ErrNotTreasury         = errors.New("caller is not the treasury principal")
	ErrNotParentWorker     = errors.New("caller is not the parent shake's worker")
	ErrParentNotActive     = errors.New("parent shake is not Active")
	ErrExceedsParentBudget = errors.New("amount exceeds parent's remaining budget")
	ErrCannotRefund        = errors.New("shake is not refundable from its current status")
	ErrShakeNotFound       = errors.New("shake id not found")
)

// Timing violations.
var (
	ErrDeadlinePassed      = errors.New("deadline has passed")
	ErrDeadlineNotPassed   = errors.New("deadline has not passed")
	ErrDisputeWindowActive = errors.New("dispute window is still active")
	ErrDisputeWindowClosed = errors.New("dispute window has closed")
)

// Subtree/cascade violations.
var (
	ErrChildrenNotSettled = errors.New("a direct child is not in a terminal status")
	ErrSubtreeNotClean    = errors.New("a descendant shake is Disputed")
)

// Ledger failures.
var (
	ErrLedgerPullFailed = errors.New("ledger pull failed")
	ErrLedgerPushFailed = errors.New("ledger push failed")
)

// TimingError wraps one of the timing-violation sentinels with the clock
// reading and boundary that were compared, per the debuggability
// requirement: callers that only care about the tag keep working via
// errors.Is/errors.Unwrap; callers that want the detail can type-assert.
type TimingError struct {
	Tag      error
	Now      time.Time
	Boundary time.Time
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("%s (now=%s boundary=%s)", e.Tag, e.Now.Format(time.RFC3339), e.Boundary.Format(time.RFC3339))
}

func (e *TimingError) Unwrap() error { return e.Tag }

func timingErr(tag error, now, boundary time.Time) error {
	return &TimingError{Tag: tag, Now: now, Boundary: boundary}
}
