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

	"github.com/clawshake/shake/log"
)

var reputationLogger = log.NewModuleLogger(log.Reputation)

// ReputationSink receives an outcome record when a shake is released or
// its dispute is resolved. It is an append-only side channel, not part
// of the money-path invariant: the engine does not gate settlement on
// it, and swallows its errors (after logging them).
type ReputationSink interface {
	// Record is called once after a successful release or dispute
	// resolution, once every ledger push for it has succeeded. It is not
	// called for a deadline refund (RefundShake), nor when a settlement's
	// ledger push fails. The engine calls Record at most once per shake
	// because Released and Refunded are terminal statuses that a shake
	// can never leave; a sink that needs de-duplication beyond that can
	// key on (worker, shakeID) itself.
	Record(ctx context.Context, worker Principal, earned *big.Int, success bool) error
}

// safeRecord calls sink.Record and swallows any error after logging it:
// reputation tracking is best-effort and must never block or fail a
// settlement that has already committed.
func safeRecord(ctx context.Context, sink ReputationSink, shakeID uint64, worker Principal, earned *big.Int, success bool) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, worker, earned, success); err != nil {
		reputationLogger.Warn("reputation sink record failed", "shake", shakeID, "worker", worker, "success", success, "err", err)
	}
}
