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
)

// Ledger is the narrow capability surface the engine uses to move
// stablecoin units in and out of its own custody. It is the only
// collaborator called before a state mutation (Pull, in create_shake),
// and it is called after the status write in every settlement path
// (Push), ahead of the ReputationSink; see the concurrency model for why
// that ordering matters.
//
// Modeled on a minimal balance-adder capability interface, generalized
// to the pull/push pair this engine's custody model needs.
type Ledger interface {
	// Pull moves amount out of from's balance into the engine's
	// custody. Returns a non-nil error on insufficient allowance/balance
	// or any underlying failure; the engine reports any such error to its
	// own caller wrapped as ErrLedgerPullFailed.
	Pull(ctx context.Context, from Principal, amount *big.Int) error

	// Push moves amount out of the engine's custody into to's balance.
	// In every settlement path the shake's status is already committed
	// before Push is called, and is never reverted if Push fails: the
	// error is returned to the caller so it can be logged and the
	// payout reconciled out-of-band, but the settlement itself stands.
	// A retry must observe the shake's new terminal status rather than
	// silently re-attempting the transition.
	Push(ctx context.Context, to Principal, amount *big.Int) error

	// CustodyBalance reads the engine's own balance, for sanity checks
	// that total custody matches the sum of every non-terminal shake's
	// un-delegated funds. Not used internally by any state transition;
	// exposed for hosts and tests.
	CustodyBalance(ctx context.Context) (*big.Int, error)
}
