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

// Package ledgertest provides an in-memory Ledger fake for tests,
// modeled on the balance bookkeeping in contracts/reward's
// BalanceAdder: a plain map of principal to *big.Int, mutated directly
// rather than through any consensus or trie machinery.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/clawshake/shake/escrow"
)

// Ledger is a synchronized in-memory escrow.Ledger. Callers can seed
// balances with Credit and inspect them with Balance from a test's
// assertions without needing to go through Pull/Push.
type Ledger struct {
	mu       sync.Mutex
	balances map[escrow.Principal]*big.Int
	custody  *big.Int

	// FailPull/FailPush, when non-nil, are returned verbatim by the next
	// matching call instead of mutating state, then cleared. Used to
	// exercise the engine's ledger-failure paths deterministically.
	FailPull error
	FailPush error
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[escrow.Principal]*big.Int),
		custody:  new(big.Int),
	}
}

// Credit seeds principal's spendable balance, for test setup only.
func (l *Ledger) Credit(p escrow.Principal, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceLocked(p)
	bal.Add(bal, amount)
}

// Balance returns principal's current spendable balance.
func (l *Ledger) Balance(p escrow.Principal) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(p))
}

// Custody returns the total currently pulled into escrow custody and not
// yet pushed back out.
func (l *Ledger) Custody() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.custody)
}

func (l *Ledger) balanceLocked(p escrow.Principal) *big.Int {
	b, ok := l.balances[p]
	if !ok {
		b = new(big.Int)
		l.balances[p] = b
	}
	return b
}

func (l *Ledger) Pull(ctx context.Context, from escrow.Principal, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailPull != nil {
		err := l.FailPull
		l.FailPull = nil
		return err
	}
	bal := l.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("ledgertest: %s has insufficient balance: has %s, need %s", from, bal, amount)
	}
	bal.Sub(bal, amount)
	l.custody.Add(l.custody, amount)
	return nil
}

func (l *Ledger) Push(ctx context.Context, to escrow.Principal, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailPush != nil {
		err := l.FailPush
		l.FailPush = nil
		return err
	}
	if l.custody.Cmp(amount) < 0 {
		return fmt.Errorf("ledgertest: custody has insufficient balance: has %s, need %s", l.custody, amount)
	}
	l.custody.Sub(l.custody, amount)
	bal := l.balanceLocked(to)
	bal.Add(bal, amount)
	return nil
}

func (l *Ledger) CustodyBalance(ctx context.Context) (*big.Int, error) {
	return l.Custody(), nil
}

// Outcome is one recorded ReputationSink.Record call.
type Outcome struct {
	Worker  escrow.Principal
	Earned  *big.Int
	Success bool
}

// ReputationSink is an in-memory escrow.ReputationSink fake that
// appends every call for test assertions.
type ReputationSink struct {
	mu       sync.Mutex
	Outcomes []Outcome
	FailNext error
}

func NewReputationSink() *ReputationSink { return &ReputationSink{} }

func (r *ReputationSink) Record(ctx context.Context, worker escrow.Principal, earned *big.Int, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNext != nil {
		err := r.FailNext
		r.FailNext = nil
		return err
	}
	r.Outcomes = append(r.Outcomes, Outcome{Worker: worker, Earned: new(big.Int).Set(earned), Success: success})
	return nil
}

// FakeClock is a mutable escrow.Clock for deterministic timing tests.
type FakeClock struct {
	mu  sync.Mutex
	now int64 // unix seconds
}

func NewFakeClock(start int64) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

func (c *FakeClock) Advance(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

func (c *FakeClock) Set(unixSeconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = unixSeconds
}
