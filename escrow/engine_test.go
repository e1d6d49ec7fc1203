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

package escrow_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawshake/shake/escrow"
	"github.com/clawshake/shake/escrow/ledgertest"
)

var (
	requesterAddr = escrow.Principal{0x01}
	workerAddr    = escrow.Principal{0x02}
	treasuryAddr  = escrow.Principal{0x03}
)

func newTestEngine(t *testing.T, opts ...escrow.Option) (*escrow.Engine, *ledgertest.Ledger, *ledgertest.ReputationSink, *ledgertest.FakeClock) {
	t.Helper()
	ledger := ledgertest.New()
	reputation := ledgertest.NewReputationSink()
	clock := ledgertest.NewFakeClock(1_700_000_000)

	fullOpts := append([]escrow.Option{
		escrow.WithClock(clock),
		escrow.WithTreasury(treasuryAddr),
		escrow.WithProtocolFeeBPS(250),
	}, opts...)

	engine := escrow.NewEngine(nil, ledger, reputation, nil, fullOpts...)
	return engine, ledger, reputation, clock
}

// Create, accept, deliver, release with no children settles the
// worker net-of-fee and the protocol fee to the treasury.
func TestReleaseNoChildren(t *testing.T) {
	engine, ledger, reputation, clock := newTestEngine(t)
	ctx := context.Background()

	ledger.Credit(requesterAddr, big.NewInt(100000))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(100000), 3600, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)

	require.NoError(t, engine.AcceptShake(ctx, id, workerAddr))
	require.NoError(t, engine.DeliverShake(ctx, id, workerAddr, escrow.Fingerprint{0xaa}, escrow.Fingerprint{0xbb}))

	clock.Advance(1) // delivered_at moment itself is still within the window
	require.NoError(t, engine.ReleaseShake(ctx, id, requesterAddr))

	s, err := engine.GetShake(id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusReleased, s.Status())

	// fee = 100000 * 250 / 10000 = 2500
	assert.Equal(t, big.NewInt(2500), ledger.Balance(treasuryAddr))
	assert.Equal(t, big.NewInt(97500), ledger.Balance(workerAddr))
	assert.Equal(t, 0, ledger.Custody().Sign())
	require.Len(t, reputation.Outcomes, 1)
	assert.True(t, reputation.Outcomes[0].Success)
}

// A child shake carves out part of the parent's remaining budget, sits
// one edge below the root, and can be settled on its own by the parent's
// worker acting as the child's requester.
func TestCreateChildReducesParentRemaining(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	ctx := context.Background()

	ledger.Credit(requesterAddr, big.NewInt(100000))
	parentID, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(100000), 3600, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, parentID, workerAddr))

	childWorker := escrow.Principal{0x04}
	childID, err := engine.CreateChildShake(ctx, parentID, workerAddr, big.NewInt(40000), 3600, escrow.Fingerprint{0x10})
	require.NoError(t, err)

	remaining, ok, err := engine.RemainingBudget(parentID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(60000), remaining)

	d, err := engine.Depth(childID)
	require.NoError(t, err)
	assert.Equal(t, 1, d)

	require.NoError(t, engine.AcceptShake(ctx, childID, childWorker))
	require.NoError(t, engine.DeliverShake(ctx, childID, childWorker, escrow.Fingerprint{0xaa}, escrow.Fingerprint{0xbb}))
	require.NoError(t, engine.ReleaseShake(ctx, childID, workerAddr))

	child, err := engine.GetShake(childID)
	require.NoError(t, err)
	assert.True(t, child.Status().Terminal())
}

// Releasing a parent before a direct child settles fails with
// ErrChildrenNotSettled even though the subtree contains no Disputed
// shake.
func TestReleaseBlockedByUnsettledChild(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	ctx := context.Background()

	ledger.Credit(requesterAddr, big.NewInt(100000))
	parentID, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(100000), 3600, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, parentID, workerAddr))

	_, err = engine.CreateChildShake(ctx, parentID, workerAddr, big.NewInt(1000), 60, escrow.Fingerprint{})
	require.NoError(t, err)

	require.NoError(t, engine.DeliverShake(ctx, parentID, workerAddr, escrow.Fingerprint{}, escrow.Fingerprint{}))

	err = engine.ReleaseShake(ctx, parentID, requesterAddr)
	assert.ErrorIs(t, err, escrow.ErrChildrenNotSettled)
}

// Disputing a child freezes every ancestor's dispute window open;
// releasing an ancestor without requester consent fails until the
// dispute is resolved and the subtree goes clean again.
func TestDisputeFreezesAncestors(t *testing.T) {
	engine, ledger, _, clock := newTestEngine(t, escrow.WithDisputeWindow(5*time.Second))
	ctx := context.Background()

	ledger.Credit(requesterAddr, big.NewInt(100000))
	parentID, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(100000), 3600, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, parentID, workerAddr))

	childWorker := escrow.Principal{0x04}
	childID, err := engine.CreateChildShake(ctx, parentID, workerAddr, big.NewInt(20000), 3600, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, childID, childWorker))
	require.NoError(t, engine.DeliverShake(ctx, childID, childWorker, escrow.Fingerprint{}, escrow.Fingerprint{}))

	// The child's own requester is the parent's worker.
	require.NoError(t, engine.DisputeShake(ctx, childID, workerAddr))

	require.NoError(t, engine.DeliverShake(ctx, parentID, workerAddr, escrow.Fingerprint{}, escrow.Fingerprint{}))

	// Even though the child's own dispute window has long since
	// elapsed, the parent stays frozen by the unresolved child dispute.
	clock.Advance(10)
	err = engine.ReleaseShake(ctx, parentID, workerAddr) // caller != requester
	assert.Error(t, err)

	require.NoError(t, engine.ResolveDispute(ctx, childID, treasuryAddr, true))

	diag, err := engine.SubtreeDiagnostics(parentID)
	require.NoError(t, err)
	assert.True(t, diag.Clean)

	require.NoError(t, engine.ReleaseShake(ctx, parentID, requesterAddr))
}

// A requester-consented release bypasses the dispute window entirely.
func TestRequesterConsentBypassesWindow(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t, escrow.WithDisputeWindow(48*time.Hour))
	ctx := context.Background()

	ledger.Credit(requesterAddr, big.NewInt(5000))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(5000), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, id, workerAddr))
	require.NoError(t, engine.DeliverShake(ctx, id, workerAddr, escrow.Fingerprint{}, escrow.Fingerprint{}))

	require.NoError(t, engine.ReleaseShake(ctx, id, requesterAddr))
}

// Refunding a shake past its deadline with no acceptance returns the
// full deposit; refunding an Active shake that has delegated part of its
// budget to a child returns only the remaining, un-delegated budget.
func TestRefundPendingAndActive(t *testing.T) {
	engine, ledger, _, clock := newTestEngine(t)
	ctx := context.Background()

	ledger.Credit(requesterAddr, big.NewInt(10000))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(10000), 100, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)

	clock.Advance(101)
	require.NoError(t, engine.RefundShake(ctx, id))
	assert.Equal(t, big.NewInt(10000), ledger.Balance(requesterAddr))

	ledger.Credit(requesterAddr, big.NewInt(10000))
	id2, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(10000), 100, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, id2, workerAddr))
	_, err = engine.CreateChildShake(ctx, id2, workerAddr, big.NewInt(3000), 50, escrow.Fingerprint{})
	require.NoError(t, err)

	clock.Advance(101)
	before := ledger.Balance(requesterAddr)
	require.NoError(t, engine.RefundShake(ctx, id2))
	after := ledger.Balance(requesterAddr)
	assert.Equal(t, big.NewInt(7000), new(big.Int).Sub(after, before))
}

func TestCreateShakeRejectsNonPositiveAmount(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	_, err := engine.CreateShake(context.Background(), requesterAddr, big.NewInt(0), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	assert.ErrorIs(t, err, escrow.ErrAmountZero)
}

func TestCreateShakeRejectsZeroDeadline(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	ledger.Credit(requesterAddr, big.NewInt(1))
	_, err := engine.CreateShake(context.Background(), requesterAddr, big.NewInt(1), 0, escrow.Fingerprint{}, escrow.Fingerprint{})
	assert.ErrorIs(t, err, escrow.ErrDeadlineZero)
}

func TestAcceptShakeTwiceFails(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	ctx := context.Background()
	ledger.Credit(requesterAddr, big.NewInt(1))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(1), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, id, workerAddr))
	err = engine.AcceptShake(ctx, id, workerAddr)
	assert.ErrorIs(t, err, escrow.ErrNotPending)
}

func TestAcceptShakeAfterDeadlineFails(t *testing.T) {
	engine, ledger, _, clock := newTestEngine(t)
	ctx := context.Background()
	ledger.Credit(requesterAddr, big.NewInt(1))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(1), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)

	clock.Advance(61)
	err = engine.AcceptShake(ctx, id, workerAddr)
	var timingErr *escrow.TimingError
	require.ErrorAs(t, err, &timingErr)
	assert.ErrorIs(t, err, escrow.ErrDeadlinePassed)
}

func TestCreateChildExceedingBudgetFails(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	ctx := context.Background()
	ledger.Credit(requesterAddr, big.NewInt(100))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(100), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, id, workerAddr))

	_, err = engine.CreateChildShake(ctx, id, workerAddr, big.NewInt(101), 10, escrow.Fingerprint{})
	assert.ErrorIs(t, err, escrow.ErrExceedsParentBudget)
}

// Boundary: amount equal to the entire remaining budget is allowed.
func TestCreateChildAtExactRemainingBudget(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	ctx := context.Background()
	ledger.Credit(requesterAddr, big.NewInt(100))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(100), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, id, workerAddr))

	_, err = engine.CreateChildShake(ctx, id, workerAddr, big.NewInt(100), 10, escrow.Fingerprint{})
	require.NoError(t, err)

	remaining, ok, err := engine.RemainingBudget(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, remaining.Sign())
}

// Boundary: a very large amount exercises big.Int arithmetic beyond
// what a u64 could hold, rather than silently wrapping.
func TestLargeAmountDoesNotOverflow(t *testing.T) {
	engine, ledger, _, clock := newTestEngine(t)
	ctx := context.Background()

	huge := new(big.Int).Mul(big.NewInt(1<<62), big.NewInt(1<<10))
	ledger.Credit(requesterAddr, huge)
	id, err := engine.CreateShake(ctx, requesterAddr, huge, 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, id, workerAddr))
	require.NoError(t, engine.DeliverShake(ctx, id, workerAddr, escrow.Fingerprint{}, escrow.Fingerprint{}))
	clock.Advance(1)
	require.NoError(t, engine.ReleaseShake(ctx, id, requesterAddr))

	expectedFee := new(big.Int).Mul(huge, big.NewInt(250))
	expectedFee.Div(expectedFee, big.NewInt(10000))
	assert.Equal(t, expectedFee, ledger.Balance(treasuryAddr))
}

func TestLedgerPullFailurePreventsCreation(t *testing.T) {
	engine, ledger, _, _ := newTestEngine(t)
	ctx := context.Background()
	// No Credit: insufficient balance triggers the ledger's own failure path.
	_, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(1), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	assert.ErrorIs(t, err, escrow.ErrLedgerPullFailed)
}

// A ledger push failure on release does not revert the already-committed
// Released status: a retry must observe ErrNotDelivered, not silently
// re-attempt payment.
func TestLedgerPushFailureDoesNotRevertStatus(t *testing.T) {
	engine, ledger, _, clock := newTestEngine(t)
	ctx := context.Background()
	ledger.Credit(requesterAddr, big.NewInt(1000))
	id, err := engine.CreateShake(ctx, requesterAddr, big.NewInt(1000), 60, escrow.Fingerprint{}, escrow.Fingerprint{})
	require.NoError(t, err)
	require.NoError(t, engine.AcceptShake(ctx, id, workerAddr))
	require.NoError(t, engine.DeliverShake(ctx, id, workerAddr, escrow.Fingerprint{}, escrow.Fingerprint{}))
	clock.Advance(1)

	ledger.FailPush = assertError{"boom"}
	err = engine.ReleaseShake(ctx, id, requesterAddr)
	assert.ErrorIs(t, err, escrow.ErrLedgerPushFailed)

	s, err := engine.GetShake(id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusReleased, s.Status())

	err = engine.ReleaseShake(ctx, id, requesterAddr)
	assert.ErrorIs(t, err, escrow.ErrNotDelivered)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
