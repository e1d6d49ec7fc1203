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
	"math/big"
	"sync/atomic"
)

// FeePolicy computes the basis-point fee charged on a settlement. It is
// optional: when an Engine has none bound, it falls back to the static
// Config.ProtocolFeeBPS scalar directly.
type FeePolicy interface {
	FeeBPS(amount *big.Int, depth int) uint16
}

// StaticFeePolicy always returns the same bps regardless of amount or
// depth; this is what an Engine constructs internally when no dynamic
// FeePolicy is bound, so the settlement path never needs an "is there a
// policy" branch.
type StaticFeePolicy struct {
	bps uint16
}

func NewStaticFeePolicy(bps uint16) *StaticFeePolicy {
	return &StaticFeePolicy{bps: clampBPS(bps)}
}

func (p *StaticFeePolicy) FeeBPS(*big.Int, int) uint16 { return p.bps }

// DepthAdjustedFeePolicy implements the default formula:
// bps = base + depth*premium, clamped to MaxFeeBPS. base and premium are
// mutable at runtime (via SetBaseBPS/SetDepthPremiumBPS) by whatever
// caller the host authorizes as treasury; stored atomically since
// FeeBPS may be read concurrently by settlements on unrelated trees.
type DepthAdjustedFeePolicy struct {
	baseBPS         int32
	depthPremiumBPS int32
}

func NewDepthAdjustedFeePolicy(baseBPS, depthPremiumBPS uint16) *DepthAdjustedFeePolicy {
	return &DepthAdjustedFeePolicy{
		baseBPS:         int32(clampBPS(baseBPS)),
		depthPremiumBPS: int32(clampBPS(depthPremiumBPS)),
	}
}

func (p *DepthAdjustedFeePolicy) FeeBPS(_ *big.Int, depth int) uint16 {
	base := atomic.LoadInt32(&p.baseBPS)
	premium := atomic.LoadInt32(&p.depthPremiumBPS)
	bps := int64(base) + int64(depth)*int64(premium)
	if bps > MaxFeeBPS {
		bps = MaxFeeBPS
	}
	if bps < 0 {
		bps = 0
	}
	return uint16(bps)
}

func (p *DepthAdjustedFeePolicy) SetBaseBPS(bps uint16) {
	atomic.StoreInt32(&p.baseBPS, int32(clampBPS(bps)))
}

func (p *DepthAdjustedFeePolicy) SetDepthPremiumBPS(bps uint16) {
	atomic.StoreInt32(&p.depthPremiumBPS, int32(clampBPS(bps)))
}

func clampBPS(bps uint16) uint16 {
	if bps > MaxFeeBPS {
		return MaxFeeBPS
	}
	return bps
}

// computeFee returns floor(amount * bps / 10000). amount is never
// mutated.
func computeFee(amount *big.Int, bps uint16) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	fee.Div(fee, big.NewInt(10000))
	return fee
}
