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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticFeePolicyClampsAboveCeiling(t *testing.T) {
	p := NewStaticFeePolicy(5000)
	assert.Equal(t, uint16(MaxFeeBPS), p.FeeBPS(big.NewInt(1), 0))
}

func TestDepthAdjustedFeePolicyFormula(t *testing.T) {
	p := NewDepthAdjustedFeePolicy(100, 25)
	assert.Equal(t, uint16(100), p.FeeBPS(big.NewInt(1), 0))
	assert.Equal(t, uint16(150), p.FeeBPS(big.NewInt(1), 2))
}

func TestDepthAdjustedFeePolicyClampsAtDeepNesting(t *testing.T) {
	p := NewDepthAdjustedFeePolicy(100, 100)
	assert.Equal(t, uint16(MaxFeeBPS), p.FeeBPS(big.NewInt(1), 50))
}

func TestDepthAdjustedFeePolicyMutableAtRuntime(t *testing.T) {
	p := NewDepthAdjustedFeePolicy(100, 25)
	p.SetBaseBPS(200)
	p.SetDepthPremiumBPS(50)
	assert.Equal(t, uint16(300), p.FeeBPS(big.NewInt(1), 2))
}

func TestComputeFeeFloorsDivision(t *testing.T) {
	// 999 * 250 / 10000 = 24.975 -> floors to 24
	fee := computeFee(big.NewInt(999), 250)
	assert.Equal(t, big.NewInt(24), fee)
}

func TestComputeFeeZeroBPS(t *testing.T) {
	fee := computeFee(big.NewInt(123456), 0)
	assert.Equal(t, 0, fee.Sign())
}
