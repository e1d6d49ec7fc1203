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

// Package chainutil collects the small, dependency-free encoding helpers
// that would otherwise be copy-pasted across escrow and its callers:
// the "0x"-prefixed fixed-length hex codec used for Principal and
// Fingerprint values, modeled on go-ethereum's common/hexutil package
// (encode/decode only; this package does not carry hexutil's JSON
// marshaling or big.Int helpers, since the engine never serializes a
// Shake to JSON directly).
package chainutil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeFixed renders b as a "0x"-prefixed lowercase hex string.
func EncodeFixed(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeFixed parses s as hex, accepting an optional "0x" prefix, and
// requires the result to be exactly wantLen bytes.
func DecodeFixed(s string, wantLen int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("chainutil: invalid hex %q: %w", s, err)
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("chainutil: want %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}
