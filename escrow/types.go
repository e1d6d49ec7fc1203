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

// Package escrow implements the shake state machine and its recursive
// parent/child composition: a programmable escrow primitive in which a
// requester locks a stablecoin balance against a task, a worker accepts
// and delivers, and settlement is gated on the whole descendant subtree
// being clean and terminal.
package escrow

import (
	"fmt"
	"math/big"

	"github.com/clawshake/shake/chainutil"
)

// Principal is an opaque, byte-addressable identity. The engine never
// interprets its contents; it only compares principals for equality and
// hands them to the Ledger and ReputationSink collaborators.
type Principal [20]byte

func (p Principal) String() string { return chainutil.EncodeFixed(p[:]) }

func (p Principal) IsZero() bool { return p == Principal{} }

// ParsePrincipal parses a 20-byte hex-encoded address, accepting an
// optional "0x" prefix. Exported for callers outside the package (e.g.
// cmd/shakectl) that need to turn operator input into a Principal.
func ParsePrincipal(s string) (Principal, error) {
	return principalFromHex(s)
}

// principalFromHex parses a 20-byte hex-encoded address, accepting an
// optional "0x" prefix.
func principalFromHex(s string) (Principal, error) {
	var p Principal
	b, err := chainutil.DecodeFixed(s, len(p))
	if err != nil {
		return p, err
	}
	copy(p[:], b)
	return p, nil
}

// Fingerprint is an opaque digest: a task specification, a delivery
// proof, a requester pubkey hash, or an encrypted delivery key. The
// engine never inspects its contents, only stores and compares it.
type Fingerprint [32]byte

func (f Fingerprint) String() string { return chainutil.EncodeFixed(f[:]) }

func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// Status is the shake's lifecycle state. The zero value is never a valid
// in-use status; shakes are always constructed directly into Pending.
type Status uint8

const (
	StatusInvalid Status = iota
	StatusPending
	StatusActive
	StatusDelivered
	StatusReleased
	StatusDisputed
	StatusRefunded
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusActive:
		return "Active"
	case StatusDelivered:
		return "Delivered"
	case StatusReleased:
		return "Released"
	case StatusDisputed:
		return "Disputed"
	case StatusRefunded:
		return "Refunded"
	default:
		return "Invalid"
	}
}

// Terminal reports whether no further transition is ever applied to a
// shake in this status: Released and Refunded are the only statuses a
// shake can never leave.
func (s Status) Terminal() bool {
	return s == StatusReleased || s == StatusRefunded
}

// Shake is the primitive escrowed agreement. All fields are unexported;
// callers observe a Shake only through Engine's read APIs, which always
// return a defensive copy (DeepCopy), so a caller can never mutate
// engine-owned state out from under a committed transaction.
type Shake struct {
	id        uint64
	requester Principal
	worker    Principal
	amount    *big.Int

	isChild  bool
	parentID uint64

	deadlineAt  int64 // unix seconds
	deliveredAt int64 // unix seconds; 0 until Delivered

	status Status

	taskFingerprint     Fingerprint
	deliveryFingerprint Fingerprint

	disputeFrozenUntil int64 // unix seconds; 0 when not frozen

	requesterPubkeyHash  Fingerprint
	encryptedDeliveryKey Fingerprint
}

func newShake(id uint64, requester Principal, amount *big.Int, deadlineAt int64, taskFingerprint Fingerprint, pubkeyHash Fingerprint) *Shake {
	return &Shake{
		id:                  id,
		requester:           requester,
		amount:              new(big.Int).Set(amount),
		deadlineAt:          deadlineAt,
		status:              StatusPending,
		taskFingerprint:     taskFingerprint,
		requesterPubkeyHash: pubkeyHash,
	}
}

func (s *Shake) ID() uint64                        { return s.id }
func (s *Shake) Requester() Principal              { return s.requester }
func (s *Shake) Worker() Principal                 { return s.worker }
func (s *Shake) Amount() *big.Int                  { return new(big.Int).Set(s.amount) }
func (s *Shake) IsChild() bool                     { return s.isChild }
func (s *Shake) ParentID() uint64                  { return s.parentID }
func (s *Shake) DeadlineAt() int64                 { return s.deadlineAt }
func (s *Shake) DeliveredAt() int64                { return s.deliveredAt }
func (s *Shake) Status() Status                    { return s.status }
func (s *Shake) TaskFingerprint() Fingerprint      { return s.taskFingerprint }
func (s *Shake) DeliveryFingerprint() Fingerprint  { return s.deliveryFingerprint }
func (s *Shake) DisputeFrozenUntil() int64         { return s.disputeFrozenUntil }
func (s *Shake) RequesterPubkeyHash() Fingerprint  { return s.requesterPubkeyHash }
func (s *Shake) EncryptedDeliveryKey() Fingerprint { return s.encryptedDeliveryKey }

// DeepCopy returns an independent copy of the shake so callers holding a
// snapshot read cannot observe (or corrupt) later committed mutations.
func (s *Shake) DeepCopy() *Shake {
	cp := *s
	cp.amount = new(big.Int).Set(s.amount)
	return &cp
}

func (s *Shake) Equal(o *Shake) bool {
	return s.id == o.id &&
		s.requester == o.requester &&
		s.worker == o.worker &&
		s.amount.Cmp(o.amount) == 0 &&
		s.isChild == o.isChild &&
		s.parentID == o.parentID &&
		s.deadlineAt == o.deadlineAt &&
		s.deliveredAt == o.deliveredAt &&
		s.status == o.status &&
		s.taskFingerprint == o.taskFingerprint &&
		s.deliveryFingerprint == o.deliveryFingerprint &&
		s.disputeFrozenUntil == o.disputeFrozenUntil
}

func (s *Shake) String() string {
	return fmt.Sprintf("{id:%d status:%s requester:%s worker:%s amount:%s parent:%d}",
		s.id, s.status, s.requester, s.worker, s.amount.String(), s.parentID)
}
