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

import "math/big"

// GetShake returns a defensive copy of the shake record, or
// ErrShakeNotFound. Reads still take the tree lock: a reader must never
// observe a half-committed mutation from a concurrent settlement on the
// same tree.
func (e *Engine) GetShake(id uint64) (*Shake, error) {
	root, ok := e.rootOf(id)
	if !ok {
		return nil, ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return nil, err
	}
	return s.DeepCopy(), nil
}

// ListChildren returns the direct children of id, oldest first.
func (e *Engine) ListChildren(id uint64) ([]uint64, error) {
	root, ok := e.rootOf(id)
	if !ok {
		return nil, ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	if _, err := e.getShake(id); err != nil {
		return nil, err
	}
	return e.store.Children(id), nil
}

// RemainingBudget reports remaining[id]: the amount of id's original
// deposit not yet delegated to a child. Defined only once id has left
// Pending; returns ok=false beforehand.
func (e *Engine) RemainingBudget(id uint64) (*big.Int, bool, error) {
	root, ok := e.rootOf(id)
	if !ok {
		return nil, false, ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	if _, err := e.getShake(id); err != nil {
		return nil, false, err
	}
	v, ok := e.store.Remaining(id)
	return v, ok, nil
}

// Depth returns the number of parent_id edges between id and its root.
func (e *Engine) Depth(id uint64) (int, error) {
	root, ok := e.rootOf(id)
	if !ok {
		return 0, ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	if _, err := e.getShake(id); err != nil {
		return 0, err
	}
	return depth(e.store, id), nil
}

// EffectiveWindowEnd returns the instant release_shake would stop
// requiring the requester's consent: max(delivered_at+dispute_window,
// dispute_frozen_until). Only meaningful once id is Delivered or later;
// callers in other statuses get a zero-valued deliveredAt-derived time.
func (e *Engine) EffectiveWindowEnd(id uint64) (int64, error) {
	root, ok := e.rootOf(id)
	if !ok {
		return 0, ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	s, err := e.getShake(id)
	if err != nil {
		return 0, err
	}
	return effectiveWindowEnd(s, e.cfg.DisputeWindow).Unix(), nil
}

// SubtreeDiagnostics bundles the read-only subtree inspection helpers
// into a single call, useful for an operator CLI or a host building a
// per-ancestor Disputed-descendant counter without the engine
// maintaining that structure itself.
type SubtreeDiagnostics struct {
	Clean    bool
	Disputed []uint64
	Size     int
}

func (e *Engine) SubtreeDiagnostics(id uint64) (SubtreeDiagnostics, error) {
	root, ok := e.rootOf(id)
	if !ok {
		return SubtreeDiagnostics{}, ErrShakeNotFound
	}
	unlock := e.lockRoot(root)
	defer unlock()

	if _, err := e.getShake(id); err != nil {
		return SubtreeDiagnostics{}, err
	}
	disputed := disputedDescendants(e.store, id)
	return SubtreeDiagnostics{
		Clean:    len(disputed) == 0,
		Disputed: disputed,
		Size:     subtreeSize(e.store, id),
	}, nil
}
