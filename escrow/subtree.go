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

import "github.com/clawshake/shake/log"

var subtreeLogger = log.NewModuleLogger(log.Subtree)

// timeCeiling is the freeze sentinel: a dispute_frozen_until value that
// is, for all practical purposes, "forever" rather than a real deadline.
// Storing a fixed sentinel instead of a computed extension avoids ever
// having to recompute "how long should this stay frozen" — the unfreeze
// path always recomputes cleanliness instead of trusting a timestamp.
const timeCeiling int64 = 1<<63 - 1

// isSubtreeClean walks children(id) depth-first, iteratively (an
// explicit stack, to bound worst-case memory on pathological trees
// instead of recursing with the host call stack). It returns false on
// the first descendant found Disputed.
func isSubtreeClean(store Store, id uint64) bool {
	stack := store.Children(id)
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]

		s, ok := store.GetShake(cur)
		if !ok {
			continue
		}
		if s.status == StatusDisputed {
			return false
		}
		stack = append(stack, store.Children(cur)...)
	}
	return true
}

// disputedDescendants returns every descendant of id currently
// Disputed; a read-only diagnostic a host could use to build a
// per-ancestor disputed-count cache without the engine committing to
// that data structure itself.
func disputedDescendants(store Store, id uint64) []uint64 {
	var disputed []uint64
	stack := store.Children(id)
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]

		s, ok := store.GetShake(cur)
		if !ok {
			continue
		}
		if s.status == StatusDisputed {
			disputed = append(disputed, cur)
		}
		stack = append(stack, store.Children(cur)...)
	}
	return disputed
}

// subtreeSize counts every descendant (not including id itself).
func subtreeSize(store Store, id uint64) int {
	count := 0
	stack := store.Children(id)
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		count++
		stack = append(stack, store.Children(cur)...)
	}
	return count
}

// depth walks from id up its ancestor chain (is_child -> parent_id)
// until a root is found, returning the number of edges traversed.
func depth(store Store, id uint64) int {
	d := 0
	cur, ok := store.GetShake(id)
	for ok && cur.isChild {
		d++
		cur, ok = store.GetShake(cur.parentID)
	}
	return d
}

// freezeAncestors walks up from id's parent, setting dispute_frozen_until
// to the sentinel on any ancestor currently Active or Delivered. Active
// ancestors that have not yet been delivered are frozen too; the freeze
// is not narrowed to Delivered-only ancestors. Ancestors in any other
// status are passed over.
func freezeAncestors(store Store, id uint64) {
	shake, ok := store.GetShake(id)
	if !ok || !shake.isChild {
		return
	}
	cur := shake.parentID
	for {
		parent, ok := store.GetShake(cur)
		if !ok {
			return
		}
		if parent.status == StatusActive || parent.status == StatusDelivered {
			if parent.disputeFrozenUntil == 0 {
				parent.disputeFrozenUntil = timeCeiling
				store.PutShake(parent)
				subtreeLogger.Debug("froze ancestor", "ancestor", parent.id, "disputed", id)
			}
		}
		if !parent.isChild {
			return
		}
		cur = parent.parentID
	}
}

// unfreezeAncestors walks up from id's parent, clearing
// dispute_frozen_until on any ancestor whose subtree has become clean
// again. Each check is an O(subtree) isSubtreeClean call; see DESIGN.md
// for the discussion of the per-ancestor counter optimization this
// implementation deliberately does not add.
func unfreezeAncestors(store Store, id uint64) {
	shake, ok := store.GetShake(id)
	if !ok || !shake.isChild {
		return
	}
	cur := shake.parentID
	for {
		parent, ok := store.GetShake(cur)
		if !ok {
			return
		}
		if parent.disputeFrozenUntil != 0 && isSubtreeClean(store, parent.id) {
			parent.disputeFrozenUntil = 0
			store.PutShake(parent)
			subtreeLogger.Debug("unfroze ancestor", "ancestor", parent.id)
		}
		if !parent.isChild {
			return
		}
		cur = parent.parentID
	}
}
