// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package array

import (
	"sync"

	"github.com/a10y/vortex/scalar"
)

// StatKind names one of the lazily-computed, monotonically-accumulated
// statistics an array may carry (spec.md §3, §9 "Statistics cache").
type StatKind uint8

const (
	StatMin StatKind = iota
	StatMax
	StatIsSorted
	StatIsConstant
	StatNullCount
	StatTrueCount
)

// statCache holds single-assignment per-(array, StatKind) computed
// values. Once a stat is set it is never overwritten; concurrent
// readers either see the computed value or race harmlessly to compute
// the same one (idempotent and convergent, per spec.md §9).
type statCache struct {
	mu    sync.RWMutex
	stats map[StatKind]scalar.Scalar
}

func newStatCache() *statCache {
	return &statCache{stats: make(map[StatKind]scalar.Scalar)}
}

// Stat returns the cached value for kind, computing it with compute if
// absent. Concurrent callers may both invoke compute; the result is
// idempotent, so whichever write lands first wins and both callers
// observe a consistent value.
func (a Array) Stat(kind StatKind, compute func() scalar.Scalar) scalar.Scalar {
	a.stats.mu.RLock()
	v, ok := a.stats.stats[kind]
	a.stats.mu.RUnlock()
	if ok {
		return v
	}
	v = compute()
	a.stats.mu.Lock()
	if existing, ok := a.stats.stats[kind]; ok {
		a.stats.mu.Unlock()
		return existing
	}
	a.stats.stats[kind] = v
	a.stats.mu.Unlock()
	return v
}

// StatIfComputed returns the cached value for kind without computing
// it, reporting whether it was present.
func (a Array) StatIfComputed(kind StatKind) (scalar.Scalar, bool) {
	a.stats.mu.RLock()
	defer a.stats.mu.RUnlock()
	v, ok := a.stats.stats[kind]
	return v, ok
}
