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
	"github.com/a10y/vortex/scalar"
	"github.com/a10y/vortex/vxtype"
)

// Side selects which end of a run of equal values SearchSorted returns.
type Side uint8

const (
	Left Side = iota
	Right
)

// Every compute kernel receives the Context it was dispatched under so
// that encodings recursing into children (Sparse -> values, Chunked ->
// chunks, ALP -> encoded/patches, ...) keep using the caller's full
// registry rather than an encoding-specific subset.
type (
	FlattenFn        func(ctx *Context, a Array) (Array, error)
	ScalarAtFn       func(ctx *Context, a Array, i int) (scalar.Scalar, error)
	SliceFn          func(ctx *Context, a Array, start, stop int) (Array, error)
	TakeFn           func(ctx *Context, a Array, indices []int) (Array, error)
	CastFn           func(ctx *Context, a Array, dtype vxtype.DType) (Array, error)
	FillForwardFn    func(ctx *Context, a Array) (Array, error)
	SearchSortedFn   func(ctx *Context, a Array, v scalar.Scalar, side Side) (int, error)
	SubtractScalarFn func(ctx *Context, a Array, s scalar.Scalar) (Array, error)
	AsArrowFn        func(ctx *Context, a Array) (any, error)
	AsContiguousFn   func(ctx *Context, arrays []Array) (Array, error)
	CanCompressFn    func(a Array, cfg CompressConfig) bool
	CompressFn       func(a Array, like *Array, ctx *Context, cfg CompressConfig) (Array, error)
)

// Encoding is the vtable of capabilities an encoding may expose. Flatten
// is the only mandatory capability; every other field is optional (nil
// means "not implemented by this encoding"), matching spec.md §4.1.
type Encoding struct {
	ID string

	Flatten FlattenFn

	ScalarAt       ScalarAtFn
	Slice          SliceFn
	Take           TakeFn
	Cast           CastFn
	FillForward    FillForwardFn
	SearchSorted   SearchSortedFn
	SubtractScalar SubtractScalarFn
	AsArrow        AsArrowFn
	AsContiguous   AsContiguousFn

	CanCompress CanCompressFn
	Compress    CompressFn
}

// Context is a scoped acquisition of the encodings (and, during
// compression, the naming state) available to an operation. Context
// values are immutable; With*/Named/Auxiliary/Excluding all return a
// new Context sharing the same encoding map.
type Context struct {
	encodings map[string]*Encoding
	name      string
	auxiliary bool
	excluded  map[string]bool
}

// Default returns an empty Context with no registered encodings.
func Default() *Context {
	return &Context{encodings: map[string]*Encoding{}}
}

// WithEncoding returns a Context with e registered alongside whatever
// was already registered on c.
func (c *Context) WithEncoding(e *Encoding) *Context {
	next := make(map[string]*Encoding, len(c.encodings)+1)
	for k, v := range c.encodings {
		next[k] = v
	}
	next[e.ID] = e
	return &Context{encodings: next, name: c.name, auxiliary: c.auxiliary, excluded: c.excluded}
}

// Lookup returns the Encoding registered under id, if any.
func (c *Context) Lookup(id string) (*Encoding, bool) {
	e, ok := c.encodings[id]
	return e, ok
}

// Candidates returns the encodings eligible as compression targets in
// this Context: every registered encoding not named in Excluding.
func (c *Context) Candidates() []*Encoding {
	out := make([]*Encoding, 0, len(c.encodings))
	for id, e := range c.encodings {
		if c.excluded != nil && c.excluded[id] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Name returns the child-slot name this Context was scoped to via
// Named or Auxiliary, or "" for the root context.
func (c *Context) Name() string { return c.name }

// IsAuxiliary reports whether this Context was scoped via Auxiliary,
// meaning the compressor must not let the same outer encoding
// recompress the child again (used for patch children).
func (c *Context) IsAuxiliary() bool { return c.auxiliary }

// Named returns a Context scoped to a main payload child slot, e.g. the
// packed integer stream inside ALP.
func (c *Context) Named(name string) *Context {
	return &Context{encodings: c.encodings, name: name, auxiliary: false, excluded: c.excluded}
}

// Auxiliary returns a Context scoped to an auxiliary child slot (e.g.
// patches) whose compression must not be re-applied by the same outer
// encoding.
func (c *Context) Auxiliary(name string) *Context {
	return &Context{encodings: c.encodings, name: name, auxiliary: true, excluded: c.excluded}
}

// Excluding returns a Context with encodingID removed from the
// candidate set, used so an encoding's own payload/patch children are
// never re-wrapped in the same encoding.
func (c *Context) Excluding(encodingID string) *Context {
	next := make(map[string]bool, len(c.excluded)+1)
	for k, v := range c.excluded {
		next[k] = v
	}
	next[encodingID] = true
	return &Context{encodings: c.encodings, name: c.name, auxiliary: c.auxiliary, excluded: next}
}
