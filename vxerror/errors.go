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

// Package vxerror defines the error taxonomy shared by the array,
// compress, and ipc packages: a small set of typed errors that callers
// can distinguish with errors.As instead of string-matching.
package vxerror

import "fmt"

// InvalidArgument is returned when an operation is given arguments that
// are individually well-formed but jointly nonsensical (dtype mismatch,
// ptype mismatch in AsContiguous, non-ascending sparse indices, a
// negative or overlong slice range, and so on).
type InvalidArgument struct {
	Msg string
}

func (e *InvalidArgument) Error() string { return "invalid argument: " + e.Msg }

// Invalid constructs an *InvalidArgument with a formatted message.
func Invalid(format string, args ...any) error {
	return &InvalidArgument{Msg: fmt.Sprintf(format, args...)}
}

// OutOfBounds is returned by scalar_at/slice when an index or range
// argument exceeds the array's length.
type OutOfBounds struct {
	Index, Lo, Hi int
}

func (e *OutOfBounds) Error() string {
	return fmt.Sprintf("index %d out of bounds [%d, %d)", e.Index, e.Lo, e.Hi)
}

// Bounds constructs an *OutOfBounds error.
func Bounds(index, lo, hi int) error {
	return &OutOfBounds{Index: index, Lo: lo, Hi: hi}
}

// NotImplemented is returned when a compute kernel has no implementation
// on an encoding's vtable *and* the flatten-then-retry fallback also has
// no implementation for the resulting canonical array's dtype.
type NotImplemented struct {
	Op       string
	Encoding string
}

func (e *NotImplemented) Error() string {
	return fmt.Sprintf("%s not implemented for encoding %q", e.Op, e.Encoding)
}

// Unimplemented constructs a *NotImplemented error.
func Unimplemented(op, encoding string) error {
	return &NotImplemented{Op: op, Encoding: encoding}
}

// UnknownEncoding is returned during IPC deserialization when the wire
// names an encoding id that is not registered in the reader's Context.
type UnknownEncoding struct {
	ID string
}

func (e *UnknownEncoding) Error() string {
	return fmt.Sprintf("unknown encoding %q", e.ID)
}

// Unknown constructs an *UnknownEncoding error.
func Unknown(id string) error {
	return &UnknownEncoding{ID: id}
}

// Corruption is returned when the IPC stream contains internally
// inconsistent framing: a frame length that doesn't match what follows,
// a child-count or buffer-count mismatch, an overflowing buffer length,
// or an unrecognized enum byte (e.g. time unit).
type Corruption struct {
	Msg string
}

func (e *Corruption) Error() string { return "corrupt stream: " + e.Msg }

// Corrupt constructs a *Corruption error.
func Corrupt(format string, args ...any) error {
	return &Corruption{Msg: fmt.Sprintf(format, args...)}
}

// Compute is returned for kernel-level failures that are not simply
// bad arguments: numeric overflow during cast, a non-finite value where
// finite is required, an empty AsContiguous call, and so on.
type Compute struct {
	Msg string
}

func (e *Compute) Error() string { return "compute error: " + e.Msg }

// ComputeErr constructs a *Compute error.
func ComputeErr(format string, args ...any) error {
	return &Compute{Msg: fmt.Sprintf(format, args...)}
}
