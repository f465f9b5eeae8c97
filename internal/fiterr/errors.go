// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package fiterr defines the small typed-error set the core uses in place of
// the checked-exception hierarchy of the original Java implementation
// (IOError, MalformedDescriptor, MissingHeader, MalformedDatasec,
// UnsupportedCompression, UnknownStrategy, Unsupported, Internal; see spec
// section 7). Callers use errors.As/errors.Is to distinguish them.
package fiterr

import "fmt"

// IOError wraps a failure from the byte reader or the filesystem.
type IOError struct {
	Op    string
	Cause error
}

func (e *IOError) Error() string { return fmt.Sprintf("io error during %s: %v", e.Op, e.Cause) }
func (e *IOError) Unwrap() error { return e.Cause }

func NewIOError(op string, cause error) *IOError {
	return &IOError{Op: op, Cause: cause}
}

// TransientIOError is an IOError the caller may legitimately retry by
// re-requesting the same cache key once the failed entry has been discarded.
// The core itself never retries automatically (spec section 7).
type TransientIOError struct {
	Op    string
	Cause error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient io error during %s: %v", e.Op, e.Cause)
}
func (e *TransientIOError) Unwrap() error { return e.Cause }

// MalformedDescriptor indicates a segment descriptor string could not be parsed.
type MalformedDescriptor struct {
	Descriptor string
	Reason     string
}

func (e *MalformedDescriptor) Error() string {
	return fmt.Sprintf("malformed descriptor %q: %s", e.Descriptor, e.Reason)
}

// MissingHeader indicates a required FITS header keyword was absent.
type MissingHeader struct {
	Key  string
	File string
}

func (e *MissingHeader) Error() string {
	return fmt.Sprintf("missing header key %s in %s", e.Key, e.File)
}

// MalformedDatasec indicates a DATASEC value did not match "[x1:x2,y1:y2]".
type MalformedDatasec struct {
	Value string
}

func (e *MalformedDatasec) Error() string {
	return fmt.Sprintf("malformed datasec %q", e.Value)
}

// UnsupportedCompression indicates a ZCMPTYPE other than RICE_1 or GZIP_2.
type UnsupportedCompression struct {
	CompressionType string
}

func (e *UnsupportedCompression) Error() string {
	return fmt.Sprintf("unsupported compression type %q", e.CompressionType)
}

// UnknownStrategy indicates a bias-correction or colormap name not present in
// the fixed menu (spec section 6).
type UnknownStrategy struct {
	Kind string // "bias" or "colormap"
	Name string
}

func (e *UnknownStrategy) Error() string {
	return fmt.Sprintf("unknown %s strategy %q", e.Kind, e.Name)
}

// Unsupported indicates a recognized-but-unimplemented code path, currently
// only the DAQ descriptor dialect (spec section 9, Open question).
type Unsupported struct {
	What string
}

func (e *Unsupported) Error() string { return fmt.Sprintf("unsupported: %s", e.What) }

// Internal indicates a decompressor corruption or arithmetic invariant
// violation: a bug in the core, not bad input.
type Internal struct {
	Reason string
}

func (e *Internal) Error() string { return fmt.Sprintf("internal error: %s", e.Reason) }
