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

// Package fitsheader parses the 80-byte fixed-field FITS header lines used by
// every HDU in a FITS file, grounded on the block-reading and value-state-machine
// approach of _examples/other_examples/siravan-fits__fits.go. Unlike that
// reference, this package reads from an io.ReaderAt at an arbitrary byte offset
// (the decoder in internal/fits walks HDU-to-HDU across a file that is also
// accessed in arbitrary-offset chunks for pixel data, so a sequential io.Reader
// is the wrong shape here) and keeps values as a small tagged union instead of
// interface{}, matching the original's nom.tam.fits.Header field typing used
// throughout Segment.java and CachingReader.java.
package fitsheader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hoxca/fpimageio/internal/fiterr"
)

const (
	blockSize = 2880
	lineSize  = 80
	linesPerBlock = blockSize / lineSize
)

// Kind identifies which field of Value is populated.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

// Value is a tagged union over the header-card value types FITS supports.
type Value struct {
	Kind Kind
	B    bool
	I    int64
	F    float64
	S    string
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindString:
		return v.S
	default:
		return ""
	}
}

// Header is the decoded set of cards for one HDU, plus the byte span it
// occupied (aligned to the 2880-byte block convention) so callers can seek
// straight to the data that follows.
type Header struct {
	Keys  map[string]Value
	Naxis []int

	// HeaderBytes is the number of bytes consumed by the header, including
	// END-card padding to the next 2880-byte boundary.
	HeaderBytes int64
}

// Get returns the value for key and whether it was present.
func (h *Header) Get(key string) (Value, bool) {
	v, ok := h.Keys[key]
	return v, ok
}

// GetString returns the string value for key, or ("", false) if absent or
// not a string.
func (h *Header) GetString(key string) (string, bool) {
	v, ok := h.Keys[key]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.S, true
}

// GetInt returns the integer value for key, or (0, false) if absent or not
// numeric.
func (h *Header) GetInt(key string) (int64, bool) {
	v, ok := h.Keys[key]
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindInt:
		return v.I, true
	case KindFloat:
		return int64(v.F), true
	default:
		return 0, false
	}
}

// GetFloat returns the float value for key, or (0, false) if absent or not
// numeric.
func (h *Header) GetFloat(key string) (float64, bool) {
	v, ok := h.Keys[key]
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindFloat:
		return v.F, true
	case KindInt:
		return float64(v.I), true
	default:
		return 0, false
	}
}

// RequireFloat is GetFloat, returning a fiterr.MissingHeader if absent.
func (h *Header) RequireFloat(key, file string) (float64, error) {
	f, ok := h.GetFloat(key)
	if !ok {
		return 0, &fiterr.MissingHeader{Key: key, File: file}
	}
	return f, nil
}

// RequireString is GetString, returning a fiterr.MissingHeader if absent.
func (h *Header) RequireString(key, file string) (string, error) {
	s, ok := h.GetString(key)
	if !ok {
		return "", &fiterr.MissingHeader{Key: key, File: file}
	}
	return s, nil
}

// RequireInt is GetInt, returning a fiterr.MissingHeader if absent.
func (h *Header) RequireInt(key, file string) (int64, error) {
	i, ok := h.GetInt(key)
	if !ok {
		return 0, &fiterr.MissingHeader{Key: key, File: file}
	}
	return i, nil
}

// Read decodes one HDU header starting at byte offset off in r, returning the
// decoded Header. The header's HeaderBytes field tells the caller where the
// data block begins (off + HeaderBytes).
func Read(r ioReaderAt, off int64, file string) (*Header, error) {
	h := &Header{Keys: make(map[string]Value, 64)}
	buf := make([]byte, blockSize)
	var consumed int64

	for {
		n, err := r.ReadAt(buf, off+consumed)
		if n < blockSize {
			return nil, fiterr.NewIOError("read fits header block at "+file, err)
		}
		consumed += blockSize

		done := false
		for i := 0; i < linesPerBlock; i++ {
			line := buf[i*lineSize : (i+1)*lineSize]
			key := strings.TrimSpace(string(line[:8]))
			if key == "END" {
				done = true
				break
			}
			parseCard(h, key, line)
		}
		if done {
			break
		}
	}

	h.HeaderBytes = consumed
	if n, ok := h.GetInt("NAXIS"); ok {
		h.Naxis = make([]int, n)
		for i := 1; i <= int(n); i++ {
			v, _ := h.GetInt(fmt.Sprintf("NAXIS%d", i))
			h.Naxis[i-1] = int(v)
		}
	}
	return h, nil
}

// ioReaderAt is the minimal interface Read needs; satisfied by *os.File and
// any other positional reader the byte-reader layer hands back.
type ioReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

func parseCard(h *Header, key string, line []byte) {
	if key == "" || key == "COMMENT" || key == "HISTORY" {
		return
	}
	if len(line) < 10 || string(line[8:10]) != "= " {
		return
	}
	rest := strings.TrimSpace(string(line[10:]))
	if rest == "" {
		return
	}

	if rest[0] == '\'' {
		if s, ok := parseQuotedString(rest); ok {
			h.Keys[key] = Value{Kind: KindString, S: s}
		}
		return
	}

	if j := strings.Index(rest, "/"); j != -1 {
		rest = rest[:j]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return
	}

	switch rest[0] {
	case 'T':
		h.Keys[key] = Value{Kind: KindBool, B: true}
	case 'F':
		h.Keys[key] = Value{Kind: KindBool, B: false}
	default:
		if strings.ContainsAny(rest, ".DE") && !isPureInt(rest) {
			norm := strings.Replace(rest, "D", "E", 1)
			if f, err := strconv.ParseFloat(norm, 64); err == nil {
				h.Keys[key] = Value{Kind: KindFloat, F: f}
				return
			}
		}
		if i, err := strconv.ParseInt(rest, 10, 64); err == nil {
			h.Keys[key] = Value{Kind: KindInt, I: i}
		} else if f, err := strconv.ParseFloat(rest, 64); err == nil {
			h.Keys[key] = Value{Kind: KindFloat, F: f}
		}
	}
}

func isPureInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// parseQuotedString implements FITS's doubled-single-quote escaping, the
// same three-state machine as processString in the reference fits reader.
func parseQuotedString(s string) (string, bool) {
	var b strings.Builder
	state := 0
	for _, c := range s {
		quote := c == '\''
		switch state {
		case 0:
			if !quote {
				return "", false
			}
			state = 1
		case 1:
			if quote {
				state = 2
			} else {
				b.WriteRune(c)
			}
		case 2:
			if quote {
				b.WriteRune(c)
				state = 1
			} else {
				return strings.TrimRight(b.String(), " "), true
			}
		}
	}
	if state == 2 {
		return strings.TrimRight(b.String(), " "), true
	}
	return "", false
}

// AlignTo2880 rounds n up to the next multiple of the FITS block size, used
// by callers advancing past a data block to the next HDU.
func AlignTo2880(n int64) int64 {
	if rem := n % blockSize; rem != 0 {
		return n + (blockSize - rem)
	}
	return n
}
