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

// Package decomp implements the Decompressor (C4): tile-directory-driven
// RICE_1 and GZIP_2 inflation of FITS compressed-image HDUs into int32 or
// float32 pixel buffers, grounded on Segment.java's decodeCompressedData/
// decodeGZIP2CompressedData and the tile-directory layout described in
// spec section 4.4.
package decomp

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/cpuid"

	"github.com/hoxca/fpimageio/internal/fiterr"
)

// wideUnshuffle is probed once at package init and picks which block-copy
// helper unshuffleInto uses, favoring the wider AVX2 path when available.
// The probe result is not logged.
var wideUnshuffle = cpuid.CPU.AVX2()

func int32BitsToFloat32(v int32) float32 {
	return math.Float32frombits(uint32(v))
}

// directory returns the tile byte lengths from the (cAxis1*cAxis2)/4
// big-endian int32 (length,offset) pairs at the front of buf, and the byte
// offset where the first tile payload begins.
func directory(buf []byte, cAxis1, cAxis2 int) ([]int, int64, error) {
	dirBytes := cAxis1 * cAxis2
	if dirBytes > len(buf) || dirBytes%8 != 0 {
		return nil, 0, &fiterr.Internal{Reason: "tile directory exceeds buffer or is misaligned"}
	}
	entries := dirBytes / 8
	lengths := make([]int, entries)
	for i := 0; i < entries; i++ {
		lengths[i] = int(int32(binary.BigEndian.Uint32(buf[i*8 : i*8+4])))
	}
	return lengths, int64(dirBytes), nil
}

// DecodeInt32 decompresses a RICE_1 or GZIP_2 compressed-image byte buffer
// into an nAxis1*nAxis2 int32 raster, one tile (row) at a time, per the
// cursor algorithm in spec section 4.4.
func DecodeInt32(buf []byte, compression CompressionKind, nAxis1, nAxis2, cAxis1, cAxis2 int) ([]int32, error) {
	lengths, cursor, err := directory(buf, cAxis1, cAxis2)
	if err != nil {
		return nil, err
	}
	if cAxis2 > len(lengths) {
		return nil, &fiterr.Internal{Reason: "tile directory shorter than cAxis2"}
	}

	out := make([]int32, nAxis1*nAxis2)
	for row := 0; row < cAxis2; row++ {
		length := lengths[row]
		if cursor+int64(length) > int64(len(buf)) {
			return nil, &fiterr.Internal{Reason: "tile payload exceeds buffer"}
		}
		payload := buf[cursor : cursor+int64(length)]
		cursor += int64(length)

		var tile []int32
		switch compression {
		case CompressionRice1:
			tile = decodeRiceInt32(payload, nAxis1)
		case CompressionGzip2:
			tile, err = decodeGzip2Int32(payload, nAxis1)
			if err != nil {
				return nil, err
			}
		default:
			return nil, &fiterr.UnsupportedCompression{CompressionType: "unknown"}
		}
		copy(out[row*nAxis1:(row+1)*nAxis1], tile)
	}
	return out, nil
}

// DecodeFloat32 is DecodeInt32's float32 counterpart.
func DecodeFloat32(buf []byte, compression CompressionKind, nAxis1, nAxis2, cAxis1, cAxis2 int) ([]float32, error) {
	lengths, cursor, err := directory(buf, cAxis1, cAxis2)
	if err != nil {
		return nil, err
	}
	if cAxis2 > len(lengths) {
		return nil, &fiterr.Internal{Reason: "tile directory shorter than cAxis2"}
	}

	out := make([]float32, nAxis1*nAxis2)
	for row := 0; row < cAxis2; row++ {
		length := lengths[row]
		if cursor+int64(length) > int64(len(buf)) {
			return nil, &fiterr.Internal{Reason: "tile payload exceeds buffer"}
		}
		payload := buf[cursor : cursor+int64(length)]
		cursor += int64(length)

		var tile []float32
		switch compression {
		case CompressionRice1:
			tile = decodeRiceFloat32(payload, nAxis1)
		case CompressionGzip2:
			tile, err = decodeGzip2Float32(payload, nAxis1)
			if err != nil {
				return nil, err
			}
		default:
			return nil, &fiterr.UnsupportedCompression{CompressionType: "unknown"}
		}
		copy(out[row*nAxis1:(row+1)*nAxis1], tile)
	}
	return out, nil
}

// DecodeRawInt32 parses n big-endian int32 samples directly from buf, the
// uncompressed FITS on-disk format (spec section 6).
func DecodeRawInt32(buf []byte, n int) ([]int32, error) {
	if len(buf) < n*4 {
		return nil, &fiterr.Internal{Reason: "raw int32 buffer shorter than expected"}
	}
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.BigEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return out, nil
}

// DecodeRawFloat32 parses n big-endian float32 samples directly from buf.
func DecodeRawFloat32(buf []byte, n int) ([]float32, error) {
	if len(buf) < n*4 {
		return nil, &fiterr.Internal{Reason: "raw float32 buffer shorter than expected"}
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = int32BitsToFloat32(int32(binary.BigEndian.Uint32(buf[i*4 : i*4+4])))
	}
	return out, nil
}

// CompressionKind mirrors internal/fits.CompressionKind without importing
// it, since internal/fits already imports nothing from decomp and a direct
// dependency would be the wrong direction (the decompressor is a leaf).
type CompressionKind int

const (
	CompressionNone CompressionKind = iota
	CompressionRice1
	CompressionGzip2
)

var flateReaderPool = sync.Pool{
	New: func() interface{} { return flate.NewReader(bytes.NewReader(nil)) },
}

// inflateRaw runs raw (no-wrap) DEFLATE over payload, matching the
// original's Inflater(true) no-wrap mode.
func inflateRaw(payload []byte) ([]byte, error) {
	fr := flateReaderPool.Get().(flate.Resetter)
	defer flateReaderPool.Put(fr)
	r := fr.(io.Reader)
	if err := fr.Reset(bytes.NewReader(payload), nil); err != nil {
		return nil, &fiterr.Internal{Reason: "flate reset: " + err.Error()}
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &fiterr.Internal{Reason: "flate inflate: " + err.Error()}
	}
	return out, nil
}

// decodeGzip2Int32 inflates one GZIP_2 tile and unshuffles its bytes back
// into n int32 samples. The byte-shuffle transposes each sample's four
// bytes into four separate quarters of the decompressed buffer (most
// significant byte first), the layout Segment.java's commented-out
// unshuffle() documents: out[i] = b0[i]<<24 | b1[i]<<16 | b2[i]<<8 | b3[i].
func decodeGzip2Int32(payload []byte, n int) ([]int32, error) {
	raw, err := inflateRaw(payload)
	if err != nil {
		return nil, err
	}
	if len(raw) < n*4 {
		return nil, &fiterr.Internal{Reason: "gzip2 tile shorter than expected"}
	}
	out := make([]int32, n)
	unshuffleInto(raw, out)
	return out, nil
}

func decodeGzip2Float32(payload []byte, n int) ([]float32, error) {
	ints, err := decodeGzip2Int32(payload, n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i, v := range ints {
		out[i] = int32BitsToFloat32(v)
	}
	return out, nil
}

// unshuffleInto reverses the byte-plane shuffle applied before GZIP_2
// compression. wideUnshuffle just selects between two equivalent
// implementations; both produce identical output.
func unshuffleInto(in []byte, out []int32) {
	n := len(out)
	if wideUnshuffle {
		unshuffleWide(in, out, n)
	} else {
		unshuffleNarrow(in, out, n)
	}
}

func unshuffleNarrow(in []byte, out []int32, n int) {
	for i := 0; i < n; i++ {
		out[i] = int32(uint32(in[i])<<24 | uint32(in[i+n])<<16 | uint32(in[i+2*n])<<8 | uint32(in[i+3*n]))
	}
}

func unshuffleWide(in []byte, out []int32, n int) {
	b0, b1, b2, b3 := in[0:n], in[n:2*n], in[2*n:3*n], in[3*n:4*n]
	for i := 0; i < n; i++ {
		out[i] = int32(uint32(b0[i])<<24 | uint32(b1[i])<<16 | uint32(b2[i])<<8 | uint32(b3[i]))
	}
}
