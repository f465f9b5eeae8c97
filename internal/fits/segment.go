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

package fits

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/hoxca/fpimageio/internal/affine"
	"github.com/hoxca/fpimageio/internal/fiterr"
	"github.com/hoxca/fpimageio/internal/fitsheader"
)

// CompressionKind enumerates the tile-compression schemes the decompressor
// understands (spec section 4.4).
type CompressionKind int

const (
	CompressionNone CompressionKind = iota
	CompressionRice1
	CompressionGzip2
)

// Rect is a 0-based, half-open integer pixel rectangle.
type Rect struct {
	X, Y, W, H int
}

// FileHandle is the subset of the byte-reader's file abstraction the decoder
// needs: positional reads plus the freshness witness (file size at open
// time). internal/bytesource implements this for both local and object-store
// backed files.
type FileHandle interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// WCSOverride supplies the six WCS doubles and a literal DATASEC string in
// place of reading them from the header, used for the DM single-CCD
// synthesis path and for caller-supplied per-amplifier geometry (spec
// section 4.2, "wcsOverride").
type WCSOverride struct {
	Datasec                       string
	PC1_1, PC1_2, PC2_1, PC2_2     float64
	CRVal1, CRVal2                 float64
}

// Segment is one amplifier's decoded metadata. Immutable after construction;
// Key is the identity the spec's Segment-immutability invariant is defined
// over: (file, HDU ordinal, wcsLetter).
type Segment struct {
	File        string
	HDUNumber   int
	FileSize    int64
	DataOffset  int64 // byte offset of the data block, immediately after the header
	RawDataLen  int64

	Bitpix      int // 32 (int32) or -32 (float32)
	NAxis1      int
	NAxis2      int

	IsCompressed    bool
	Compression     CompressionKind
	CAxis1, CAxis2  int // compressed-table (tile directory) dimensions

	Datasec Rect

	RaftBay     string
	CCDSlot     string
	SegmentName string
	WCSLetter   byte

	Affine affine.Affine
	WCS    affine.Rect // bounding box of Affine(datasec), used for region filtering
}

// Key identifies a Segment for cache/equality purposes (spec section 8,
// "Segment immutability").
type Key struct {
	File      string
	HDUNumber int
	WCSLetter byte
}

func (s *Segment) Key() Key {
	return Key{File: s.File, HDUNumber: s.HDUNumber, WCSLetter: s.WCSLetter}
}

var datasecPattern = regexp.MustCompile(`\[(\d+):(\d+),(\d+):(\d+)\]`)

func parseDatasec(s string) (Rect, error) {
	m := datasecPattern.FindStringSubmatch(s)
	if m == nil {
		return Rect{}, &fiterr.MalformedDatasec{Value: s}
	}
	x1, _ := strconv.Atoi(m[1])
	x2, _ := strconv.Atoi(m[2])
	y1, _ := strconv.Atoi(m[3])
	y2, _ := strconv.Atoi(m[4])
	if x1 < 1 || y1 < 1 || x2 < x1 || y2 < y1 {
		return Rect{}, &fiterr.MalformedDatasec{Value: s}
	}
	return Rect{X: x1 - 1, Y: y1 - 1, W: x2 - x1 + 1, H: y2 - y1 + 1}, nil
}

// decodeSegment builds one Segment from an already-read header, mirroring
// Segment.java's constructor: header info extraction, datasec/WCS
// resolution (direct, corner-raft-shifted, or overridden), and the affine
// composition that yields the bounding wcs rectangle.
func decodeSegment(h *fitsheader.Header, hduNumber int, dataOffset, fileSize int64, file, raftBay, ccdSlot string, wcsLetter byte, override *WCSOverride) (*Segment, error) {
	seg := &Segment{
		File:        file,
		HDUNumber:   hduNumber,
		FileSize:    fileSize,
		DataOffset:  dataOffset,
		RaftBay:     raftBay,
		CCDSlot:     ccdSlot,
		WCSLetter:   wcsLetter,
	}
	if name, ok := h.GetString("EXTNAME"); ok {
		seg.SegmentName = name
	}

	if err := extractImageInfo(seg, h, file); err != nil {
		return nil, err
	}

	var datasecStr string
	var pc11, pc12, pc21, pc22, crval1, crval2 float64
	var err error

	if override != nil {
		datasecStr = override.Datasec
		pc11, pc12, pc21, pc22 = override.PC1_1, override.PC1_2, override.PC2_1, override.PC2_2
		crval1, crval2 = override.CRVal1, override.CRVal2
	} else {
		datasecStr, err = h.RequireString("DATASEC", file)
		if err != nil {
			return nil, err
		}

		localLetter := wcsLetter
		if wcsLetter == 'Q' && raftBay != "" {
			localLetter = 'E'
		}
		suffix := string(localLetter)
		pc11, err = h.RequireFloat("PC1_1"+suffix, file)
		if err != nil {
			return nil, err
		}
		pc22, err = h.RequireFloat("PC2_2"+suffix, file)
		if err != nil {
			return nil, err
		}
		pc12, err = h.RequireFloat("PC1_2"+suffix, file)
		if err != nil {
			return nil, err
		}
		pc21, err = h.RequireFloat("PC2_1"+suffix, file)
		if err != nil {
			return nil, err
		}
		crval1, err = h.RequireFloat("CRVAL1"+suffix, file)
		if err != nil {
			return nil, err
		}
		crval2, err = h.RequireFloat("CRVAL2"+suffix, file)
		if err != nil {
			return nil, err
		}

		if wcsLetter == 'Q' && raftBay != "" && len(raftBay) >= 3 {
			raftX, errX := strconv.Atoi(string(raftBay[1]))
			raftY, errY := strconv.Atoi(string(raftBay[2]))
			if errX == nil && errY == nil {
				crval1 -= float64(raftY) * 12700
				crval2 -= float64(raftX) * 12700
			}
		}
	}

	seg.Datasec, err = parseDatasec(datasecStr)
	if err != nil {
		return nil, err
	}

	a := affine.New(pc11, pc21, pc12, pc22, crval1, crval2)
	a = a.Translate(float64(seg.Datasec.X)+0.5, float64(seg.Datasec.Y)+0.5)
	seg.Affine = a
	seg.WCS = a.BoundingBox(float64(seg.Datasec.W), float64(seg.Datasec.H))

	return seg, nil
}

// extractImageInfo fills in the compression and pixel-layout fields,
// mirroring Segment.java's extractheaderInfo.
func extractImageInfo(seg *Segment, h *fitsheader.Header, file string) error {
	zimage, _ := h.Get("ZIMAGE")
	seg.IsCompressed = zimage.Kind == fitsheader.KindBool && zimage.B

	if seg.IsCompressed {
		bitpix, err := h.RequireInt("ZBITPIX", file)
		if err != nil {
			return err
		}
		seg.Bitpix = int(bitpix)

		cmpType, err := h.RequireString("ZCMPTYPE", file)
		if err != nil {
			return err
		}
		switch cmpType {
		case "RICE_1":
			seg.Compression = CompressionRice1
		case "GZIP_2":
			seg.Compression = CompressionGzip2
		default:
			return &fiterr.UnsupportedCompression{CompressionType: cmpType}
		}

		nAxis1, err := h.RequireInt("ZNAXIS1", file)
		if err != nil {
			return err
		}
		nAxis2, err := h.RequireInt("ZNAXIS2", file)
		if err != nil {
			return err
		}
		seg.NAxis1, seg.NAxis2 = int(nAxis1), int(nAxis2)

		cAxis1, err := h.RequireInt("NAXIS1", file)
		if err != nil {
			return err
		}
		cAxis2, err := h.RequireInt("NAXIS2", file)
		if err != nil {
			return err
		}
		seg.CAxis1, seg.CAxis2 = int(cAxis1), int(cAxis2)

		pcount, err := h.RequireInt("PCOUNT", file)
		if err != nil {
			return err
		}
		seg.RawDataLen = cAxis1*cAxis2 + pcount
	} else {
		bitpix, err := h.RequireInt("BITPIX", file)
		if err != nil {
			return err
		}
		seg.Bitpix = int(bitpix)

		nAxis1, err := h.RequireInt("NAXIS1", file)
		if err != nil {
			return err
		}
		nAxis2, err := h.RequireInt("NAXIS2", file)
		if err != nil {
			return err
		}
		seg.NAxis1, seg.NAxis2 = int(nAxis1), int(nAxis2)
		seg.RawDataLen = int64(seg.NAxis1) * int64(seg.NAxis2) * 4
	}
	return nil
}

// Intersects reports whether the segment's focal-plane bounding rectangle
// overlaps sourceRect. A rectangle with W<=0 or H<=0 overlaps nothing; the
// render controller's "accept all" case is a nil *affine.Rect, which it
// handles itself without calling Intersects.
func (s *Segment) Intersects(sourceRect affine.Rect) bool {
	return s.WCS.Intersects(sourceRect)
}

func fmtWCSKey(raftBay, ccdSlot, ampSuffix string) string {
	return fmt.Sprintf("%s/%s/%s", raftBay, ccdSlot, ampSuffix)
}
