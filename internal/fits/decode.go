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
	"strconv"
	"strings"

	"github.com/hoxca/fpimageio/internal/fiterr"
	"github.com/hoxca/fpimageio/internal/fitsheader"
)

// Opener resolves a descriptor's filesystem/object-store half to a
// FileHandle; internal/bytesource provides the concrete implementation, kept
// out of this package to avoid a dependency cycle (bytesource doesn't need
// to know about Segment, fits doesn't need to know about S3 credentials).
type Opener interface {
	Open(descriptor string) (FileHandle, error)
}

// DecodeSegments parses a SegmentDescriptor into its ordered list of
// Segments (spec section 4.2). tolerant controls whether a failure decoding
// a later HDU discards the whole list (false) or returns the partial result
// (true), per SPEC_FULL.md's "tolerant vs strict multi-HDU decode".
func DecodeSegments(opener Opener, descriptor string, wcsLetter byte, wcsOverride map[string]WCSOverride, tolerant bool) ([]Segment, error) {
	if strings.HasPrefix(descriptor, "DAQ:") {
		return nil, &fiterr.Unsupported{What: "DAQ descriptor dialect: " + descriptor}
	}

	h, err := opener.Open(descriptor)
	if err != nil {
		return nil, err
	}

	return decodeFitsFileSegments(h, descriptor, wcsLetter, wcsOverride, tolerant)
}

func decodeFitsFileSegments(h FileHandle, file string, wcsLetter byte, wcsOverride map[string]WCSOverride, tolerant bool) ([]Segment, error) {
	fileSize := h.Size()

	primary, err := fitsheader.Read(h, 0, file)
	if err != nil {
		return nil, err
	}

	if _, ok := primary.Get("N_STAMPS"); ok {
		return nil, nil // guider file: empty result, not an error
	}

	raftBay, _ := primary.GetString("RAFTBAY")
	ccdSlot, ok := primary.GetString("CCDSLOT")
	if !ok {
		ccdSlot, ok = primary.GetString("SENSNAME")
	}
	if !ok {
		return nil, &fiterr.MissingHeader{Key: "CCDSLOT", File: file}
	}

	expID, _ := primary.GetInt("EXPID")
	isDMFile := expID != 0

	nSegments := 16
	switch {
	case isDMFile:
		nSegments = 1
	case strings.HasPrefix(ccdSlot, "SW"):
		nSegments = 8
	}

	cursor := primary.HeaderBytes

	result := make([]Segment, 0, nSegments)
	for i := 1; i <= nSegments; i++ {
		hdr, err := fitsheader.Read(h, cursor, file)
		if err != nil {
			if tolerant && len(result) > 0 {
				return result, nil
			}
			return nil, err
		}
		dataOffset := cursor + hdr.HeaderBytes

		var seg *Segment
		var decodeErr error
		if isDMFile {
			seg, decodeErr = decodeDMSegment(hdr, i, dataOffset, fileSize, file, raftBay, ccdSlot)
		} else {
			var override *WCSOverride
			if wcsOverride != nil {
				extName, _ := hdr.GetString("EXTNAME")
				if len(extName) >= 9 {
					key := fmtWCSKey(raftBay, ccdSlot, extName[7:9])
					if ov, ok := wcsOverride[key]; ok {
						override = &ov
					}
				}
			}
			seg, decodeErr = decodeSegment(hdr, i, dataOffset, fileSize, file, raftBay, ccdSlot, wcsLetter, override)
		}

		if decodeErr != nil {
			if tolerant && len(result) > 0 {
				return result, nil
			}
			return nil, decodeErr
		}
		result = append(result, *seg)

		cursor = dataOffset + fitsheader.AlignTo2880(seg.RawDataLen)
	}

	return result, nil
}

// decodeDMSegment synthesizes the single-CCD WCS override described in
// CachingReader.java's readFitsFileSegment isDMFile branch: identity
// rotation, translation derived from the CCDSLOT digits with gutters of 150
// (x) and 200 (y) pixels, and a DATASEC covering the whole image.
func decodeDMSegment(h *fitsheader.Header, hduNumber int, dataOffset, fileSize int64, file, raftBay, ccdSlot string) (*Segment, error) {
	zimage, _ := h.Get("ZIMAGE")
	isCompressed := zimage.Kind == fitsheader.KindBool && zimage.B

	var naxis1, naxis2 int64
	var err error
	if isCompressed {
		naxis1, err = h.RequireInt("ZNAXIS1", file)
		if err != nil {
			return nil, err
		}
		naxis2, err = h.RequireInt("ZNAXIS2", file)
		if err != nil {
			return nil, err
		}
	} else {
		naxis1, err = h.RequireInt("NAXIS1", file)
		if err != nil {
			return nil, err
		}
		naxis2, err = h.RequireInt("NAXIS2", file)
		if err != nil {
			return nil, err
		}
	}

	if len(ccdSlot) < 3 {
		return nil, &fiterr.MalformedDescriptor{Descriptor: ccdSlot, Reason: "CCDSLOT too short for DM gutter computation"}
	}
	ccdx, errX := strconv.Atoi(string(ccdSlot[1]))
	ccdy, errY := strconv.Atoi(string(ccdSlot[2]))
	if errX != nil || errY != nil {
		return nil, &fiterr.MalformedDescriptor{Descriptor: ccdSlot, Reason: "CCDSLOT digits not numeric"}
	}

	override := WCSOverride{
		Datasec: "[1:" + strconv.FormatInt(naxis1, 10) + ",1:" + strconv.FormatInt(naxis2, 10) + "]",
		PC1_1:   1, PC1_2: 0, PC2_1: 0, PC2_2: 1,
		CRVal1: 100 + float64(ccdy)*(float64(naxis1)+150),
		CRVal2: 100 + float64(ccdx)*(float64(naxis2)+200),
	}

	return decodeSegment(h, hduNumber, dataOffset, fileSize, file, raftBay, ccdSlot, 'D', &override)
}
