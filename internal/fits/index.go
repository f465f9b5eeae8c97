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

// Package fits implements the Source Index Reader (C1) and Segment Metadata
// Decoder (C2): turning an index stream into descriptor strings, and each
// descriptor into the Segment records the rest of the core operates on.
// Grounded on CachingReader.java's readFitsFileSegment/readIndex and
// Segment.java's constructor.
package fits

import (
	"bufio"
	"io"
	"strings"

	"github.com/hoxca/fpimageio/internal/fiterr"
)

// ReadIndex returns the ordered list of non-blank, non-comment descriptor
// lines in r. Stateless and idempotent: calling it twice on equivalent
// content yields equal slices.
func ReadIndex(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fiterr.NewIOError("read index stream", err)
	}
	return lines, nil
}
