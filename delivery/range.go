/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package delivery

import (
	"strconv"
	"strings"
)

// ByteRange is an inclusive byte interval of a blob.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Size() int64 {
	return r.End - r.Start + 1
}

// ParseRange interprets a Range header value against the blob's total
// length.  Parsing is deliberately lenient: browsers issue a bare GET
// before the user ever seeks, and some players send junk ranges, so any
// header we cannot make sense of serves the default initial chunk
// starting at offset zero instead of failing the request.
//
// An absent end offset is bounded by the default chunk size so a
// "bytes=0-" request never promises the whole file in one response; the
// client learns the total from Content-Range and follows up.  The end
// offset is always clamped to totalLength-1.
func ParseRange(header string, totalLength, defaultChunkSize int64) ByteRange {
	fallback := ByteRange{Start: 0, End: min(defaultChunkSize, totalLength) - 1}

	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return fallback
	}

	startStr, endStr, _ := strings.Cut(spec, "-")
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		start = 0
	}

	var end int64
	if endStr = strings.TrimSpace(endStr); endStr == "" {
		end = start + defaultChunkSize - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			end = start + defaultChunkSize - 1
		}
	}
	if end > totalLength-1 {
		end = totalLength - 1
	}

	if start > end || start >= totalLength {
		return fallback
	}
	return ByteRange{Start: start, End: end}
}
