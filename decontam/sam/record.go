// Copyright © 2024-2026 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package sam turns SAM alignment lines into records carrying the
// alignment geometry needed for contamination filtering.
package sam

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
)

// ErrHeader is returned for SAM header lines.
var ErrHeader = errors.New("sam: header line")

// the mandatory fields of a SAM line
const nMandatory = 11

// Record is one parsed alignment line.
type Record struct {
	ReadName  string // normalized, without /1 or /2
	Reference string
	Mapped    bool
	Flags     sam.Flags

	// Identity is the fraction of aligned bases matching the reference.
	Identity float64
	// AlignedFraction is the fraction of the read taking part in the alignment.
	AlignedFraction float64

	// Mate is 1 or 2 for paired reads, 0 for single-end ones.
	Mate int
}

// ParseError describes a malformed SAM line.
type ParseError struct {
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > 80 {
		line = line[:80] + "..."
	}
	return fmt.Sprintf("malformed SAM line (%s): %s", e.Msg, line)
}

// Parse parses a SAM line. A trailing newline is ignored.
func Parse(line []byte) (*Record, error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) > 0 && line[0] == '@' {
		return nil, ErrHeader
	}

	s := string(line)
	items := make([]string, nMandatory+1)
	stringSplitNByByte(s, '\t', nMandatory+1, &items)
	if len(items) < nMandatory {
		return nil, &ParseError{Line: s, Msg: fmt.Sprintf("%d columns (<%d)", len(items), nMandatory)}
	}

	qname := items[0]
	if qname == "" {
		return nil, &ParseError{Line: s, Msg: "empty read name"}
	}
	flag, err := strconv.ParseUint(items[1], 10, 16)
	if err != nil {
		return nil, &ParseError{Line: s, Msg: "invalid FLAG: " + items[1]}
	}
	flags := sam.Flags(flag)

	r := &Record{
		ReadName:  NormalizeName(qname),
		Reference: items[2],
		Flags:     flags,
	}
	if flags&sam.Paired != 0 {
		switch {
		case flags&sam.Read1 != 0:
			r.Mate = 1
		case flags&sam.Read2 != 0:
			r.Mate = 2
		}
	}

	rname, cigar := items[2], items[5]
	if flags&sam.Unmapped != 0 || rname == "*" || cigar == "*" {
		return r, nil
	}

	var tags string
	if len(items) > nMandatory {
		tags = items[nMandatory]
	}

	g, err := geometryOf(cigar, tags)
	if err != nil {
		return nil, &ParseError{Line: s, Msg: err.Error()}
	}

	r.Mapped = true
	r.Identity = float64(g.matches) / float64(g.aligned)
	r.AlignedFraction = float64(g.aligned) / float64(g.readLen)
	return r, nil
}

// NormalizeName strips a trailing /1 or /2 mate suffix.
func NormalizeName(name string) string {
	n := len(name)
	if n > 2 && name[n-2] == '/' && (name[n-1] == '1' || name[n-1] == '2') {
		return name[:n-2]
	}
	return name
}

type geometry struct {
	aligned int // query bases aligned, M/I/=/X
	matches int // aligned bases identical to the reference
	readLen int // aligned bases plus clipped ones
}

func geometryOf(cigarStr string, tags string) (*geometry, error) {
	cigar, err := sam.ParseCigar([]byte(cigarStr))
	if err != nil {
		return nil, fmt.Errorf("invalid CIGAR: %s", cigarStr)
	}

	var g geometry
	var m, del, eq int
	var hasEqX bool
	for _, op := range cigar {
		switch op.Type() {
		case sam.CigarMatch:
			m += op.Len()
			g.aligned += op.Len()
		case sam.CigarEqual:
			hasEqX = true
			eq += op.Len()
			g.aligned += op.Len()
		case sam.CigarMismatch:
			hasEqX = true
			g.aligned += op.Len()
		case sam.CigarInsertion:
			g.aligned += op.Len()
		case sam.CigarDeletion:
			del += op.Len()
		case sam.CigarSoftClipped, sam.CigarHardClipped:
			g.readLen += op.Len()
		}
	}
	g.readLen += g.aligned
	if g.aligned == 0 {
		return nil, fmt.Errorf("no aligned bases in CIGAR: %s", cigarStr)
	}

	switch {
	case hasEqX:
		g.matches = eq
	default:
		nm, okNM, md, okMD, err := editTags(tags)
		if err != nil {
			return nil, err
		}
		switch {
		case okNM:
			// NM counts mismatches, inserted and deleted bases
			g.matches = g.aligned - (nm - del)
		case okMD:
			g.matches = md
		default:
			g.matches = m
		}
	}

	if g.matches < 0 {
		g.matches = 0
	} else if g.matches > g.aligned {
		g.matches = g.aligned
	}
	return &g, nil
}

// editTags extracts the edit distance (NM) and the number of matched
// bases described by the MD tag.
func editTags(tags string) (nm int, okNM bool, md int, okMD bool, err error) {
	for _, tag := range strings.Split(tags, "\t") {
		if len(tag) < 5 || tag[2] != ':' || tag[4] != ':' {
			continue
		}
		switch tag[:2] {
		case "NM":
			nm, err = strconv.Atoi(tag[5:])
			if err != nil || nm < 0 {
				return 0, false, 0, false, fmt.Errorf("invalid NM tag: %s", tag)
			}
			okNM = true
		case "MD":
			md, err = mdMatches(tag[5:])
			if err != nil {
				return 0, false, 0, false, err
			}
			okMD = true
		}
	}
	return
}

// mdMatches sums the match runs of an MD string,
// e.g., 10A5^AC6 has 21 matched bases.
func mdMatches(md string) (int, error) {
	var n, v int
	var inNumber bool
	for i := 0; i < len(md); i++ {
		c := md[i]
		if c >= '0' && c <= '9' {
			v = v*10 + int(c-'0')
			inNumber = true
			continue
		}
		if inNumber {
			n += v
			v = 0
			inNumber = false
		}
		if c != '^' && (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return 0, fmt.Errorf("invalid MD tag: %s", md)
		}
	}
	return n + v, nil
}

func stringSplitNByByte(s string, sep byte, n int, a *[]string) {
	if a == nil {
		tmp := make([]string, n)
		a = &tmp
	}

	n--
	i := 0
	for i < n {
		m := strings.IndexByte(s, sep)
		if m < 0 {
			break
		}
		(*a)[i] = s[:m]
		s = s[m+1:]
		i++
	}
	(*a)[i] = s

	(*a) = (*a)[:i+1]
}
