// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bflatn converts a B-FLAT (in-memory, padded, fixed-layout) row
// into the compact B-SATN wire format via a precomputed, value-independent
// sequence of raw byte copies. It is the row-read hot path: a registered
// StaticLayout reduces serialization to a handful of memcpy-shaped copies,
// skipping padding, with no per-field type dispatch.
package bflatn

import (
	"fmt"

	"relquery/rowtype"
)

// CopyField is one raw, non-overlapping byte copy from the source row into
// the destination buffer.
type CopyField struct {
	SrcOff uint16
	DstOff uint16
	Len    uint16
}

// StaticLayout is the precomputed copy plan for a single row type. It is
// built once at schema-registration time and is immutable thereafter; it
// carries no reference to any particular row's bytes.
type StaticLayout struct {
	OutputLength uint16
	Copies       []CopyField
}

// Trivial reports whether the layout is a single copy spanning the whole
// row, i.e. the type has no internal padding at all. Callers that want to
// special-case a straight memcpy can skip iterating Copies in that case.
func (l *StaticLayout) Trivial() bool {
	return len(l.Copies) == 1 && l.Copies[0].SrcOff == 0 && l.Copies[0].DstOff == 0 &&
		l.Copies[0].Len == l.OutputLength
}

// builder accumulates CopyFields for one row type (or one sum variant,
// which is built independently via a fresh builder and then spliced into
// the parent).
type builder struct {
	copies []CopyField
}

func newBuilder() *builder {
	// One empty record at (0,0,0), as specified. extend merges into it
	// when the type's first byte starts at offset 0 (the common case);
	// finalize drops it if nothing ever merged into it.
	return &builder{copies: []CopyField{{0, 0, 0}}}
}

func (b *builder) nextSrc() uint16 {
	last := &b.copies[len(b.copies)-1]
	return last.SrcOff + last.Len
}

func (b *builder) nextDst() uint16 {
	last := &b.copies[len(b.copies)-1]
	return last.DstOff + last.Len
}

// extend appends length bytes at (srcOff, dstOff). If they are contiguous
// with the current last record, it grows that record in place; otherwise
// it pushes a new record. This single merge-or-push rule is what produces
// the "push an empty record on a padding gap, otherwise grow the current
// copy" behavior described in spec.md §4.1 for both Product gaps and the
// gap between a Sum's tag and its payload.
func (b *builder) extend(srcOff, dstOff, length uint16) {
	if length == 0 {
		return
	}
	last := &b.copies[len(b.copies)-1]
	if last.SrcOff+last.Len == srcOff && last.DstOff+last.Len == dstOff {
		last.Len += length
		return
	}
	b.copies = append(b.copies, CopyField{SrcOff: srcOff, DstOff: dstOff, Len: length})
}

// finalize drops zero-length records and computes OutputLength.
func (b *builder) finalize() *StaticLayout {
	out := make([]CopyField, 0, len(b.copies))
	for _, c := range b.copies {
		if c.Len > 0 {
			out = append(out, c)
		}
	}
	var outputLength uint16
	if len(out) > 0 {
		last := out[len(out)-1]
		outputLength = last.DstOff + last.Len
	}
	return &StaticLayout{OutputLength: outputLength, Copies: out}
}

// buildType walks t, whose absolute byte range starts at base, extending b.
// It returns false if t (or anything reachable from it) disqualifies the
// type from the fast path.
func (b *builder) buildType(t rowtype.Type, base uint16) bool {
	switch t.Kind {
	case rowtype.KindPrimitive:
		b.extend(base, b.nextDst(), t.PrimitiveSize)
		return true

	case rowtype.KindProduct:
		for _, el := range t.Elements {
			if !b.buildType(el.Type, base+el.Offset) {
				return false
			}
		}
		return true

	case rowtype.KindSum:
		return b.buildSum(t, base)

	case rowtype.KindVarLen:
		return false

	default:
		return false
	}
}

// buildSum handles the tagged-union case: all variants must independently
// reduce to the same StaticLayout (same total length, same copy sequence),
// or the wire format would be value-dependent in length, defeating
// precomputation (spec.md §4.1, "Why the variant-equality requirement").
func (b *builder) buildSum(t rowtype.Type, base uint16) bool {
	if len(t.Variants) == 0 {
		// the empty sum is uninhabited; it has no static layout.
		return false
	}

	first, ok := BuildStaticLayout(t.Variants[0])
	if !ok {
		return false
	}
	for _, v := range t.Variants[1:] {
		other, ok := BuildStaticLayout(v)
		if !ok || !sameLayout(first, other) {
			return false
		}
	}

	// the 1-byte tag.
	b.extend(base, b.nextDst(), 1)

	if first.OutputLength == 0 {
		// C-style enum: no variant carries a payload.
		return true
	}

	payloadSrcBase := base + t.PayloadOffset
	payloadDstBase := b.nextDst()
	for _, c := range first.Copies {
		b.extend(payloadSrcBase+c.SrcOff, payloadDstBase+c.DstOff, c.Len)
	}
	return true
}

func sameLayout(a, b *StaticLayout) bool {
	if a.OutputLength != b.OutputLength || len(a.Copies) != len(b.Copies) {
		return false
	}
	for i := range a.Copies {
		if a.Copies[i] != b.Copies[i] {
			return false
		}
	}
	return true
}

// BuildStaticLayout walks t and returns its StaticLayout, or (nil, false)
// if t's encoded length is not a compile-time constant for all valid
// values of t (a reachable var-length leaf, or a sum whose variants
// disagree on shape).
func BuildStaticLayout(t rowtype.Type) (*StaticLayout, bool) {
	b := newBuilder()
	if !b.buildType(t, 0) {
		return nil, false
	}
	return b.finalize(), true
}

// Serialize writes row's bytes into dst according to layout, performing
// one raw, non-overlapping copy per CopyField. dst must have capacity >=
// layout.OutputLength and row must be a fully-initialized row of the
// registered type; no further bounds checks are performed per field.
func Serialize(layout *StaticLayout, dst []byte, row []byte) {
	for _, c := range layout.Copies {
		copy(dst[c.DstOff:c.DstOff+c.Len], row[c.SrcOff:c.SrcOff+c.Len])
	}
}

// SerializeGeneral is the slow, always-correct reference serializer: a
// straightforward recursive walk of t that writes every leaf in order,
// regardless of whether t qualifies for the static-copy fast path. It is
// the correctness oracle BuildStaticLayout/Serialize are checked against
// (spec.md testable property #1), and the fallback callers reach for when
// BuildStaticLayout returns false.
//
// The variable-length leaf's wire encoding is owned by the external B-SATN
// value codec (out of scope here, per spec.md §1); encountering one
// returns ErrVarLenUnsupported.
func SerializeGeneral(t rowtype.Type, row []byte, dst []byte) (int, error) {
	n, err := writeGeneral(t, row, 0, dst, 0)
	return n, err
}

// ErrVarLenUnsupported is returned by SerializeGeneral when it reaches a
// variable-length leaf, since encoding one requires the external B-SATN
// value codec this package does not implement.
var ErrVarLenUnsupported = fmt.Errorf("bflatn: variable-length leaf has no general codec in this package")

func writeGeneral(t rowtype.Type, row []byte, srcOff int, dst []byte, dstOff int) (int, error) {
	switch t.Kind {
	case rowtype.KindPrimitive:
		n := int(t.PrimitiveSize)
		copy(dst[dstOff:dstOff+n], row[srcOff:srcOff+n])
		return dstOff + n, nil

	case rowtype.KindProduct:
		for _, el := range t.Elements {
			var err error
			dstOff, err = writeGeneral(el.Type, row, srcOff+int(el.Offset), dst, dstOff)
			if err != nil {
				return dstOff, err
			}
		}
		return dstOff, nil

	case rowtype.KindSum:
		if len(t.Variants) == 0 {
			return dstOff, fmt.Errorf("bflatn: empty sum has no inhabitants")
		}
		tag := row[srcOff]
		dst[dstOff] = tag
		dstOff++
		if int(tag) >= len(t.Variants) {
			return dstOff, fmt.Errorf("bflatn: tag %d out of range for %d variants", tag, len(t.Variants))
		}
		return writeGeneral(t.Variants[tag], row, srcOff+int(t.PayloadOffset), dst, dstOff)

	case rowtype.KindVarLen:
		return dstOff, ErrVarLenUnsupported

	default:
		return dstOff, fmt.Errorf("bflatn: unknown type kind %d", t.Kind)
	}
}
