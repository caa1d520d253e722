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

package bflatn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relquery/rowtype"
)

// TestS1FourFieldRecord covers spec scenario S1: (u64, u64, u32, u64) with
// the u32->u64 transition forcing 4 bytes of padding.
func TestS1FourFieldRecord(t *testing.T) {
	require := require.New(t)

	ty := rowtype.Product(
		rowtype.ProductElement{Offset: 0, Type: rowtype.U64},
		rowtype.ProductElement{Offset: 8, Type: rowtype.U64},
		rowtype.ProductElement{Offset: 16, Type: rowtype.U32},
		rowtype.ProductElement{Offset: 24, Type: rowtype.U64},
	)

	layout, ok := BuildStaticLayout(ty)
	require.True(ok)
	require.EqualValues(28, layout.OutputLength)
	require.Equal([]CopyField{
		{SrcOff: 0, DstOff: 0, Len: 20},
		{SrcOff: 24, DstOff: 20, Len: 8},
	}, layout.Copies)
	require.False(layout.Trivial())
}

// TestS2CStyleEnumLikeSum covers S2: Sum{U8, I8, Bool}, a 1-byte tag with a
// 1-byte aligned payload, all variants agreeing on shape.
func TestS2CStyleEnumLikeSum(t *testing.T) {
	require := require.New(t)

	ty := rowtype.Sum(1, rowtype.U8, rowtype.I8, rowtype.Bool)

	layout, ok := BuildStaticLayout(ty)
	require.True(ok)
	require.EqualValues(2, layout.OutputLength)
	require.Equal([]CopyField{{SrcOff: 0, DstOff: 0, Len: 2}}, layout.Copies)
	require.True(layout.Trivial())
}

// TestS3SumFollowedByPrimitive covers S3: (Sum{U128, I128}, u32) with a
// 1-byte tag, a 16-byte aligned payload (15 bytes of pad), and a trailing
// u32 that turns out contiguous with the payload in both src and dst.
func TestS3SumFollowedByPrimitive(t *testing.T) {
	require := require.New(t)

	sum := rowtype.Sum(16, rowtype.U128, rowtype.I128)
	ty := rowtype.Product(
		rowtype.ProductElement{Offset: 0, Type: sum},
		rowtype.ProductElement{Offset: 32, Type: rowtype.U32},
	)

	layout, ok := BuildStaticLayout(ty)
	require.True(ok)
	require.EqualValues(21, layout.OutputLength)
	require.Equal([]CopyField{
		{SrcOff: 0, DstOff: 0, Len: 1},
		{SrcOff: 16, DstOff: 1, Len: 20},
	}, layout.Copies)
}

// TestS4VarLenDisqualifies covers S4: any reachable var-length leaf means
// no static layout, at any nesting depth.
func TestS4VarLenDisqualifies(t *testing.T) {
	require := require.New(t)

	direct := rowtype.Product(rowtype.ProductElement{Offset: 0, Type: rowtype.VarLen()})
	_, ok := BuildStaticLayout(direct)
	require.False(ok)

	nested := rowtype.Product(
		rowtype.ProductElement{Offset: 0, Type: rowtype.U64},
		rowtype.ProductElement{Offset: 8, Type: rowtype.Product(
			rowtype.ProductElement{Offset: 0, Type: rowtype.VarLen()},
		)},
	)
	_, ok = BuildStaticLayout(nested)
	require.False(ok)
}

func TestEmptySumHasNoLayout(t *testing.T) {
	require := require.New(t)
	_, ok := BuildStaticLayout(rowtype.Sum(1))
	require.False(ok)
}

func TestMismatchedVariantsRejected(t *testing.T) {
	require := require.New(t)

	// I128 has a different width than U32: the two variants disagree on
	// total length, so the sum has no constant-length encoding.
	ty := rowtype.Sum(16, rowtype.U32, rowtype.I128)
	_, ok := BuildStaticLayout(ty)
	require.False(ok)
}

func TestEmptyProductIsZeroLength(t *testing.T) {
	require := require.New(t)
	layout, ok := BuildStaticLayout(rowtype.Product())
	require.True(ok)
	require.EqualValues(0, layout.OutputLength)
	require.Empty(layout.Copies)
}

// TestSerializeMatchesGeneral is property #1: for every fast-pathable row
// type, the static-copy serializer and the general reflective serializer
// must agree byte for byte.
func TestSerializeMatchesGeneral(t *testing.T) {
	require := require.New(t)

	ty := rowtype.Product(
		rowtype.ProductElement{Offset: 0, Type: rowtype.U64},
		rowtype.ProductElement{Offset: 8, Type: rowtype.U64},
		rowtype.ProductElement{Offset: 16, Type: rowtype.U32},
		rowtype.ProductElement{Offset: 24, Type: rowtype.U64},
	)
	layout, ok := BuildStaticLayout(ty)
	require.True(ok)

	row := make([]byte, 32)
	for i := range row {
		row[i] = byte(i + 1)
	}

	fast := make([]byte, layout.OutputLength)
	Serialize(layout, fast, row)

	general := make([]byte, layout.OutputLength)
	n, err := SerializeGeneral(ty, row, general)
	require.NoError(err)
	require.EqualValues(layout.OutputLength, n)

	require.Equal(general, fast)
}

func TestSerializeSumPicksActiveVariant(t *testing.T) {
	require := require.New(t)

	ty := rowtype.Sum(1, rowtype.U8, rowtype.I8, rowtype.Bool)
	layout, ok := BuildStaticLayout(ty)
	require.True(ok)

	row := []byte{2, 0xAB}
	dst := make([]byte, layout.OutputLength)
	Serialize(layout, dst, row)
	require.Equal([]byte{2, 0xAB}, dst)

	general := make([]byte, layout.OutputLength)
	_, err := SerializeGeneral(ty, row, general)
	require.NoError(err)
	require.Equal(dst, general)
}

func TestCopyRecordMonotonicity(t *testing.T) {
	require := require.New(t)

	sum := rowtype.Sum(16, rowtype.U128, rowtype.I128)
	ty := rowtype.Product(
		rowtype.ProductElement{Offset: 0, Type: sum},
		rowtype.ProductElement{Offset: 32, Type: rowtype.U32},
	)
	layout, ok := BuildStaticLayout(ty)
	require.True(ok)

	var dst uint16
	for i, c := range layout.Copies {
		if i > 0 {
			require.Greater(c.SrcOff, layout.Copies[i-1].SrcOff)
		}
		require.Equal(dst, c.DstOff)
		dst += c.Len
	}
	require.Equal(layout.OutputLength, dst)
}
