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

package auth_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"relquery/auth"
	"relquery/plan"
	"relquery/relerr"
	"relquery/schema"
)

func publicHeader() *schema.Header {
	return &schema.Header{
		TableId: 1,
		Name:    "widgets",
		Owner:   "alice",
		Access:  schema.Public,
		Columns: []schema.ColumnInfo{{Id: 1, Name: "id"}},
	}
}

func privateHeader() *schema.Header {
	return &schema.Header{
		TableId: 2,
		Name:    "secrets",
		Owner:   "alice",
		Access:  schema.Private,
		Columns: []schema.ColumnInfo{{Id: 1, Name: "id"}},
	}
}

func TestGateOwnerAlwaysAllowed(t *testing.T) {
	require := require.New(t)
	g := auth.NewGate(logrus.StandardLogger())
	p := plan.New(&plan.DbTable{Table: 2, Hdr: privateHeader()})

	require.NoError(g.Check("alice", "alice", p, auth.OpQuery))
	require.NoError(g.Check("alice", "alice", p, auth.OpDrop))
}

func TestGateNonOwnerReadOfPrivateTableDenied(t *testing.T) {
	require := require.New(t)
	g := auth.NewGate(logrus.StandardLogger())
	p := plan.New(&plan.DbTable{Table: 2, Hdr: privateHeader()})

	err := g.Check("bob", "alice", p, auth.OpQuery)
	require.Error(err)
	require.True(relerr.ErrTablePrivate.Is(err))
}

func TestGateNonOwnerReadOfPublicTableAllowed(t *testing.T) {
	require := require.New(t)
	g := auth.NewGate(logrus.StandardLogger())
	p := plan.New(&plan.DbTable{Table: 1, Hdr: publicHeader()})

	require.NoError(g.Check("bob", "alice", p, auth.OpQuery))
}

func TestGateNonOwnerMutationAlwaysDenied(t *testing.T) {
	require := require.New(t)
	g := auth.NewGate(logrus.StandardLogger())
	p := plan.New(&plan.DbTable{Table: 1, Hdr: publicHeader()})

	err := g.Check("bob", "alice", p, auth.OpInsert)
	require.Error(err)
	require.True(relerr.ErrOwnerRequired.Is(err))
}

func TestGateDeniesOnAnyReferencedPrivateTable(t *testing.T) {
	require := require.New(t)
	g := auth.NewGate(logrus.StandardLogger())

	lhs := &plan.DbTable{Table: 1, Hdr: publicHeader()}
	rhs := plan.New(&plan.DbTable{Table: 2, Hdr: privateHeader()})
	p := plan.New(lhs).WithJoinInner(rhs, nil, nil, false)

	err := g.Check("bob", "alice", p, auth.OpQuery)
	require.Error(err)
	require.True(relerr.ErrTablePrivate.Is(err))
}

func TestReferencedHeadersWalksJoinRhs(t *testing.T) {
	require := require.New(t)

	lhs := &plan.DbTable{Table: 1, Hdr: publicHeader()}
	rhs := plan.New(&plan.DbTable{Table: 2, Hdr: privateHeader()})
	p := plan.New(lhs).WithJoinInner(rhs, nil, nil, false)

	hdrs := auth.ReferencedHeaders(p)
	require.Len(hdrs, 2)
	require.Equal("widgets", hdrs[0].Name)
	require.Equal("secrets", hdrs[1].Name)
}

func TestOperationIsMutating(t *testing.T) {
	require := require.New(t)
	require.False(auth.OpQuery.IsMutating())
	require.True(auth.OpInsert.IsMutating())
	require.True(auth.OpUpdate.IsMutating())
	require.True(auth.OpDelete.IsMutating())
	require.True(auth.OpCreateTable.IsMutating())
	require.True(auth.OpDrop.IsMutating())
	require.True(auth.OpSetVar.IsMutating())
}
