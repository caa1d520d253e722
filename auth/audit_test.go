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
)

type recordingMethod struct {
	calls int
	last  error
}

func (r *recordingMethod) Authorization(caller, owner string, op auth.Operation, err error) {
	r.calls++
	r.last = err
}

func TestAuditedGateRecordsEveryDecision(t *testing.T) {
	require := require.New(t)

	rec := &recordingMethod{}
	gate := auth.NewAuditedGate(auth.NewGate(logrus.StandardLogger()), rec)
	p := plan.New(&plan.DbTable{Table: 1, Hdr: publicHeader()})

	require.NoError(gate.Check("alice", "alice", p, auth.OpQuery))
	require.Equal(1, rec.calls)
	require.NoError(rec.last)

	err := gate.Check("bob", "alice", p, auth.OpInsert)
	require.Error(err)
	require.Equal(2, rec.calls)
	require.Error(rec.last)
}

func TestAuditedGateWrapsOpenGate(t *testing.T) {
	require := require.New(t)

	rec := &recordingMethod{}
	gate := auth.NewAuditedGate(auth.OpenGate{}, rec)
	p := plan.New(&plan.DbTable{Table: 2, Hdr: privateHeader()})

	require.NoError(gate.Check("bob", "alice", p, auth.OpDrop))
	require.Equal(1, rec.calls)
	require.NoError(rec.last)
}
