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

package auth

import (
	"encoding/json"
	"io/ioutil"

	"relquery/relerr"
)

// ownerEntry is one row of an owner registry file: a table name and the
// caller that owns it.
type ownerEntry struct {
	Table string
	Owner string
}

// OwnerRegistry resolves a table name to its declared owner, loaded from a
// JSON file at construction time (the teacher's NewNativeFile idiom,
// adapted from mysql-user credentials to table ownership).
type OwnerRegistry struct {
	owners map[string]string
}

// NewOwnerRegistrySingle builds a registry mapping every table in tables to
// a single owner, for tests and single-tenant embeddings.
func NewOwnerRegistrySingle(owner string, tables ...string) *OwnerRegistry {
	owners := make(map[string]string, len(tables))
	for _, t := range tables {
		owners[t] = owner
	}
	return &OwnerRegistry{owners: owners}
}

// NewOwnerRegistryFile loads a registry from a JSON file holding an array
// of {"Table": ..., "Owner": ...} entries.
func NewOwnerRegistryFile(file string) (*OwnerRegistry, error) {
	var data []ownerEntry

	raw, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, relerr.ErrParseOwnerFile.New(err)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, relerr.ErrParseOwnerFile.New(err)
	}

	owners := make(map[string]string, len(data))
	for _, e := range data {
		if _, ok := owners[e.Table]; ok {
			return nil, relerr.ErrParseOwnerFile.Wrap(relerr.ErrDuplicateTableOwner.New(e.Table))
		}
		owners[e.Table] = e.Owner
	}

	return &OwnerRegistry{owners: owners}, nil
}

// Owner returns the declared owner of table, or "" if the registry has no
// entry for it (treated as ownerless: every caller is then a non-owner for
// mutating ops, and Access alone governs reads).
func (r *OwnerRegistry) Owner(table string) string {
	return r.owners[table]
}
