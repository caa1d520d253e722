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

// Package relerr centralizes the error taxonomy shared by the predicate,
// index, plan, analyzer and auth packages so each one instantiates a common
// set of kinds instead of minting its own.
package relerr

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrTypeError is returned when a predicate evaluates a non-bool value
	// in a boolean context, or a literal's type mismatches a column's type.
	ErrTypeError = errors.NewKind("type error: %s")

	// ErrUnknownField is returned when a predicate references a field that
	// does not resolve against the header it is being reduced or planned
	// against.
	ErrUnknownField = errors.NewKind("unknown field: %s")

	// ErrUnknownColumn is returned when a field resolves against the
	// header but its column position lies beyond the end of the row being
	// evaluated.
	ErrUnknownColumn = errors.NewKind("unknown column: %s")

	// ErrTablePrivate is returned by the access gate when a non-owner
	// caller's plan references a private table.
	ErrTablePrivate = errors.NewKind("table %s is private")

	// ErrOwnerRequired is returned by the access gate when a mutating
	// operation is attempted by a caller other than the table owner.
	ErrOwnerRequired = errors.NewKind("operation requires table owner")

	// ErrNoStaticLayout is not a failure mode exposed to callers as an
	// error value: BuildStaticLayout returns (nil, false) rather than an
	// error. It is kept here for callers that want to report it through
	// the same error-kind machinery as everything else (e.g. logging a
	// registration-time diagnostic).
	ErrNoStaticLayout = errors.NewKind("row type %s has no static layout")

	// ErrParseOwnerFile is returned when an auth.OwnerRegistry file fails
	// to parse.
	ErrParseOwnerFile = errors.NewKind("error parsing owner registry file: %s")

	// ErrDuplicateTableOwner is returned when an owner registry file names
	// the same table twice.
	ErrDuplicateTableOwner = errors.NewKind("duplicate owner entry for table: %s")
)
