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

import "relquery/plan"

// OpenGate is a Checker that always permits, for embeddings that run with
// no access policy at all (single-tenant use, local development).
type OpenGate struct{}

// Check implements Checker.
func (OpenGate) Check(caller, owner string, p *plan.QueryPlan, op Operation) error {
	return nil
}
