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
	"github.com/sirupsen/logrus"

	"relquery/plan"
)

// AuditMethod is called to log the outcome of an access-gate decision.
type AuditMethod interface {
	Authorization(caller, owner string, op Operation, err error)
}

const auditLogMessage = "audit trail"

// AuditLog is an AuditMethod that logs to a logrus.FieldLogger, matching the
// teacher's structured-fields-then-Info pattern.
type AuditLog struct {
	log logrus.FieldLogger
}

// NewAuditLog builds an AuditMethod that logs to log tagged with
// system=audit.
func NewAuditLog(log logrus.FieldLogger) *AuditLog {
	return &AuditLog{log: log.WithField("system", "audit")}
}

// Authorization implements AuditMethod.
func (a *AuditLog) Authorization(caller, owner string, op Operation, err error) {
	fields := logrus.Fields{
		"action":  "authorization",
		"caller":  caller,
		"owner":   owner,
		"op":      op.String(),
		"success": true,
	}
	if err != nil {
		fields["success"] = false
		fields["err"] = err
	}
	a.log.WithFields(fields).Info(auditLogMessage)
}

// AuditedGate wraps a Checker so every decision is also reported to an
// AuditMethod, without the decision logic itself needing to know about
// auditing.
type AuditedGate struct {
	inner  Checker
	method AuditMethod
}

// NewAuditedGate wraps inner so every Check call is also reported to method.
func NewAuditedGate(inner Checker, method AuditMethod) *AuditedGate {
	return &AuditedGate{inner: inner, method: method}
}

// Check implements Checker.
func (a *AuditedGate) Check(caller, owner string, p *plan.QueryPlan, op Operation) error {
	err := a.inner.Check(caller, owner, p, op)
	a.method.Authorization(caller, owner, op, err)
	return err
}
