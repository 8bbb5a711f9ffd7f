// Copyright 2020 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "strings"

// Checker decides the verdict of an executed case.
type Checker interface {
	// Check compares what happened with what the case expects.
	Check(c *TestCase, o Outcome) Result

	// Name returns the unique name for the checker.
	Name() string
}

// TolerantChecker passes a case when the status matches and, if the case pins a
// response, the trimmed response matches too.
type TolerantChecker struct{}

// Check implements Checker.
func (TolerantChecker) Check(c *TestCase, o Outcome) Result {
	if o.Status != c.ExpectedStatus {
		return ResultFail
	}
	expected := strings.TrimSpace(c.ExpectedResponse)
	if expected == "" || strings.TrimSpace(o.Response) == expected {
		return ResultPass
	}
	return ResultFail
}

// Name implements Checker.
func (TolerantChecker) Name() string {
	return "TolerantChecker"
}
