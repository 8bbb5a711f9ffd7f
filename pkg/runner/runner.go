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

package runner

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// DDLResponse is the response recorded for statements that return no rows.
const DDLResponse = "DDL statement executed"

var rowPrefixes = []string{"select", "with", "show"}

// Session is the part of a pooled connection the runner needs.
type Session interface {
	Query(ctx context.Context, stmt string) (*sql.Rows, error)
	Exec(ctx context.Context, stmt string) error
}

// Runner executes one resolved statement and classifies the outcome.
type Runner struct {
	// Timeout bounds a single statement, zero means no deadline.
	Timeout time.Duration
}

// New creates a Runner.
func New(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

// ReturnsRows reports whether query is fetched as a result set. The decision is a
// plain prefix match on the trimmed, lower-cased text.
func ReturnsRows(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range rowPrefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}

// Run executes query on sess. Failures are reported in the outcome, never returned.
func (r *Runner) Run(ctx context.Context, sess Session, query string) core.Outcome {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var (
		response string
		err      error
	)
	if ReturnsRows(query) {
		response, err = r.fetch(ctx, sess, query)
	} else {
		err = sess.Exec(ctx, query)
		response = DDLResponse
	}
	if err != nil {
		msg := (&core.ExecutionError{Err: err}).Error()
		if ctx.Err() == context.DeadlineExceeded && r.Timeout > 0 {
			msg = (&core.TimeoutError{Timeout: r.Timeout}).Error()
		}
		zap.L().Error("execute query failed", zap.String("sql", query), zap.String("error", msg))
		return core.Outcome{Status: core.StatusError, ErrorMessage: msg, Aborted: ctx.Err() != nil}
	}
	return core.Outcome{Status: core.StatusCompleted, Response: response}
}

func (r *Runner) fetch(ctx context.Context, sess Session, query string) (string, error) {
	rows, err := sess.Query(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	vals := make([]interface{}, len(cols))
	for i := range vals {
		vals[i] = new(value)
	}

	var lines []string
	for rows.Next() {
		if err := rows.Scan(vals...); err != nil {
			return "", err
		}
		fields := make([]string, len(vals))
		for i, v := range vals {
			fields[i] = v.(*value).String()
		}
		lines = append(lines, strings.Join(fields, ", "))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}
