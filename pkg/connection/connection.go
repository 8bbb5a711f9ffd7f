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

package connection

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// Connection is a live session to one engine as one user. It is shared by every
// worker holding the same Key.
type Connection struct {
	key Key
	db  *sql.DB
}

// Key returns the pool key of the connection.
func (c *Connection) Key() Key {
	return c.key
}

// Query runs a row-returning statement.
func (c *Connection) Query(ctx context.Context, stmt string) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.db.QueryContext(ctx, stmt)
	c.logSQL(stmt, time.Since(start), err)
	return rows, err
}

// Exec runs a statement that returns no rows.
func (c *Connection) Exec(ctx context.Context, stmt string) error {
	start := time.Now()
	_, err := c.db.ExecContext(ctx, stmt)
	c.logSQL(stmt, time.Since(start), err)
	return err
}

// Close closes the underlying handle.
func (c *Connection) Close() error {
	return c.db.Close()
}

func (c *Connection) logSQL(sql string, duration time.Duration, err error) {
	zap.L().Debug("exec sql",
		zap.String("conn", c.key.String()),
		zap.Bool("success", err == nil),
		zap.Duration("duration", duration),
		zap.String("sql", sql))
}
