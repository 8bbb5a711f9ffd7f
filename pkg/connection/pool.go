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
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pingcap/sqlaccept/pkg/core"
	"github.com/pingcap/sqlaccept/util"
)

// Opener opens a database handle, sql.Open by default.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Options configures a Pool.
type Options struct {
	Driver DriverConfig
	// ConnectAttempts bounds how often a new key is pinged before it is marked failed.
	ConnectAttempts int
	// ProbeQuery, when set, is run once on every new session. Engines whose driver
	// connects lazily (trino) only authenticate on the first statement.
	ProbeQuery string
	// RetryInterval is the minimum backoff between connect attempts.
	RetryInterval time.Duration
	Opener        Opener
}

func (o *Options) adjust() {
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 1
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
	if o.Opener == nil {
		o.Opener = sql.Open
	}
}

// Pool keeps at most one live Connection per (host, user) and remembers keys
// that failed to connect. A failed key is never retried within the run.
type Pool struct {
	opt Options

	mu     sync.Mutex
	conns  map[Key]*Connection
	failed map[Key]error

	flight singleflight.Group
}

// NewPool creates a Pool.
func NewPool(opt Options) *Pool {
	opt.adjust()
	return &Pool{
		opt:    opt,
		conns:  make(map[Key]*Connection),
		failed: make(map[Key]error),
	}
}

// Acquire returns the live connection for (host, user), connecting on first use.
// It fails with a core.ConnectionError, immediately if the key failed before.
func (p *Pool) Acquire(ctx context.Context, host, user, credential string) (*Connection, error) {
	key := Key{Host: host, User: user}
	if conn, ok, err := p.lookup(key); ok {
		return conn, err
	}
	v, err, _ := p.flight.Do(key.String(), func() (interface{}, error) {
		if conn, ok, err := p.lookup(key); ok {
			return conn, err
		}
		conn, err := p.dial(ctx, key, credential)
		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			if ctx.Err() != context.Canceled {
				p.failed[key] = err
			}
			return nil, err
		}
		p.conns[key] = conn
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Connection), nil
}

func (p *Pool) lookup(key Key) (*Connection, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[key]; ok {
		return conn, true, nil
	}
	if _, ok := p.failed[key]; ok {
		return nil, true, &core.ConnectionError{Host: key.Host, User: key.User, Reason: core.ReasonPreviouslyFailed}
	}
	return nil, false, nil
}

func (p *Pool) dial(ctx context.Context, key Key, credential string) (*Connection, error) {
	connErr := func(reason string, err error) error {
		return &core.ConnectionError{Host: key.Host, User: key.User, Reason: reason, Err: err}
	}
	dsn, err := DSN(p.opt.Driver, key.Host, key.User, credential)
	if err != nil {
		return nil, connErr("invalid address", err)
	}
	db, err := p.opt.Opener(DriverName(p.opt.Driver), dsn)
	if err != nil {
		return nil, connErr("open failed", err)
	}

	b := &backoff.Backoff{
		Min:    p.opt.RetryInterval,
		Max:    10 * p.opt.RetryInterval,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 1; ; attempt++ {
		err = p.probe(ctx, db)
		if err == nil {
			break
		}
		zap.L().Warn("connect attempt failed",
			zap.String("conn", key.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt >= p.opt.ConnectAttempts || ctx.Err() != nil || util.IsErrAccessDenied(err) {
			db.Close()
			return nil, connErr("connect failed", errors.Trace(err))
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, connErr("connect failed", ctx.Err())
		case <-time.After(b.Duration()):
		}
	}
	zap.L().Info("connected", zap.String("conn", key.String()))
	return &Connection{key: key, db: db}, nil
}

func (p *Pool) probe(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if p.opt.ProbeQuery == "" {
		return nil
	}
	rows, err := db.QueryContext(ctx, p.opt.ProbeQuery)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// Failed lists the keys that failed to connect.
func (p *Pool) Failed() []Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]Key, 0, len(p.failed))
	for k := range p.failed {
		keys = append(keys, k)
	}
	return keys
}

// Close releases every live connection. Connections are otherwise kept for the
// whole run.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for k, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, k)
	}
	return errors.Trace(firstErr)
}
