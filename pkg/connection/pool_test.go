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
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap/sqlaccept/pkg/core"
)

type fakeOpener struct {
	calls int64
	fail  map[string]bool
	dsns  []string
	mu    sync.Mutex
}

func (o *fakeOpener) open(t *testing.T) Opener {
	return func(driverName, dsn string) (*sql.DB, error) {
		atomic.AddInt64(&o.calls, 1)
		o.mu.Lock()
		o.dsns = append(o.dsns, dsn)
		o.mu.Unlock()
		for host := range o.fail {
			if strings.Contains(dsn, host) {
				return nil, errors.New("connection refused")
			}
		}
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		return db, nil
	}
}

func mysqlPool(t *testing.T, o *fakeOpener) *Pool {
	return NewPool(Options{
		Driver: DriverConfig{Name: DriverMySQL},
		Opener: o.open(t),
	})
}

func TestAcquireReusesLiveConnection(t *testing.T) {
	o := &fakeOpener{}
	p := mysqlPool(t, o)
	defer p.Close()

	c1, err := p.Acquire(context.Background(), "db-a:4000", "alice", "pw")
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background(), "db-a:4000", "alice", "other")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&o.calls))

	c3, err := p.Acquire(context.Background(), "db-a:4000", "bob", "pw")
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
	assert.Equal(t, Key{Host: "db-a:4000", User: "bob"}, c3.Key())
	assert.Equal(t, int64(2), atomic.LoadInt64(&o.calls))
}

func TestAcquireMemoizesFailure(t *testing.T) {
	o := &fakeOpener{fail: map[string]bool{"db-b:4000": true}}
	p := mysqlPool(t, o)

	_, err := p.Acquire(context.Background(), "db-b:4000", "alice", "pw")
	require.Error(t, err)
	assert.False(t, core.IsPreviouslyFailed(err))
	connErr, ok := errors.Cause(err).(*core.ConnectionError)
	require.True(t, ok)
	assert.Equal(t, "open failed", connErr.Reason)

	_, err = p.Acquire(context.Background(), "db-b:4000", "alice", "pw")
	require.Error(t, err)
	assert.True(t, core.IsPreviouslyFailed(err))
	assert.Equal(t, int64(1), atomic.LoadInt64(&o.calls))
	assert.Equal(t, []Key{{Host: "db-b:4000", User: "alice"}}, p.Failed())
}

func TestAcquireConcurrentFirstUseDialsOnce(t *testing.T) {
	o := &fakeOpener{}
	p := mysqlPool(t, o)
	defer p.Close()

	var (
		wg    sync.WaitGroup
		conns = make([]*Connection, 8)
	)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Acquire(context.Background(), "db-c:4000", "alice", "pw")
			assert.NoError(t, err)
			conns[i] = c
		}(i)
	}
	wg.Wait()
	for _, c := range conns[1:] {
		assert.Same(t, conns[0], c)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&o.calls))
}

func TestProbeQueryFailureMarksKeyFailed(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("Access Denied: Invalid credentials"))
	mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("Access Denied: Invalid credentials"))
	var calls int64
	p := NewPool(Options{
		Driver:          DriverConfig{Name: DriverMySQL},
		ProbeQuery:      "SELECT 1",
		ConnectAttempts: 2,
		RetryInterval:   time.Millisecond,
		Opener: func(string, string) (*sql.DB, error) {
			atomic.AddInt64(&calls, 1)
			return db, nil
		},
	})

	_, err = p.Acquire(context.Background(), "db-d", "mallory", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = p.Acquire(context.Background(), "db-d", "mallory", "bad")
	assert.True(t, core.IsPreviouslyFailed(err))
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestDSN(t *testing.T) {
	dsn, err := DSN(DriverConfig{Name: DriverMySQL, DefaultPort: 4000, Schema: "test"}, "tidb.dev", "root", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "root@tcp(tidb.dev:4000)/test"), dsn)

	dsn, err = DSN(DriverConfig{Name: DriverPostgres}, "http://rw.dev:4566", "root", "pw")
	require.NoError(t, err)
	assert.Equal(t, "postgres://root:pw@rw.dev:4566/?sslmode=disable", dsn)

	dsn, err = DSN(DriverConfig{Name: DriverTrino, Scheme: "https", DefaultPort: 8443, Catalog: "hive"}, "trino.dev", "alice", "pw")
	require.NoError(t, err)
	assert.Contains(t, dsn, "https://alice:pw@trino.dev:8443")
	assert.Contains(t, dsn, "catalog=hive")

	_, err = DSN(DriverConfig{Name: "oracle"}, "h", "u", "p")
	assert.True(t, errors.IsNotSupported(err))
	_, err = DSN(DriverConfig{Name: DriverMySQL}, " ", "u", "p")
	assert.Error(t, err)
}
