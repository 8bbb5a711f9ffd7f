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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/trinodb/trino-go-client/trino"

	// postgres wire protocol engines
	_ "github.com/lib/pq"
)

// Supported engine drivers.
const (
	DriverTrino    = "trino"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DriverConfig describes how to reach the query engines of a run.
type DriverConfig struct {
	Name        string
	Scheme      string
	DefaultPort int
	Catalog     string
	Schema      string
	Source      string
}

// DSN builds the data source name for (host, user, password) under cfg.
// host may carry its own scheme and port, e.g. "https://trino.dev:8443".
func DSN(cfg DriverConfig, host, user, password string) (string, error) {
	scheme, hostPort, err := splitHost(host, cfg.Scheme, cfg.DefaultPort)
	if err != nil {
		return "", errors.Trace(err)
	}
	switch cfg.Name {
	case DriverTrino, "":
		u := url.URL{Scheme: scheme, Host: hostPort}
		if password == "" {
			u.User = url.User(user)
		} else {
			u.User = url.UserPassword(user, password)
		}
		tc := &trino.Config{
			ServerURI: u.String(),
			Source:    cfg.Source,
			Catalog:   cfg.Catalog,
			Schema:    cfg.Schema,
		}
		dsn, err := tc.FormatDSN()
		return dsn, errors.Annotate(err, "format trino dsn")
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = user
		mc.Passwd = password
		mc.Net = "tcp"
		mc.Addr = hostPort
		mc.DBName = cfg.Schema
		return mc.FormatDSN(), nil
	case DriverPostgres:
		u := url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Schema}
		if password == "" {
			u.User = url.User(user)
		} else {
			u.User = url.UserPassword(user, password)
		}
		q := u.Query()
		if scheme == "https" {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return "", errors.NotSupportedf("driver %q", cfg.Name)
}

// DriverName returns the database/sql driver name registered for cfg.
func DriverName(cfg DriverConfig) string {
	if cfg.Name == "" {
		return DriverTrino
	}
	return cfg.Name
}

func splitHost(host, defaultScheme string, defaultPort int) (string, string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", "", errors.NotValidf("empty host")
	}
	scheme := defaultScheme
	if scheme == "" {
		scheme = "https"
	}
	if i := strings.Index(host, "://"); i >= 0 {
		u, err := url.Parse(host)
		if err != nil {
			return "", "", errors.Annotatef(err, "parse host %s", host)
		}
		scheme, host = u.Scheme, u.Host
	}
	host = strings.TrimSuffix(host, "/")
	if _, _, err := net.SplitHostPort(host); err != nil && defaultPort > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(defaultPort))
	}
	return scheme, host, nil
}

// Key identifies one pooled connection.
type Key struct {
	Host string
	User string
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.User, k.Host)
}
