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

package util

import (
	"context"
	"net"
	"net/url"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	netproxy "golang.org/x/net/proxy"
)

var (
	setMySQLProxyOnce sync.Once
)

// SetMySQLProxy routes every mysql driver dial through the proxy at proxyURL,
// e.g. "socks5://bastion:1080". Only the first call takes effect.
func SetMySQLProxy(proxyURL string) error {
	dialer, err := fromURL(proxyURL)
	if err != nil {
		return errors.Trace(err)
	}

	setMySQLProxyOnce.Do(func() {
		mysql.RegisterDialContext("tcp", func(ctx context.Context, addr string) (net.Conn, error) {
			if xd, ok := dialer.(netproxy.ContextDialer); ok {
				return xd.DialContext(ctx, "tcp", addr)
			}
			return dialer.Dial("tcp", addr)
		})
	})
	return nil
}

func fromURL(proxyStr string) (netproxy.Dialer, error) {
	direct := &net.Dialer{}
	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, errors.Annotatef(err, "parse proxy %s", proxyStr)
	}
	proxy, err := netproxy.FromURL(proxyURL, direct)
	if err != nil {
		return nil, errors.Annotatef(err, "proxy %s", proxyStr)
	}
	return proxy, nil
}
