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
	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/lib/pq"
)

// mysql error numbers
const (
	errAccessDenied       uint16 = 1045
	errAccessDeniedNoPass uint16 = 1698
	errDBAccessDenied     uint16 = 1044
	errTableNotExists     uint16 = 1146
)

// postgres SQLSTATE codes
const (
	pqInvalidPassword      = "28P01"
	pqInvalidAuthorization = "28000"
)

// IsErrAccessDenied reports whether err is an authentication rejection, which
// does not get better by retrying.
func IsErrAccessDenied(err error) bool {
	return isMySQLError(err, errAccessDenied, errAccessDeniedNoPass, errDBAccessDenied) ||
		isPQError(err, pqInvalidPassword, pqInvalidAuthorization)
}

// IsErrTableNotExists checks whether err is TableNotExists error
func IsErrTableNotExists(err error) bool {
	return isMySQLError(err, errTableNotExists)
}

func isMySQLError(err error, codes ...uint16) bool {
	err = originError(err)
	e, ok := err.(*mysql.MySQLError)
	if !ok {
		return false
	}
	for _, code := range codes {
		if e.Number == code {
			return true
		}
	}
	return false
}

func isPQError(err error, codes ...string) bool {
	err = originError(err)
	e, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	for _, code := range codes {
		if string(e.Code) == code {
			return true
		}
	}
	return false
}

// originError return original error
func originError(err error) error {
	for {
		e := errors.Cause(err)
		if e == err {
			break
		}
		err = e
	}
	return err
}
