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
	"fmt"
	"strconv"
	"time"
)

// value renders one result cell as text.
type value struct {
	text string
}

// Scan implements sql.Scanner.
func (v *value) Scan(src interface{}) error {
	switch t := src.(type) {
	case nil:
		v.text = "NULL"
	case bool:
		v.text = strconv.FormatBool(t)
	case int64:
		v.text = strconv.FormatInt(t, 10)
	case uint64:
		v.text = strconv.FormatUint(t, 10)
	case float32:
		v.text = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		v.text = strconv.FormatFloat(t, 'f', -1, 64)
	case []byte:
		v.text = string(t)
	case string:
		v.text = t
	case time.Time:
		v.text = t.Format("2006-01-02 15:04:05.999999999")
	default:
		v.text = fmt.Sprintf("%v", t)
	}
	return nil
}

func (v *value) String() string {
	return v.text
}
