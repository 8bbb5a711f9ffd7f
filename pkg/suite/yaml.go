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

package suite

import (
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// LoadYAML reads a suite document.
func LoadYAML(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Annotate(err, "parse yaml")
	}
	return &s, nil
}
