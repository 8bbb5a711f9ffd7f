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

package variable

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// placeholderRE matches `##identifier##` tokens in query text.
var placeholderRE = regexp.MustCompile(`##([A-Za-z_][A-Za-z0-9_]*)##`)

// Prompter asks the operator for a value.
type Prompter interface {
	Prompt(label string) (string, error)
}

// Resolver binds placeholders for one env. Bindings are built by ResolveAll
// before any worker starts and are read-only afterwards.
type Resolver struct {
	env      string
	table    core.VariableTable
	prompter Prompter

	mu       sync.RWMutex
	bindings map[string]string
}

// NewResolver creates a Resolver. prompter may be nil, in which case
// variables missing from the table stay unbound.
func NewResolver(env string, table core.VariableTable, prompter Prompter) *Resolver {
	return &Resolver{
		env:      env,
		table:    table,
		prompter: prompter,
		bindings: make(map[string]string),
	}
}

// Placeholders returns the distinct placeholder names of text in first-appearance order.
func Placeholders(text string) []string {
	var (
		names []string
		seen  = make(map[string]struct{})
	)
	for _, m := range placeholderRE.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// ResolveAll binds every distinct placeholder across cases, from the table when
// possible and by prompting otherwise. Names that are already bound are skipped,
// so calling it again never prompts twice.
func (r *Resolver) ResolveAll(cases []*core.TestCase) error {
	var all strings.Builder
	for _, c := range cases {
		all.WriteString(c.QueryText)
		all.WriteByte('\n')
	}
	for _, name := range Placeholders(all.String()) {
		if r.bound(name) {
			continue
		}
		if v, ok := r.table.Variable(r.env, name); ok {
			r.bind(name, v)
			zap.L().Debug("variable bound from table", zap.String("name", name), zap.String("env", r.env))
			continue
		}
		if r.prompter == nil {
			zap.L().Warn("variable has no value and no prompter is set", zap.String("name", name))
			continue
		}
		v, err := r.prompter.Prompt(fmt.Sprintf("Enter value for variable '%s' (env %s): ", name, r.env))
		if err != nil {
			return errors.Annotatef(err, "prompt for variable %s", name)
		}
		r.bind(name, v)
		zap.L().Info("variable bound from prompt", zap.String("name", name), zap.String("env", r.env))
	}
	return nil
}

// Bindings returns a copy of the current bindings.
func (r *Resolver) Bindings() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]string, len(r.bindings))
	for k, v := range r.bindings {
		cp[k] = v
	}
	return cp
}

// Substitute replaces every bound placeholder in text. Unbound placeholders are
// left verbatim. Surrounding whitespace and one trailing ';' are stripped.
func (r *Resolver) Substitute(text string) string {
	r.mu.RLock()
	resolved := placeholderRE.ReplaceAllStringFunc(text, func(token string) string {
		name := token[2 : len(token)-2]
		if v, ok := r.bindings[name]; ok {
			return v
		}
		return token
	})
	r.mu.RUnlock()
	resolved = strings.TrimSpace(resolved)
	resolved = strings.TrimSuffix(resolved, ";")
	return strings.TrimSpace(resolved)
}

func (r *Resolver) bound(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[name]
	return ok
}

func (r *Resolver) bind(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[name] = value
}
