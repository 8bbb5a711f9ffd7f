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

package core

import "strings"

// Endpoint maps a (team, instance type, env) triple to a host address.
type Endpoint struct {
	Team         string `yaml:"team"`
	InstanceType string `yaml:"instance_type"`
	Env          string `yaml:"env"`
	Host         string `yaml:"host"`
}

// Principal maps an (env, group) pair to the user that runs the group's queries.
type Principal struct {
	Env   string `yaml:"env"`
	Group string `yaml:"group"`
	User  string `yaml:"user"`
	// CredentialRef tells the credential resolver where the password comes from,
	// e.g. "env:TRINO_PASSWORD". Empty means prompt.
	CredentialRef string `yaml:"credential"`
}

// Variable is one entry of the env-scoped placeholder table.
type Variable struct {
	Env   string `yaml:"env"`
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// EndpointTable looks up host addresses.
type EndpointTable interface {
	Host(team, instanceType, env string) (string, bool)
}

// PrincipalTable looks up principals.
type PrincipalTable interface {
	Principal(env, group string) (Principal, bool)
}

// VariableTable looks up placeholder values.
type VariableTable interface {
	Variable(env, name string) (string, bool)
}

// CredentialStore hands out resolved credentials by username.
type CredentialStore interface {
	Credential(user string) (string, bool)
}

func key(parts ...string) string {
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, "\x00")
}

// Endpoints is an immutable EndpointTable. The first entry wins on duplicates.
type Endpoints struct {
	hosts map[string]string
}

// NewEndpoints builds the table.
func NewEndpoints(es []Endpoint) *Endpoints {
	t := &Endpoints{hosts: make(map[string]string, len(es))}
	for _, e := range es {
		k := key(e.Team, e.InstanceType, e.Env)
		if _, ok := t.hosts[k]; ok {
			continue
		}
		t.hosts[k] = strings.TrimSpace(e.Host)
	}
	return t
}

// Host implements EndpointTable.
func (t *Endpoints) Host(team, instanceType, env string) (string, bool) {
	h, ok := t.hosts[key(team, instanceType, env)]
	return h, ok && h != ""
}

// Principals is an immutable PrincipalTable.
type Principals struct {
	all    []Principal
	byPair map[string]Principal
}

// NewPrincipals builds the table.
func NewPrincipals(ps []Principal) *Principals {
	t := &Principals{byPair: make(map[string]Principal, len(ps))}
	for _, p := range ps {
		k := key(p.Env, p.Group)
		if _, ok := t.byPair[k]; ok {
			continue
		}
		p.User = strings.TrimSpace(p.User)
		t.byPair[k] = p
		t.all = append(t.all, p)
	}
	return t
}

// Principal implements PrincipalTable.
func (t *Principals) Principal(env, group string) (Principal, bool) {
	p, ok := t.byPair[key(env, group)]
	return p, ok && p.User != ""
}

// ForEnv lists the principals of env in table order.
func (t *Principals) ForEnv(env string) []Principal {
	var ps []Principal
	for _, p := range t.all {
		if strings.TrimSpace(p.Env) == strings.TrimSpace(env) {
			ps = append(ps, p)
		}
	}
	return ps
}

// Variables is an immutable VariableTable.
type Variables map[string]string

// NewVariables builds the table.
func NewVariables(vs []Variable) Variables {
	t := make(Variables, len(vs))
	for _, v := range vs {
		k := key(v.Env, v.Name)
		if _, ok := t[k]; ok {
			continue
		}
		t[k] = v.Value
	}
	return t
}

// Variable implements VariableTable.
func (t Variables) Variable(env, name string) (string, bool) {
	v, ok := t[key(env, name)]
	return v, ok
}
