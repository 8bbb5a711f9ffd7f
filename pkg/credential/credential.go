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

package credential

import (
	"os"
	"strings"
	"unicode"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/pingcap/sqlaccept/pkg/core"
)

// Reference forms of core.Principal.CredentialRef.
const (
	// RefEnvPrefix reads the password from the named environment variable.
	RefEnvPrefix = "env:"
	// RefNone connects without a password.
	RefNone = "none"
	// RefPrompt, like an empty reference, tries the default variable and then prompts.
	RefPrompt = "prompt"
)

// DefaultEnvPrefix prefixes the variable checked for a user without an explicit reference.
const DefaultEnvPrefix = "SQLACCEPT_PASSWORD_"

// SecretPrompter asks the operator for a secret without echoing it.
type SecretPrompter interface {
	Secret(label string) (string, error)
}

// Store maps usernames to resolved passwords. It is read-only once built.
type Store map[string]string

// Credential implements core.CredentialStore.
func (s Store) Credential(user string) (string, bool) {
	v, ok := s[user]
	return v, ok
}

// DefaultEnvVar is the variable consulted for user when the principal has no
// explicit reference, e.g. SQLACCEPT_PASSWORD_DATA_ANALYST for "data.analyst".
func DefaultEnvVar(user string) string {
	return DefaultEnvPrefix + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, user)
}

// Resolver resolves credentials once per distinct user.
type Resolver struct {
	Prompter SecretPrompter
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Resolve walks principals in order and resolves each user the first time it
// is seen. A user whose variable is missing and who cannot be prompted is left
// out of the store, so its cases fail with a credential lookup error.
func (r *Resolver) Resolve(principals []core.Principal) (Store, error) {
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	store := make(Store)
	for _, p := range principals {
		if _, ok := store[p.User]; ok || p.User == "" {
			continue
		}
		ref := strings.TrimSpace(p.CredentialRef)
		switch {
		case strings.EqualFold(ref, RefNone):
			store[p.User] = ""
			continue
		case strings.HasPrefix(ref, RefEnvPrefix):
			name := strings.TrimPrefix(ref, RefEnvPrefix)
			if v, ok := lookup(name); ok {
				store[p.User] = v
				continue
			}
			zap.L().Warn("credential variable not set", zap.String("user", p.User), zap.String("var", name))
		case ref == "" || strings.EqualFold(ref, RefPrompt):
			if v, ok := lookup(DefaultEnvVar(p.User)); ok {
				store[p.User] = v
				continue
			}
		default:
			return nil, errors.NotValidf("credential reference %q of user %s", ref, p.User)
		}

		if r.Prompter == nil {
			zap.L().Warn("no credential for user", zap.String("user", p.User))
			continue
		}
		v, err := r.Prompter.Secret(promptLabel(p.User))
		if err != nil {
			return nil, errors.Annotatef(err, "read password for user %s", p.User)
		}
		store[p.User] = v
	}
	return store, nil
}

func promptLabel(user string) string {
	return "Enter password for user '" + user + "': "
}
