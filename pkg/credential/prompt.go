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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"golang.org/x/term"
)

// TerminalPrompter asks on the controlling terminal. Plain values use an
// interactive line editor, secrets are read without echo. When stdin is not a
// terminal both fall back to reading one line.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminalPrompter prompts on stdin and stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) interactive() bool {
	return term.IsTerminal(int(p.In.Fd()))
}

// Prompt implements variable.Prompter.
func (p *TerminalPrompter) Prompt(label string) (string, error) {
	if !p.interactive() {
		return p.readLine(label)
	}
	v := prompt.Input(label, func(prompt.Document) []prompt.Suggest { return nil })
	return strings.TrimSpace(v), nil
}

// Secret implements SecretPrompter.
func (p *TerminalPrompter) Secret(label string) (string, error) {
	if !p.interactive() {
		return p.readLine(label)
	}
	fmt.Fprint(p.Out, label)
	b, err := term.ReadPassword(int(p.In.Fd()))
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(b), nil
}

func (p *TerminalPrompter) readLine(label string) (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	fmt.Fprint(p.Out, label)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", errors.Annotate(err, "read answer")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
