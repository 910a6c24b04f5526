/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ntpq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Errors returned by Session.Run
var (
	ErrHandshakeTimeout = errors.New("timed out waiting for ntpq")
	ErrProcessSpawn     = errors.New("failed to spawn ntpq")
	ErrUnexpectedEOF    = errors.New("ntpq output ended before expected prompt")
)

// Query is an ntpq command passed with -c
type Query string

// Queries we know how to parse
const (
	QueryInterfaceStats Query = "ifstats"
	QuerySystemStats    Query = "sysstat"
	QueryKernelInfo     Query = "kerninfo"
)

// KeyIDPrompt is printed by ntpq when privileged query needs a key
const KeyIDPrompt = "Keyid:"

// Defaults for Session timeouts
const (
	DefaultPromptTimeout = 5 * time.Second
	DefaultEOFTimeout    = 30 * time.Second
	DefaultPath          = "ntpq"
)

// State of the handshake
type State int

// Handshake states
const (
	StateSpawned State = iota
	StateAwaitingKeyIDAck
	StateAwaitingPasswordAck
	StateClosed
	StateFailed
)

var stateNames = map[State]string{
	StateSpawned:             "spawned",
	StateAwaitingKeyIDAck:    "awaiting-keyid-ack",
	StateAwaitingPasswordAck: "awaiting-password-ack",
	StateClosed:              "closed",
	StateFailed:              "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transition moves machine from one state to another once expect is seen in the output.
// Empty expect means end of output.
type transition struct {
	from   State
	expect string
	reply  string
	to     State
}

// machine is the handshake state machine. It doesn't do any I/O,
// it consumes output chunks and tells the caller what to write back.
type machine struct {
	state  State
	script []transition
	// output since last matched prompt
	buf bytes.Buffer
}

func newMachine(cred *Credential) *machine {
	m := &machine{state: StateSpawned}
	if cred == nil {
		m.script = []transition{
			{from: StateSpawned, to: StateClosed},
		}
		return m
	}
	m.script = []transition{
		{from: StateSpawned, expect: KeyIDPrompt, reply: strconv.FormatUint(uint64(cred.KeyID()), 10), to: StateAwaitingKeyIDAck},
		{from: StateAwaitingKeyIDAck, expect: cred.PasswordPrompt(), reply: cred.Secret(), to: StateAwaitingPasswordAck},
		{from: StateAwaitingPasswordAck, to: StateClosed},
	}
	return m
}

// current returns transition expected in the current state
func (m *machine) current() (transition, bool) {
	for _, t := range m.script {
		if t.from == m.state {
			return t, true
		}
	}
	return transition{}, false
}

// feed adds output and returns replies to send, one per matched prompt
func (m *machine) feed(data []byte) []string {
	m.buf.Write(data)
	var replies []string
	for {
		t, ok := m.current()
		if !ok || t.expect == "" {
			return replies
		}
		idx := bytes.Index(m.buf.Bytes(), []byte(t.expect))
		if idx < 0 {
			return replies
		}
		rest := append([]byte(nil), m.buf.Bytes()[idx+len(t.expect):]...)
		m.buf.Reset()
		m.buf.Write(rest)
		log.Debugf("ntpq handshake: %s -> %s", m.state, t.to)
		m.state = t.to
		replies = append(replies, t.reply)
	}
}

// eof handles end of output. Returns error if we were still waiting for a prompt.
func (m *machine) eof() error {
	t, ok := m.current()
	if !ok || t.expect != "" {
		expect := t.expect
		m.fail()
		return fmt.Errorf("%w %q", ErrUnexpectedEOF, expect)
	}
	log.Debugf("ntpq handshake: %s -> %s", m.state, t.to)
	m.state = t.to
	return nil
}

func (m *machine) fail() {
	log.Debugf("ntpq handshake: %s -> %s", m.state, StateFailed)
	m.state = StateFailed
}

func (m *machine) output() string {
	return m.buf.String()
}

type readResult struct {
	data []byte
	err  error
}

// Session runs ntpq queries, one process per query
type Session struct {
	Spawner       Spawner
	Path          string
	PromptTimeout time.Duration
	EOFTimeout    time.Duration
}

// NewSession returns Session which runs ntpq binary found at path on a pseudo-terminal
func NewSession(path string, promptTimeout, eofTimeout time.Duration) *Session {
	if path == "" {
		path = DefaultPath
	}
	if promptTimeout <= 0 {
		promptTimeout = DefaultPromptTimeout
	}
	if eofTimeout <= 0 {
		eofTimeout = DefaultEOFTimeout
	}
	return &Session{
		Spawner:       PTYSpawner{},
		Path:          path,
		PromptTimeout: promptTimeout,
		EOFTimeout:    eofTimeout,
	}
}

func (s *Session) timeout(t transition) time.Duration {
	if t.expect == "" {
		return s.EOFTimeout
	}
	return s.PromptTimeout
}

// Run spawns `ntpq -c query host`, authenticates with cred if it's not nil,
// and returns output printed after the last prompt until the process exits.
func (s *Session) Run(ctx context.Context, host string, query Query, cred *Credential) (string, error) {
	argv := []string{s.Path, "-c", string(query), host}
	log.Debugf("running %v", argv)
	p, err := s.Spawner.Spawn(ctx, argv)
	if err != nil {
		return "", fmt.Errorf("%w %v: %w", ErrProcessSpawn, argv, err)
	}

	m := newMachine(cred)
	done := make(chan struct{})
	defer func() {
		close(done)
		if m.state != StateClosed {
			if err := p.Kill(); err != nil {
				log.Warningf("failed to kill %v: %v", argv, err)
			}
		}
		if err := p.Close(); err != nil {
			log.Debugf("closing %v: %v", argv, err)
		}
		if err := p.Wait(); err != nil {
			log.Debugf("%v exited: %v", argv, err)
		}
	}()

	results := make(chan readResult)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := p.Read(buf)
			r := readResult{err: err}
			if n > 0 {
				r.data = append([]byte(nil), buf[:n]...)
			}
			if n > 0 || err != nil {
				select {
				case results <- r:
				case <-done:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	t, _ := m.current()
	expired := time.After(s.timeout(t))
	for {
		select {
		case <-ctx.Done():
			st := m.state
			m.fail()
			return "", fmt.Errorf("ntpq %s on %s in state %s: %w", query, host, st, ctx.Err())
		case <-expired:
			st := m.state
			m.fail()
			if t.expect == "" {
				return "", fmt.Errorf("%w: no end of output from %s on %s after %v in state %s", ErrHandshakeTimeout, query, host, s.timeout(t), st)
			}
			return "", fmt.Errorf("%w: no %q prompt from %s on %s after %v in state %s", ErrHandshakeTimeout, t.expect, query, host, s.timeout(t), st)
		case r := <-results:
			prev := m.state
			for _, reply := range m.feed(r.data) {
				if _, err := io.WriteString(p, reply+"\n"); err != nil {
					m.fail()
					return "", fmt.Errorf("writing reply to ntpq %s on %s: %w", query, host, err)
				}
			}
			if r.err != nil {
				if !errors.Is(r.err, io.EOF) {
					m.fail()
					return "", fmt.Errorf("reading output of ntpq %s on %s: %w", query, host, r.err)
				}
				if err := m.eof(); err != nil {
					return "", fmt.Errorf("ntpq %s on %s: %w", query, host, err)
				}
				out := m.output()
				log.Debugf("ntpq %s on %s returned %d bytes", query, host, len(out))
				return out, nil
			}
			if m.state != prev {
				t, _ = m.current()
				expired = time.After(s.timeout(t))
			}
		}
	}
}
