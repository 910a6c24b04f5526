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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Process is a running diagnostic tool. Reads return everything it prints, writes go to its input.
type Process interface {
	io.ReadWriter
	// Kill terminates the process if it is still running
	Kill() error
	// Close releases the process streams
	Close() error
	// Wait reaps the process, it's safe to call it more than once
	Wait() error
}

// Spawner starts processes
type Spawner interface {
	Spawn(ctx context.Context, argv []string) (Process, error)
}

// PTYSpawner runs processes attached to a pseudo-terminal.
// ntpq reads passwords with getpass(3), which wants a terminal rather than a pipe.
type PTYSpawner struct{}

// Spawn starts argv[0] with the rest of argv as arguments.
// Process is killed when ctx is done.
func (PTYSpawner) Spawn(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command line")
	}
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("opening pty: %w", err)
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// numbers and error messages are parsed, don't let locale change them
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	// own session with the pty as controlling terminal, getpass opens /dev/tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}
	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, err
	}
	p := &ptyProcess{
		cmd:    cmd,
		pty:    ptmx,
		tty:    tty,
		exited: make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

// ptyProcess keeps its own copy of the slave side open until the process is reaped.
// Without it linux may report EIO on the master before everything the process
// printed has been read.
type ptyProcess struct {
	cmd *exec.Cmd
	pty *os.File
	tty *os.File

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

func (p *ptyProcess) reap() {
	p.waitErr = p.cmd.Wait()
	// everything the process wrote is in the master buffer now,
	// once it's drained reads get EIO
	_ = p.tty.Close()
	close(p.exited)
}

func (p *ptyProcess) Read(b []byte) (int, error) {
	for {
		n, err := p.pty.Read(b)
		if !errors.Is(err, unix.EIO) {
			return n, err
		}
		select {
		case <-p.exited:
			// no slave fd left and master is drained
			return n, io.EOF
		default:
		}
		if n > 0 {
			return n, nil
		}
		// slave was hung up under us, output is final once the process is reaped
		<-p.exited
	}
}

func (p *ptyProcess) Write(b []byte) (int, error) {
	return p.pty.Write(b)
}

// Kill kills the whole process group, so children of the process don't keep the pty open
func (p *ptyProcess) Kill() error {
	select {
	case <-p.exited:
		return nil
	default:
	}
	err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func (p *ptyProcess) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.pty.Close()
	})
	return p.closeErr
}

func (p *ptyProcess) Wait() error {
	<-p.exited
	return p.waitErr
}
