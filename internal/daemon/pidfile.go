// Package daemon tracks a running bug server through a PID file that also
// records the address it listens on.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when a live server owns the file.
var ErrAlreadyRunning = errors.New("server already running")

// Info is the content of a PID file.
type Info struct {
	PID  int
	Addr string
}

// PIDFile manages the PID file for `bugs serve`.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process and its listen address.
func (p *PIDFile) Write(addr string) error {
	return p.WriteInfo(Info{PID: os.Getpid(), Addr: addr})
}

// WriteInfo writes info as two lines: PID, then address.
func (p *PIDFile) WriteInfo(info Info) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID file directory: %w", err)
	}
	content := strconv.Itoa(info.PID) + "\n" + info.Addr + "\n"
	return os.WriteFile(p.Path, []byte(content), 0o644)
}

// Read parses the PID file. The address line is optional.
func (p *PIDFile) Read() (Info, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Info{}, err
	}
	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Info{}, fmt.Errorf("invalid PID file content: %w", err)
	}
	info := Info{PID: pid}
	if len(lines) == 2 {
		info.Addr = strings.TrimSpace(lines[1])
	}
	return info, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// Acquire writes the PID file for this process unless another live process
// already owns it. A stale file left by a dead process is replaced.
func (p *PIDFile) Acquire(addr string) error {
	if info, running := p.IsRunning(); running && info.PID != os.Getpid() {
		return fmt.Errorf("%w: pid %d on %s", ErrAlreadyRunning, info.PID, info.Addr)
	}
	return p.Write(addr)
}

// Release removes the PID file if it still belongs to this process.
func (p *PIDFile) Release() error {
	info, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.PID != os.Getpid() {
		return nil
	}
	return p.Remove()
}

// WaitExit polls until the recorded process is gone or timeout elapses.
// It reports whether the process exited.
func (p *PIDFile) WaitExit(timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, running := p.IsRunning(); !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
