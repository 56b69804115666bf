package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultBridgeGrace is how long Close waits for the helper to exit after
// its stdin is closed before killing it.
const DefaultBridgeGrace = 2 * time.Second

// BridgePublisher feeds commands to a long-lived helper process, such as a
// ROS 2 node, as one JSON object per line on its stdin. The process is
// started lazily on first publish and restarted after a write failure.
type BridgePublisher struct {
	command []string
	stderr  io.Writer
	grace   time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	enc     *json.Encoder
	started bool
	closed  bool
}

// NewBridgePublisher creates a publisher for command (program and arguments).
func NewBridgePublisher(command []string) (*BridgePublisher, error) {
	if len(command) == 0 {
		return nil, errors.New("bridge command is empty")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("bridge %s: %w", command[0], err)
	}

	return &BridgePublisher{
		command: command,
		stderr:  os.Stderr,
		grace:   DefaultBridgeGrace,
	}, nil
}

func (b *BridgePublisher) Publish(msg Twist) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := b.ensureStarted(); err != nil {
		return err
	}

	if err := b.enc.Encode(msg); err != nil {
		b.shutdown()
		return fmt.Errorf("write bridge: %w", err)
	}
	return nil
}

// Close shuts down the helper process.
func (b *BridgePublisher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return b.shutdown()
}

func (b *BridgePublisher) ensureStarted() error {
	if b.started {
		return nil
	}

	b.cmd = exec.Command(b.command[0], b.command[1:]...)

	stdin, err := b.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	// Surface the helper's diagnostics
	b.cmd.Stdout = b.stderr
	b.cmd.Stderr = b.stderr
	// Children that inherit the output pipes must not hold up Wait
	b.cmd.WaitDelay = b.grace

	if err := b.cmd.Start(); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	b.stdin = stdin
	b.enc = json.NewEncoder(stdin)
	b.started = true

	return nil
}

func (b *BridgePublisher) shutdown() error {
	if !b.started {
		return nil
	}

	if b.stdin != nil {
		b.stdin.Close()
	}

	// A helper that ignores EOF is killed after the grace period
	done := make(chan error, 1)
	go func() { done <- b.cmd.Wait() }()

	timer := time.NewTimer(b.grace)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		b.cmd.Process.Kill()
		if werr := <-done; werr != nil {
			err = fmt.Errorf("bridge killed after %s: %w", b.grace, werr)
		}
	}

	b.started = false
	b.cmd = nil
	b.stdin = nil
	b.enc = nil

	return err
}
