package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/tagfollower/internal/config"
	"github.com/ayusman/tagfollower/internal/policy"
	"github.com/spf13/cobra"
)

// newRunCommand returns a fresh run command so tests do not share flag state.
func newRunCommand(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd, opts)
	return cmd
}

func TestLoadRunConfig_Defaults(t *testing.T) {
	var opts runOptions
	cmd := newRunCommand(&opts)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := loadRunConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadRunConfig() error = %v", err)
	}

	want := config.Default()
	if cfg.Camera != want.Camera || cfg.Publish.Topic != want.Publish.Topic {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if cfg.Store.Path != "" || cfg.Server.Addr != "" {
		t.Errorf("optional outputs enabled by default: store %q, server %q", cfg.Store.Path, cfg.Server.Addr)
	}
}

func TestLoadRunConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "follower.json")
	data := `{"camera": {"source": "clip.mp4"}, "publish": {"topic": "/from_file", "udp_addr": "127.0.0.1:9000"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var opts runOptions
	cmd := newRunCommand(&opts)
	err := cmd.ParseFlags([]string{
		"--config", path,
		"--topic", "/from_flag",
		"--select", "widest",
		"--no-window",
		"--db", filepath.Join(t.TempDir(), "runs.db"),
	})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := loadRunConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadRunConfig() error = %v", err)
	}

	if cfg.Camera.Source != "clip.mp4" {
		t.Errorf("Source = %q, want value from file", cfg.Camera.Source)
	}
	if cfg.Publish.Topic != "/from_flag" {
		t.Errorf("Topic = %q, want flag value", cfg.Publish.Topic)
	}
	if cfg.Publish.UDPAddr != "127.0.0.1:9000" {
		t.Errorf("UDPAddr = %q, want value from file", cfg.Publish.UDPAddr)
	}
	if cfg.Policy.Selection != policy.SelectWidest {
		t.Errorf("Selection = %v, want widest", cfg.Policy.Selection)
	}
	if cfg.Render.Window {
		t.Error("Window should be disabled by --no-window")
	}
	if cfg.Store.Path == "" {
		t.Error("Store.Path should be set by --db")
	}
}

func TestLoadRunConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad selection", []string{"--select", "nearest"}},
		{"empty topic", []string{"--topic", ""}},
		{"serial without baud", []string{"--serial", "/dev/ttyUSB0", "--baud", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts runOptions
			cmd := newRunCommand(&opts)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}

			_, err := loadRunConfig(cmd, opts)
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("loadRunConfig() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadRunConfig_MissingFile(t *testing.T) {
	var opts runOptions
	cmd := newRunCommand(&opts)
	if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.json")}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if _, err := loadRunConfig(cmd, opts); err == nil {
		t.Error("expected error for a missing config file")
	}
}
