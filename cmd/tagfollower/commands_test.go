package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/tagfollower/internal/store"
)

// seedStore creates a store with one finished and one running run.
func seedStore(t *testing.T) (*store.Store, string, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	finished := &store.Run{Source: "clip.mp4", Dictionary: "apriltag_36h11", Topic: "/tb3_1/cmd_vel"}
	if err := st.Runs().Create(finished); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i, zone := range []string{"LEFT", "LEFT", "CENTER"} {
		if err := st.Frames().Insert(&store.Frame{RunID: finished.ID, Seq: i + 1, Zone: zone}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := st.Runs().Finish(finished.ID, 3, "end_of_stream"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	running := &store.Run{Source: "0", Dictionary: "4x4_50", Topic: "/tb3_1/cmd_vel"}
	if err := st.Runs().Create(running); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	return st, finished.ID, running.ID
}

func TestListRuns(t *testing.T) {
	st, finishedID, runningID := seedStore(t)

	var out bytes.Buffer
	if err := listRuns(&out, st, 0); err != nil {
		t.Fatalf("listRuns() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header, rule and 2 runs:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "STOPPED") {
		t.Errorf("header = %q", lines[0])
	}

	text := out.String()
	for _, want := range []string{finishedID, runningID, "clip.mp4", "end_of_stream", "running"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestListRuns_Empty(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	var out bytes.Buffer
	if err := listRuns(&out, st, 20); err != nil {
		t.Fatalf("listRuns() error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "No runs recorded." {
		t.Errorf("output = %q", out.String())
	}
}

func TestShowRun(t *testing.T) {
	st, finishedID, _ := seedStore(t)

	var out bytes.Buffer
	if err := showRun(&out, st, finishedID); err != nil {
		t.Fatalf("showRun() error = %v", err)
	}

	text := out.String()
	for _, want := range []string{"Run " + finishedID, "frames:     3", "(end_of_stream)", "ZONE"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	// Zone rows are sorted by name
	center := strings.Index(text, "CENTER")
	left := strings.Index(text, "LEFT")
	if center < 0 || left < 0 || center > left {
		t.Errorf("zone rows missing or unsorted:\n%s", text)
	}
	if fields := strings.Fields(text[left:]); len(fields) < 2 || fields[1] != "2" {
		t.Errorf("LEFT count wrong:\n%s", text)
	}
}

func TestShowRun_NotFound(t *testing.T) {
	st, _, _ := seedStore(t)

	var out bytes.Buffer
	err := showRun(&out, st, "no-such-run")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("showRun() error = %v, want ErrNotFound", err)
	}
}

func TestRunsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	st, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	run := &store.Run{Source: "0", Dictionary: "apriltag_36h11", Topic: "/tb3_1/cmd_vel"}
	if err := st.Runs().Create(run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	st.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"runs", "--db", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		runsDBPath = ""
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), run.ID) {
		t.Errorf("output missing run %s:\n%s", run.ID, out.String())
	}
}

func TestPrintPorts(t *testing.T) {
	tests := []struct {
		name    string
		ports   []string
		err     error
		want    string
		wantErr bool
	}{
		{"ports found", []string{"/dev/ttyACM0", "/dev/ttyUSB0"}, nil, "/dev/ttyACM0\n/dev/ttyUSB0\n", false},
		{"no ports", nil, nil, "No serial ports found.\n", false},
		{"enumeration fails", nil, errors.New("permission denied"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := printPorts(&out, func() ([]string, error) { return tt.ports, tt.err })
			if (err != nil) != tt.wantErr {
				t.Fatalf("printPorts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("printPorts() error = %v, want wrapped %v", err, tt.err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestPrintDictionaries(t *testing.T) {
	var out bytes.Buffer
	printDictionaries(&out)

	names := strings.Fields(out.String())
	found := false
	for _, n := range names {
		if n == "apriltag_36h11" {
			found = true
		}
	}
	if !found {
		t.Errorf("dictionaries %v missing apriltag_36h11", names)
	}
}
