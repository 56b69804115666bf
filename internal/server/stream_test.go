package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeFrames struct {
	mu   sync.Mutex
	data []byte
	seq  uint64
}

func (f *fakeFrames) set(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	f.seq++
}

func (f *fakeFrames) Latest() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.seq
}

func TestStreamHandler_ServesLatestFrame(t *testing.T) {
	frames := &fakeFrames{}
	frames.set([]byte{0xFF, 0xD8, 0x01, 0x02})

	ts := httptest.NewServer(New(Config{Frames: frames, StreamFPS: 50}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	header := make([]string, 0, 3)
	for len(header) < 3 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read part header: %v", err)
		}
		header = append(header, strings.TrimSpace(line))
	}

	if header[0] != "--frame" || header[1] != "Content-Type: image/jpeg" || header[2] != "Content-Length: 4" {
		t.Errorf("part header = %q", header)
	}

	reader.ReadString('\n') // blank line
	body := make([]byte, 4)
	if _, err := io.ReadFull(reader, body); err != nil {
		t.Fatalf("read part body: %v", err)
	}
	if !bytes.Equal(body, []byte{0xFF, 0xD8, 0x01, 0x02}) {
		t.Errorf("part body = %v", body)
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	h := NewStreamHandler(&fakeFrames{}, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if h.interval != time.Second/DefaultStreamFPS {
		t.Errorf("interval = %v, want default", h.interval)
	}
}
