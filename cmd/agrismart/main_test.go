package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/agrismart/assistant/internal/agent"
	"github.com/agrismart/assistant/internal/offline"
	"github.com/agrismart/assistant/internal/tools"
)

// isolate points config discovery at an empty directory and clears the
// API key so nothing reaches a real backend.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("GEMINI_API_KEY", "")
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, args)
	return stdout.String(), stderr.String(), err
}

func TestRun_Version(t *testing.T) {
	out, _, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "AgriSmart dev") || !strings.Contains(out, "go_version:") {
		t.Errorf("version output = %q", out)
	}

	out, _, err = runCmd(t, "-o", "json", "version")
	if err != nil {
		t.Fatalf("version json: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version json is invalid: %v\n%s", err, out)
	}
	if info["version"] != "dev" {
		t.Errorf("version = %q", info["version"])
	}
}

func TestRun_BadInvocations(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad output format", []string{"--output", "yaml", "version"}, "unknown output format"},
		{"unknown command", []string{"plough"}, "unknown command"},
		{"ask without question", []string{"ask"}, "usage"},
		{"missing explicit config", []string{"--config", "/nonexistent/agrismart.yaml", "items"}, "config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCmd(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestRun_Items(t *testing.T) {
	isolate(t)

	out, _, err := runCmd(t, "items")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if !strings.Contains(out, "Drone") || !strings.Contains(out, "RENTAL") {
		t.Errorf("items output = %q", out)
	}

	out, _, err = runCmd(t, "-o", "json", "items")
	if err != nil {
		t.Fatalf("items json: %v", err)
	}
	var items []tools.ItemSummary
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("items json is invalid: %v", err)
	}
	if len(items) != 9 {
		t.Errorf("len(items) = %d, want 9", len(items))
	}
}

func TestRun_ItemsFromCatalogFile(t *testing.T) {
	dir := isolate(t)
	catalog := writeFile(t, dir, "catalog.yaml", `items:
  - id: 1
    name: Rotavator
    category: Tillage
    price: "₹1,10,000"
    rental: "₹900/hr"
`)
	writeFile(t, dir, "config.yaml", "inventory:\n  catalog_file: "+catalog+"\n")

	out, _, err := runCmd(t, "-o", "json", "items")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	var items []tools.ItemSummary
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Name != "Rotavator" {
		t.Errorf("items = %+v", items)
	}
}

func TestRun_AskOffline(t *testing.T) {
	isolate(t)

	out, stderr, err := runCmd(t, "ask", "Will", "it", "rain", "tomorrow?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	want := offline.Respond("Will it rain tomorrow?", offline.ReasonUnreachable)
	if strings.TrimSpace(out) != want {
		t.Errorf("ask output = %q, want %q", out, want)
	}
	if !strings.Contains(stderr, "no Gemini API key configured") {
		t.Errorf("expected offline warning on stderr, got %q", stderr)
	}
}

// fakeGemini answers generateContent with scripted bodies in order.
type fakeGemini struct {
	mu      sync.Mutex
	replies []string
	n       int
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	reply := f.replies[min(f.n, len(f.replies)-1)]
	f.n++
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func TestRun_AskWithModel(t *testing.T) {
	dir := isolate(t)
	fake := &fakeGemini{replies: []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"book_item","args":{"itemId":2,"duration":5}}}]},"finishReason":"STOP"}]}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Your Drone is booked."}]},"finishReason":"STOP"}]}`,
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	writeFile(t, dir, "config.yaml", `gemini:
  api_key: test-key
  base_url: `+srv.URL+`
log_level: warn
`)

	out, _, err := runCmd(t, "-o", "json", "ask", "Book the drone for 5 hours")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	var reply agent.Reply
	if err := json.Unmarshal([]byte(out), &reply); err != nil {
		t.Fatalf("ask json is invalid: %v\n%s", err, out)
	}
	if reply.Text != "Your Drone is booked." || reply.Outcome.Tier != agent.TierPrimary {
		t.Errorf("reply = %+v", reply)
	}
	if len(reply.Trace) != 1 || reply.Trace[0].Name != tools.BookItemTool || reply.Trace[0].Failed() {
		t.Errorf("trace = %+v", reply.Trace)
	}
	if len(reply.Bookings) != 1 || !strings.HasPrefix(reply.Bookings[0].BookingID, "RNT-") {
		t.Errorf("bookings = %+v", reply.Bookings)
	}
}
