package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseArgs(t *testing.T) {
	o, err := parseArgs([]string{"-u", "ops", "--password=pw", "ib.example.com", "add", "app.example.com", "10.0.0.1", "web server"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.appliance != "ib.example.com" || o.action != "add" || o.hostname != "app.example.com" {
		t.Errorf("unexpected positional args: %+v", o)
	}
	if o.address.String() != "10.0.0.1" {
		t.Errorf("unexpected address %s", o.address)
	}
	if o.comment != "web server" {
		t.Errorf("unexpected comment %q", o.comment)
	}
	if u, _ := o.flags.GetString("username"); u != "ops" {
		t.Errorf("expected username 'ops', got %q", u)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too few", []string{"ib.example.com", "add", "app.example.com"}},
		{"too many", []string{"ib.example.com", "add", "app.example.com", "10.0.0.1", "c", "extra"}},
		{"bad action", []string{"ib.example.com", "update", "app.example.com", "10.0.0.1"}},
		{"bad address", []string{"ib.example.com", "add", "app.example.com", "10.0.0.300"}},
		{"unknown flag", []string{"--nope", "ib.example.com", "add", "app.example.com", "10.0.0.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseArgs(tt.args, io.Discard); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func TestApplyFlags_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host-tool.yaml")
	content := "username: from-file\npassword: file-pass\ntimeout: 5s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	o, err := parseArgs([]string{"--config", path, "-p", "flag-pass", "ib.example.com", "remove", "app.example.com", "10.0.0.1"}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := loadConfig(o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "ib.example.com" {
		t.Errorf("expected host from positional arg, got %q", cfg.Host)
	}
	if cfg.Username != "from-file" {
		t.Errorf("expected username from file, got %q", cfg.Username)
	}
	if cfg.Password != "flag-pass" {
		t.Errorf("expected password from flag, got %q", cfg.Password)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected timeout from file, got %s", cfg.Timeout)
	}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	if code := run(context.Background(), []string{"--version"}, &stdout, io.Discard); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "host-tool ") {
		t.Errorf("unexpected version output %q", stdout.String())
	}
}

func TestRun_UsageError(t *testing.T) {
	if code := run(context.Background(), []string{"ib.example.com"}, io.Discard, io.Discard); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

// emptyWAPI finds nothing and accepts every create.
func emptyWAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			io.WriteString(w, "[]")
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/record:host"):
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `"record:host/new:app.example.com/default"`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/record:ptr"):
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `"record:ptr/new:1.0.0.10.in-addr.arpa/default"`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_AddAndRemove(t *testing.T) {
	t.Setenv("HOST_TOOL_CONFIG", "")
	srv := emptyWAPI(t)

	var stdout bytes.Buffer
	code := run(context.Background(), []string{srv.URL, "add", "app.example.com", "10.0.0.1"}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("add: expected exit 0, got %d", code)
	}
	if stdout.String() != "Host added\n" {
		t.Errorf("add: unexpected output %q", stdout.String())
	}

	stdout.Reset()
	code = run(context.Background(), []string{srv.URL, "remove", "app.example.com", "10.0.0.1"}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("remove: expected exit 0, got %d", code)
	}
	if stdout.String() != "Host not found\n" {
		t.Errorf("remove: unexpected output %q", stdout.String())
	}
}

func TestRun_FailureExitsOne(t *testing.T) {
	t.Setenv("HOST_TOOL_CONFIG", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"Error":"denied","code":"Client.Ibap.Auth","text":"denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{srv.URL, "add", "app.example.com", "10.0.0.1"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no stdout output, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "401") {
		t.Errorf("expected status in error output, got %q", stderr.String())
	}
}

func TestRun_AddWithoutCreateIsNotReportedAsAdded(t *testing.T) {
	t.Setenv("HOST_TOOL_CONFIG", "")
	var deletes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/record:host"):
			io.WriteString(w, `[{"_ref":"record:host/h1:app.example.com/default","name":"app.example.com","ipv4addrs":[{"_ref":"record:host_ipv4addr/a1:10.0.0.1/app.example.com/default","ipv4addr":"10.0.0.1","host":"app.example.com"}]}]`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/record:host_ipv4addr"):
			io.WriteString(w, `[{"_ref":"record:host_ipv4addr/a1:10.0.0.1/app.example.com/default","ipv4addr":"10.0.0.1","host":"app.example.com"}]`)
		case r.Method == http.MethodGet && q.Get("ptrdname") != "":
			io.WriteString(w, `[{"_ref":"record:ptr/old:9.0.0.10.in-addr.arpa/default","ptrdname":"app.example.com","ipv4addr":"10.0.0.9"}]`)
		case r.Method == http.MethodGet:
			io.WriteString(w, `[{"_ref":"record:ptr/p1:1.0.0.10.in-addr.arpa/default","ptrdname":"app.example.com","ipv4addr":"10.0.0.1"}]`)
		case r.Method == http.MethodDelete:
			deletes++
			io.WriteString(w, `"record:ptr/old:9.0.0.10.in-addr.arpa/default"`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := run(context.Background(), []string{srv.URL, "add", "app.example.com", "10.0.0.1"}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if deletes != 1 {
		t.Errorf("expected the stale ptr to be deleted, got %d deletes", deletes)
	}
	if stdout.String() != "Host unchanged\n" {
		t.Errorf("unexpected output %q", stdout.String())
	}
}
