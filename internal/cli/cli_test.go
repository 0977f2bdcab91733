package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"voidorchestra/internal/config"
	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/storage"
)

func newTestRoot(t *testing.T, handler http.Handler) *Root {
	t.Helper()

	cfg := &config.Config{
		Zooniverse: config.Zooniverse{
			Endpoint:   "http://example.invalid",
			ProjectID:  7,
			WorkflowID: 55,
		},
		ActiveLearning: config.ActiveLearning{
			NumPrioritySets:    4,
			SelectionWeighting: "0.7, 0.2, 0.05, 0.05",
		},
		Sync:   config.Sync{CommitEvery: 10},
		Paths:  config.Paths{Database: filepath.Join(t.TempDir(), "mirror.db")},
		Server: config.Server{Addr: ":0"},
	}

	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		cfg.Zooniverse.Endpoint = srv.URL
	}

	store, err := storage.New(cfg.Paths.Database)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := panoptes.New(cfg.Zooniverse.Endpoint, "", "", nil)
	return NewRoot(cfg, logger, store, client)
}

func execute(t *testing.T, root *Root, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(root)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShow(t *testing.T) {
	root := newTestRoot(t, nil)
	out, err := execute(t, root, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"Project ID:          7", "Workflow ID:         55", "0.7, 0.2, 0.05, 0.05"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	root := newTestRoot(t, nil)
	if _, err := execute(t, root, "config", "validate"); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	root.cfg.ActiveLearning.NumPrioritySets = 3
	if _, err := execute(t, root, "config", "validate"); err == nil {
		t.Fatal("expected error for weight count mismatch")
	}

	root.cfg.ActiveLearning.SelectionWeighting = "0.5, nope"
	if _, err := execute(t, root, "config", "validate"); err == nil {
		t.Fatal("expected error for malformed weighting")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newTestRoot(t, nil)
	out, err := execute(t, root, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, Version) {
		t.Errorf("expected version %s in output, got %q", Version, out)
	}
}

func TestInitCommand(t *testing.T) {
	root := newTestRoot(t, nil)
	out, err := execute(t, root, "init")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, root.cfg.Paths.Database) {
		t.Errorf("expected database path in output, got %q", out)
	}
}

func TestCheckWorkflow(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workflows/55" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 55, "display_name": "Sonification Review", "subject_set_ids": [101, 102],
            "configuration": {"subject_set_weights": {"101": 0.7, "102": 0.3}}}`)
	})
	root := newTestRoot(t, handler)

	out, err := execute(t, root, "check", "workflow")
	if err != nil {
		t.Fatalf("check workflow failed: %v", err)
	}
	for _, want := range []string{"Sonification Review", "Linked subject sets: 2", "Selection weighting:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckWorkflowUnreachable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	root := newTestRoot(t, handler)

	if _, err := execute(t, root, "check", "workflow"); err == nil {
		t.Fatal("expected error for missing workflow")
	}
}

func TestCommitEveryFlagFloor(t *testing.T) {
	root := newTestRoot(t, nil)
	if _, err := execute(t, root, "init", "--commit-every", "0"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if root.commitEvery != 1 {
		t.Errorf("expected commit-every floor of 1, got %d", root.commitEvery)
	}
}
