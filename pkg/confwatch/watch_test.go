package confwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// loadLine returns the file's trimmed contents, rejecting "bad".
func loadLine(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(data))
	if s == "bad" {
		return "", errors.New("rejected")
	}
	return s, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "one")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, loadLine, func(s string) { got <- s })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "bad")
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "two")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-got:
			if s == "bad" {
				t.Fatal("rejected config passed to onChange")
			}
			if s != "two" {
				continue
			}
			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("Watch() after cancel = %v, want nil", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Watch did not return after cancel")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	err := Watch(context.Background(), path, loadLine, func(string) {})
	if err == nil {
		t.Fatal("expected error watching a missing file")
	}
}

func TestWatch_CancelledBeforeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	writeFile(t, path, "one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Watch(ctx, path, loadLine, func(string) { t.Error("unexpected reload") }); err != nil {
		t.Fatalf("Watch() = %v, want nil", err)
	}
}
