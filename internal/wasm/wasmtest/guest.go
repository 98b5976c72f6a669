package wasmtest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var (
	guestOnce  sync.Once
	guestBytes []byte
	guestErr   error
)

// Guest returns the compiled wasip1 guest from cmd/questmind-wasm. A prebuilt
// testdata/questmind.wasm is used when present; otherwise the go tool builds
// it once per test binary. The test is skipped when neither works.
func Guest(t testing.TB) []byte {
	t.Helper()

	guestOnce.Do(func() {
		guestBytes, guestErr = loadGuest()
	})
	if guestErr != nil {
		t.Skipf("questmind guest unavailable: %v", guestErr)
	}
	return guestBytes
}

func loadGuest() ([]byte, error) {
	out, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		return nil, fmt.Errorf("go env GOMOD: %w", err)
	}
	gomod := strings.TrimSpace(string(out))
	if gomod == "" || gomod == os.DevNull {
		return nil, fmt.Errorf("not inside a module")
	}
	root := filepath.Dir(gomod)

	if data, err := os.ReadFile(filepath.Join(root, "testdata", "questmind.wasm")); err == nil {
		return data, nil
	}

	dir, err := os.MkdirTemp("", "questmind-guest")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "questmind.wasm")
	cmd := exec.Command("go", "build", "-buildmode=c-shared", "-o", target, "./cmd/questmind-wasm")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("go build: %w: %s", err, out)
	}

	return os.ReadFile(target)
}
