//go:build basic || database

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

var (
	// sharedScorefusePath holds the path to a shared scorefuse binary built once for all tests.
	sharedScorefusePath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	// Run all tests
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getScorefuseBinary returns the path to the scorefuse binary, building it once if needed.
func getScorefuseBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		// Create a temp directory for the binary
		var err error
		tempDir, err = os.MkdirTemp("", "scorefuse-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		scorefusePath := filepath.Join(tempDir, "scorefuse")
		buildCmd := exec.Command("go", "build", "-o", scorefusePath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		err = buildCmd.Run()
		if err != nil {
			panic(fmt.Sprintf("failed to build scorefuse: %v", err))
		}

		sharedScorefusePath = scorefusePath
	})

	return sharedScorefusePath
}

// writeSampleDataset writes a small CSV dataset with a binary label column.
func writeSampleDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "clicks,views,label\n" +
		"0.9,0.1,1\n" +
		"0.8,0.3,1\n" +
		"0.6,0.5,1\n" +
		"0.4,0.9,0\n" +
		"0.2,0.7,0\n" +
		"0.1,0.8,0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write sample dataset: %v", err)
	}
	return path
}

// runScorefuseCommand runs the shared binary with the given arguments.
func runScorefuseCommand(t *testing.T, args ...string) error {
	t.Helper()
	scorefusePath := getScorefuseBinary()
	cmd := exec.Command(scorefusePath, args...)
	cmd.Dir = "../" // Run from project root
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("Command failed: %s\nOutput: %s", cmd.String(), string(output))
		return err
	}
	return nil
}
