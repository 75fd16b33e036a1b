package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	mock "mercator-hq/switchboard/internal/providers"
)

const testConfig = `
dispatch:
  max_retries: 1
  retry_delay: 1ms
  request_timeout: 5s

providers:
  mock:
    type: custom
    base_url: %[1]q
    default_model: test-model
    keys: ["sk-test-aaaaaaaaaaaa", "sk-test-bbbbbbbbbbbb"]
  google:
    base_url: %[1]q
    default_model: gemini-2.0-flash
    keys: ["AIzaTestKeyAAAAAAAAAAAA"]

usage:
  backend: sqlite
  sqlite_path: %[2]q
`

// resetFlags clears every command flag variable between tests.
func resetFlags() {
	for _, p := range []any{&askFlags, &chatFlags, &compareFlags, &keysFlags, &usageFlags, &usageExportFlags, &usagePruneFlags} {
		reflect.ValueOf(p).Elem().SetZero()
	}
	cfgFile = ""
	verbose = false
	logLevel = ""
}

// setupTest starts a mock provider server and points --config at a file
// using it.
func setupTest(t *testing.T) *mock.MockServer {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	ms := mock.NewMockServer()
	t.Cleanup(ms.Close)

	dir := t.TempDir()
	cfgFile = filepath.Join(dir, "switchboard.yaml")
	content := fmt.Sprintf(testConfig, ms.URL(), filepath.Join(dir, "usage.db"))
	if err := os.WriteFile(cfgFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return ms
}

// runCommand calls run with a command whose streams are captured.
func runCommand(t *testing.T, run func(*cobra.Command, []string) error, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))

	err := run(cmd, args)
	return out.String(), errOut.String(), err
}
