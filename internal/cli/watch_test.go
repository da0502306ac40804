package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardity-org/cardity-core/internal/carc"
)

func TestCompileToFile(t *testing.T) {
	src := writeFile(t, t.TempDir(), "counter.car", mustRead(t, counterPath))
	outDir := t.TempDir()

	out, err := compileToFile(src, outDir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "counter.json"), out)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(mustRead(t, out)), &doc))
	assert.Equal(t, "Counter", doc["protocol"])

	out, err = compileToFile(src, "", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(src), "counter.carc"), out)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	_, err = carc.Decode(data)
	require.NoError(t, err)
}

func TestCompileToFile_Error(t *testing.T) {
	src := writeFile(t, t.TempDir(), "bad.car", "protocol {")
	_, err := compileToFile(src, "", false)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(src), "bad.json"))
}

func TestWatch_RecompilesOnWrite(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "build")
	writeFile(t, dir, "counter.car", mustRead(t, counterPath))

	compiled := make(chan string, 16)
	opts := &WatchOptions{
		RootOptions: &RootOptions{Format: "text"},
		OnCompile: func(src string, err error) {
			if err == nil {
				compiled <- filepath.Base(src)
			} else {
				compiled <- "error:" + filepath.Base(src)
			}
		},
	}
	cmd := newWatchCommand(opts)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{dir, "--out", outDir})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.After(10 * time.Second)
		for {
			select {
			case got := <-compiled:
				if got == want {
					return
				}
			case <-deadline:
				t.Fatalf("timeout waiting for %s", want)
			}
		}
	}

	// Initial build.
	waitFor("counter.car")
	require.FileExists(t, filepath.Join(outDir, "counter.json"))

	// A new source is picked up.
	writeFile(t, dir, "registry.car", registrySource)
	waitFor("registry.car")

	// A broken edit is reported and watching continues.
	writeFile(t, dir, "registry.car", "protocol {")
	waitFor("error:registry.car")

	// Non-source files are ignored.
	writeFile(t, dir, "notes.txt", "hello")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for watch to stop")
	}

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(mustRead(t, filepath.Join(outDir, "registry.json"))), &doc))
	assert.Equal(t, "Registry", doc["protocol"])
	assert.Contains(t, buf.String(), "Watching "+dir)
}

func TestWatch_NotADirectory(t *testing.T) {
	_, _, err := execute(NewWatchCommand(&RootOptions{Format: "text"}), counterPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
