package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, deviceType string) string {
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
device:
  type: %s
  path: %s
  size: 16384
  erase_size: 4096
fcb:
  name: fcbtool-test
log_level: error
`, deviceType, filepath.Join(dir, "flash.img"))
	path := filepath.Join(dir, "fcb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run(append([]string{"fcbtool"}, args...)))
	return out.String()
}

func TestFcbtool(t *testing.T) {
	for _, typ := range []string{"file", "bolt"} {
		t.Run(typ, func(t *testing.T) {
			path := writeConfig(t, typ)

			out := run(t, "-c", path, "append", "alpha", "beta", "gamma")
			assert.Equal(t, 3, strings.Count(out, "sector=0"))

			out = run(t, "-c", path, "walk")
			assert.Contains(t, out, `"alpha"`)
			assert.Contains(t, out, `"gamma"`)
			assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "gamma"))

			out = run(t, "-c", path, "last", "2")
			assert.NotContains(t, out, "alpha")
			assert.Contains(t, out, "beta")

			out = run(t, "-c", path, "prev", "--count", "1")
			assert.Contains(t, out, "gamma")
			assert.NotContains(t, out, "beta")

			out = run(t, "-c", path, "info")
			assert.Contains(t, out, "sectors=4")
			assert.Contains(t, out, "entries=3")

			run(t, "-c", path, "scratch")
			out = run(t, "-c", path, "info")
			assert.Contains(t, out, "active=1")

			run(t, "-c", path, "rotate")
			out = run(t, "-c", path, "walk")
			assert.Empty(t, out)

			run(t, "-c", path, "append", "delta")
			run(t, "-c", path, "format")
			out = run(t, "-c", path, "walk")
			assert.Empty(t, out)
		})
	}
}

func TestFcbtool_Errors(t *testing.T) {
	path := writeConfig(t, "file")

	fail := func(args ...string) error {
		app := newApp()
		app.Writer = &bytes.Buffer{}
		return app.Run(append([]string{"fcbtool"}, args...))
	}
	assert.Error(t, fail("-c", path, "append"))
	assert.Error(t, fail("-c", path, "last", "many"))
	assert.Error(t, fail("-c", filepath.Join(t.TempDir(), "missing.yaml"), "info"))
}
