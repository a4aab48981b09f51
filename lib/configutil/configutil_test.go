package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Delay    int    `json:"delay_ms"`
	Nested   struct {
		Endpoint string `json:"endpoint"`
	} `json:"nested"`
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		username: "542207000000",
		delay_ms: 500,
		nested: { endpoint: "https://example.com" },
	}`)
	write(t, filepath.Join(dir, "config.local.json5"), `{ password: "secret", delay_ms: 1000 }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "542207000000", config.Username)
	require.Equal(t, "secret", config.Password)
	require.Equal(t, 1000, config.Delay)
	require.Equal(t, "https://example.com", config.Nested.Endpoint)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "config.local.json5"), `{ username: "local" }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "local", config.Username)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))
	write(t, filepath.Join(root, "recursive_test.json5"), `{ username: "root" }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	config, err := ReadRecursively[testConfig]("recursive_test.json5")
	require.NoError(t, err)
	require.Equal(t, "root", config.Username)
}

func TestWithDefaults(t *testing.T) {
	var defaults testConfig
	defaults.Delay = 500
	defaults.Nested.Endpoint = "https://default"

	var config testConfig
	config.Delay = 10

	merged, err := WithDefaults(config, defaults)
	require.NoError(t, err)
	require.Equal(t, 10, merged.Delay)
	require.Equal(t, "https://default", merged.Nested.Endpoint)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CONFIGUTIL_TEST_VALUE", "from-env")
	require.Equal(t, "from-env", EnvOverride("from-file", "CONFIGUTIL_TEST_VALUE"))

	t.Setenv("CONFIGUTIL_TEST_VALUE", "")
	require.Equal(t, "from-file", EnvOverride("from-file", "CONFIGUTIL_TEST_VALUE"))
}
