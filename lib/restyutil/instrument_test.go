package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mutex    sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.messages[id] = contents
}

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	InstrumentClient(client, output)

	_, err := client.R().
		SetFormData(map[string]string{"username": "542207000000"}).
		Post(server.URL + "/login/authentication")
	require.NoError(t, err)
	_, err = client.R().Get(server.URL + "/")
	require.NoError(t, err)

	require.Len(t, output.messages, 2)
	post := output.messages["0001_POST"]
	require.Contains(t, post, "POST "+server.URL+"/login/authentication")
	require.Contains(t, post, "username=542207000000")
	require.Contains(t, post, "X-Test: 1")
	require.True(t, strings.HasSuffix(post, `{"success":true}`))

	get := output.messages["0002_GET"]
	require.Contains(t, get, "GET "+server.URL+"/")
}

func TestInstrumentClientNilOutput(t *testing.T) {
	client := resty.New()
	InstrumentClient(client, nil)
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("old"), 0600))

	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	output.Write("0001_GET", "contents")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "0001_GET.txt", entries[0].Name())
}
