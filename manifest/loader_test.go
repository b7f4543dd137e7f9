package manifest

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoadsLocalManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "installer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"info": {"productDisplayVersion": "17.9.1"},
		"packages": [{"id": "Foo", "type": "Component"}]
	}`), 0644))

	l := NewLoader()
	m, err := l.Load(path, 17, ChannelRelease)
	require.NoError(t, err)
	assert.Equal(t, "17.9.1", m.Info.ProductDisplayVersion)
	require.Len(t, m.Packages, 1)
	assert.Equal(t, "Foo", m.Packages[0].ID)
}

func TestManifestURLFromChannelJSON(t *testing.T) {
	data := []byte(`{
		"channelItems": [
			{"type": "Info"},
			{"type": "Manifest", "payloads": [{"url": "https://example.test/manifest.json"}]}
		]
	}`)
	url, err := manifestURLFromChannelJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/manifest.json", url)
}

func TestManifestURLFromChannelJSONNotFound(t *testing.T) {
	_, err := manifestURLFromChannelJSON([]byte(`{"channelItems": [{"type": "Info"}]}`))
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestLoaderFetchesOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"info": {"productDisplayVersion": "17.9"}, "packages": []}`))
	}))
	defer srv.Close()

	l := NewLoader()
	m, err := l.Load(srv.URL+"/manifest.json", 17, ChannelRelease)
	require.NoError(t, err)
	assert.Equal(t, "17.9", m.Info.ProductDisplayVersion)
}

func TestSaveManifestRefusesDifferingOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v.manifest")
	require.NoError(t, SaveManifest(path, []byte("one")))
	require.NoError(t, SaveManifest(path, []byte("one"))) // identical: no error
	err := SaveManifest(path, []byte("two"))
	assert.Error(t, err)
}
