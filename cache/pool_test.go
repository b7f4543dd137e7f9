package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsprovision/vsprovision/manifest"
	"github.com/vsprovision/vsprovision/ui"
)

func TestFetchAllDownloadsEveryPayload(t *testing.T) {
	bodyA := []byte("payload a")
	bodyB := []byte("payload b")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			w.Write(bodyA)
		case "/b":
			w.Write(bodyB)
		}
	}))
	defer srv.Close()

	sum := func(b []byte) string {
		s := sha256.Sum256(b)
		return hex.EncodeToString(s[:])
	}

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	d := NewDownloader(c, nil)
	pool := NewPool(d)

	variants := []*manifest.Variant{
		{ID: "A", Type: manifest.TypeVsix, Payloads: []manifest.Payload{
			{FileName: "a.bin", URL: srv.URL + "/a", SHA256: sum(bodyA)},
		}},
		{ID: "B", Type: manifest.TypeMsi, Payloads: []manifest.Payload{
			{FileName: "b.bin", URL: srv.URL + "/b", SHA256: sum(bodyB)},
		}},
	}

	p, _ := ui.NewForTesting()
	total, err := FetchAll(p.Task("download"), pool, variants)
	require.NoError(t, err)
	assert.Equal(t, int64(len(bodyA)+len(bodyB)), total)
}

func TestFlagStop(t *testing.T) {
	var f Flag
	assert.False(t, f.Stopped())
	f.Stop()
	assert.True(t, f.Stopped())
}
