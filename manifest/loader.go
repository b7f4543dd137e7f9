package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vsprovision/vsprovision/errors"
)

// Channel is one of the channel selectors spec.md §4.1 accepts.
type Channel string

const (
	ChannelRelease  Channel = "release"
	ChannelPre      Channel = "pre"
	ChannelInsiders Channel = "insiders"
)

// Manifest is the parsed installer manifest (spec.md §4.1): a product
// header plus the flat package list the Index is built from.
type Manifest struct {
	Info struct {
		ProductDisplayVersion string `json:"productDisplayVersion"`
	} `json:"info"`
	Packages []*Variant `json:"packages"`
}

// Loader fetches the channel manifest and follows it to the installer
// manifest, per spec.md §4.1.
type Loader struct {
	HTTPClient *http.Client
}

// NewLoader returns a Loader with a conservative default timeout (spec.md
// §5: "global socket timeout of 15s bounds hung connects").
func NewLoader() *Loader {
	return &Loader{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

// ChannelURL builds the aka.ms channel URL for a major version and channel.
func ChannelURL(major int, channel Channel) string {
	return fmt.Sprintf("https://aka.ms/vs/%d/%s/channel", major, channel)
}

// ErrManifestNotFound is returned when the channel JSON has no
// type=="Manifest" channel item.
var ErrManifestNotFound = errors.New("no Manifest channel item found")

// Load resolves and parses the installer manifest. If manifestRef is
// empty, it fetches the channel JSON for (major, channel) and follows its
// Manifest channel item; otherwise manifestRef is treated as a URL or
// local path and fetched/read directly.
func (l *Loader) Load(manifestRef string, major int, channel Channel) (*Manifest, error) {
	data, err := l.FetchRaw(manifestRef, major, channel)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parsing installer manifest")
	}
	return &m, nil
}

// FetchRaw resolves and fetches the installer manifest's raw bytes,
// without parsing: used by --save-manifest, which writes the manifest
// byte-for-byte (spec.md §4.1).
func (l *Loader) FetchRaw(manifestRef string, major int, channel Channel) ([]byte, error) {
	if manifestRef == "" {
		ref, err := l.resolveManifestURL(major, channel)
		if err != nil {
			return nil, err
		}
		manifestRef = ref
	}
	return l.fetch(manifestRef)
}

// resolveManifestURL fetches the top-level channel JSON and extracts the
// first channelItems[*] entry with type=="Manifest", using gjson so we
// don't need a full struct for the channel document's many other fields.
func (l *Loader) resolveManifestURL(major int, channel Channel) (string, error) {
	data, err := l.fetch(ChannelURL(major, channel))
	if err != nil {
		return "", err
	}
	return manifestURLFromChannelJSON(data)
}

// manifestURLFromChannelJSON finds the first channelItems[*] entry with
// type=="Manifest" and returns its payloads[0].url, using gjson so the
// channel document's many other fields don't need a full struct.
func manifestURLFromChannelJSON(data []byte) (string, error) {
	items := gjson.GetBytes(data, "channelItems")
	var found string
	items.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "Manifest" {
			return true
		}
		found = item.Get("payloads.0.url").String()
		return false
	})
	if found == "" {
		return "", errors.WithStack(ErrManifestNotFound)
	}
	return found, nil
}

func (l *Loader) fetch(ref string) ([]byte, error) {
	if isLocalPath(ref) {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, errors.Wrapf(err, "reading manifest %s", ref)
		}
		return data, nil
	}
	resp, err := l.HTTPClient.Get(ref)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", ref)
	}
	defer resp.Body.Close() // nolint: errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %s: unexpected status %s", ref, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response from %s", ref)
	}
	return data, nil
}

func isLocalPath(ref string) bool {
	return !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://")
}

// SaveManifest implements --save-manifest: write "data" to
// "<productDisplayVersion>.manifest" unless the file already exists with
// different content, per spec.md §4.1's byte-for-byte-equality rule.
func SaveManifest(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err == nil {
		if bytes.Equal(existing, data) {
			return nil
		}
		return errors.Errorf("refusing to overwrite %s: existing content differs", path)
	}
	if !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}
