package cache

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/manifest"
	"github.com/vsprovision/vsprovision/ui"
	"github.com/vsprovision/vsprovision/util"
)

// MaxAttempts is spec.md §4.6's "up to 5 attempts" per payload.
const MaxAttempts = 5

// chunkSize is the streaming copy granularity the cancellation flag is
// checked at (spec.md §4.6: "8 KiB (or similar) chunks").
const chunkSize = 8 * 1024

// ErrHashMismatch is returned after exhausting MaxAttempts with a
// persistent SHA-256 mismatch.
var ErrHashMismatch = errors.New("payload hash mismatch")

// StopFlag is the process-wide cancellation token spec.md §5 describes:
// checked at each chunk boundary and each attempt start.
type StopFlag interface {
	Stopped() bool
}

// Downloader fetches and verifies a single payload at a time; Pool wraps
// it with bounded concurrency.
type Downloader struct {
	Client      *http.Client
	Cache       *Cache
	Stop        StopFlag
	OnlyDownload bool // spec.md §4.6: warn instead of fail on hash mismatch
}

// NewDownloader returns a Downloader with spec.md §5's default per-request
// timeout.
func NewDownloader(cache *Cache, stop StopFlag) *Downloader {
	return &Downloader{
		Client: &http.Client{Timeout: 15 * time.Second},
		Cache:  cache,
		Stop:   stop,
	}
}

// FetchPayload ensures "payload" of "key" is present and verified in the
// cache, downloading it (with resume and retry) if necessary. It returns
// the number of bytes actually transferred (0 if the cached copy was
// reused).
func (d *Downloader) FetchPayload(task *ui.Task, key manifest.PackageKey, payload manifest.Payload) (transferred int64, err error) {
	if _, err := d.Cache.Mkdir(key); err != nil {
		return 0, err
	}
	dest := d.Cache.Path(key, payload)

	if _, statErr := os.Stat(dest); statErr == nil {
		if payload.SHA256 == "" {
			task.Debugf("trusting existing file without advertised hash: %s", dest)
			return 0, nil
		}
		sum, hashErr := util.Sha256LocalFile(dest)
		if hashErr != nil {
			return 0, hashErr
		}
		if sum == payload.SHA256 {
			task.Debugf("using existing file %s", dest)
			return 0, nil
		}
		task.Warnf("incorrect existing file %s, removing", dest)
		if rmErr := os.Remove(dest); rmErr != nil {
			return 0, errors.WithStack(rmErr)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if d.Stop != nil && d.Stop.Stopped() {
			return transferred, errors.New("download cancelled")
		}
		n, err := d.attempt(task, dest, payload)
		transferred += n
		if err == nil {
			return transferred, nil
		}
		lastErr = err
		if errors.Is(err, ErrHashMismatch) {
			task.Warnf("hash mismatch on attempt %d/%d for %s: %v", attempt, MaxAttempts, payload.URL, err)
			continue
		}
		task.Warnf("attempt %d/%d for %s failed: %v", attempt, MaxAttempts, payload.URL, err)
	}
	if errors.Is(lastErr, ErrHashMismatch) && d.OnlyDownload {
		task.Warnf("giving up verifying %s after %d attempts, keeping file because --only-download was requested", payload.URL, MaxAttempts)
		return transferred, nil
	}
	return transferred, errors.Wrapf(lastErr, "failed to fetch %s after %d attempts", payload.URL, MaxAttempts)
}

func (d *Downloader) attempt(task *ui.Task, dest string, payload manifest.Payload) (int64, error) {
	n, err := d.download(task, dest, payload.URL)
	if err != nil {
		return n, err
	}
	if payload.SHA256 != "" {
		sum, err := util.Sha256LocalFile(dest)
		if err != nil {
			return n, err
		}
		if sum != payload.SHA256 {
			_ = os.Remove(dest)
			return n, errors.Wrapf(ErrHashMismatch, "expected %s got %s", payload.SHA256, sum)
		}
	}
	return n, nil
}

// download streams "uri" to "dest" with Range-based resumption, honoring
// the cancellation flag at each chunk boundary.
func (d *Downloader) download(task *ui.Task, dest, uri string) (transferred int64, err error) {
	w, resp, err := resumableGet(d.Client, uri, dest)
	if err != nil {
		return 0, err
	}
	defer w.Close() // nolint: errcheck
	defer resp.Body.Close() // nolint: errcheck

	buf := make([]byte, chunkSize)
	for {
		if d.Stop != nil && d.Stop.Stopped() {
			_ = os.Remove(dest)
			return transferred, errors.New("download cancelled")
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return transferred, errors.WithStack(writeErr)
			}
			transferred += int64(n)
		}
		if readErr == io.EOF {
			return transferred, nil
		}
		if readErr != nil {
			return transferred, errors.WithStack(readErr)
		}
	}
}

// resumableGet opens "dest" for read-write, issues a ranged GET for
// whatever bytes are missing, and positions "dest" to append (or truncates
// it if the server doesn't honor the range request).
func resumableGet(client *http.Client, uri, dest string) (w *os.File, resp *http.Response, err error) {
	w, err = os.OpenFile(dest, os.O_RDWR|os.O_CREATE, 0644) // nolint: gosec
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer func() {
		if err != nil {
			_ = w.Close()
		}
	}()
	info, err := w.Stat()
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	resumed := info.Size()
	req, err := http.NewRequest(http.MethodGet, uri, nil) // nolint: noctx
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if resumed > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumed))
	}
	resp, err = client.Do(req)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		if _, err := w.Seek(0, io.SeekEnd); err != nil {
			_ = resp.Body.Close()
			return nil, nil, errors.WithStack(err)
		}
	case http.StatusOK:
		if err := w.Truncate(0); err != nil {
			_ = resp.Body.Close()
			return nil, nil, errors.WithStack(err)
		}
		if _, err := w.Seek(0, io.SeekStart); err != nil {
			_ = resp.Body.Close()
			return nil, nil, errors.WithStack(err)
		}
	default:
		_ = resp.Body.Close()
		return nil, nil, errors.Errorf("fetching %s: unexpected status %s", uri, resp.Status)
	}
	return w, resp, nil
}
