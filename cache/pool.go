package cache

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vsprovision/vsprovision/errors"
	"github.com/vsprovision/vsprovision/manifest"
	"github.com/vsprovision/vsprovision/ui"
)

// minWorkers is spec.md §4.6's "minimum 5 for network saturation".
const minWorkers = 5

// Flag is an atomic.Bool-backed StopFlag, the "process-wide boolean
// observable at chunk boundaries" spec.md §5 calls for.
type Flag struct {
	stopped atomic.Bool
}

// Stop sets the flag; downloaders observe it at the next chunk boundary or
// attempt start.
func (f *Flag) Stop() { f.stopped.Store(true) }

// Stopped implements StopFlag.
func (f *Flag) Stopped() bool { return f.stopped.Load() }

// payloadTask is one (PackageKey, Payload) unit of download work.
type payloadTask struct {
	key     manifest.PackageKey
	payload manifest.Payload
}

// Pool downloads every payload of every selected variant concurrently,
// bounded to max(minWorkers, runtime.NumCPU()) workers (spec.md §4.6).
type Pool struct {
	Downloader *Downloader
}

// NewPool returns a Pool wrapping "d".
func NewPool(d *Downloader) *Pool {
	return &Pool{Downloader: d}
}

// workerCount is spec.md §4.6's "N = number of cores; minimum 5".
func workerCount() int {
	n := runtime.NumCPU()
	if n < minWorkers {
		return minWorkers
	}
	return n
}

// FetchAll downloads every payload of every variant in "variants",
// returning the total bytes transferred. A failed task does not cancel the
// others: FetchAll waits for every task and then returns the first error
// (spec.md §4.6 "Failure surfacing"); already-downloaded payloads remain
// cached.
func FetchAll(task *ui.Task, pool *Pool, variants []*manifest.Variant) (totalBytes int64, err error) {
	var tasks []payloadTask
	for _, v := range variants {
		key := manifest.NewPackageKey(v)
		for _, p := range v.Payloads {
			tasks = append(tasks, payloadTask{key: key, payload: p})
		}
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(workerCount())

	var total atomic.Int64
	sub := task.SubProgress("download", len(tasks))
	defer sub.Done()
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			n, err := pool.Downloader.FetchPayload(sub, t.key, t.payload)
			total.Add(n)
			sub.Add(1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return total.Load(), errors.WithStack(err)
	}
	return total.Load(), nil
}
