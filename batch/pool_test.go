package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context, url, destDir string) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, url, destDir string) (string, error) {
	return f(ctx, url, destDir)
}

func TestDownloadAll_BoundedAndIsolated(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := fetchFunc(func(ctx context.Context, url, destDir string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if strings.HasPrefix(url, "bad") {
			return "", errors.New("video unavailable")
		}
		return destDir + "/" + url + ".mp4", nil
	})

	var urls []string
	for i := range 10 {
		if i%4 == 1 {
			urls = append(urls, fmt.Sprintf("bad%d", i))
		} else {
			urls = append(urls, fmt.Sprintf("ok%d", i))
		}
	}

	var mu sync.Mutex
	var done []Download
	sum, err := DownloadAll(context.Background(), f, urls, PoolOptions{Workers: 3, DestDir: "out", Logger: zerolog.Nop()}, func(d Download) {
		mu.Lock()
		done = append(done, d)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 7, sum.OK)
	assert.Equal(t, 3, sum.Failed)
	assert.Len(t, sum.Failures, 3)
	assert.Len(t, done, 10)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1), "downloads should overlap")
}

func TestDownloadAll_DefaultWorkers(t *testing.T) {
	var calls atomic.Int32
	f := fetchFunc(func(ctx context.Context, url, destDir string) (string, error) {
		calls.Add(1)
		return url, nil
	})

	sum, err := DownloadAll(context.Background(), f, []string{"a", "b"}, PoolOptions{Workers: 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.OK)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownloadAll_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	f := fetchFunc(func(ctx context.Context, url, destDir string) (string, error) {
		calls.Add(1)
		return url, nil
	})

	sum, err := DownloadAll(ctx, f, []string{"a", "b", "c"}, PoolOptions{Workers: 2}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
	assert.Zero(t, sum.OK)
}

func TestDownloadAll_Empty(t *testing.T) {
	sum, err := DownloadAll(context.Background(), nil, nil, PoolOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, PoolSummary{}, sum)
}
