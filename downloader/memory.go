package downloader

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Caches downloaded files in memory. Concurrent requests for a
// cacheable URL share a single download, and its error.
type MemoryDownloader struct {
	mutex sync.Mutex
	cache map[string]downloaderCacheEntry
	group singleflight.Group

	// Performs the actual downloads. Defaults to HTTP.
	Next Downloader

	TimeNow func() time.Time
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{
		cache:   make(map[string]downloaderCacheEntry),
		Next:    HTTP{},
		TimeNow: time.Now,
	}
}

type downloaderCacheEntry struct {
	data       []byte
	expiration time.Time
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	next := d.Next
	if next == nil {
		next = HTTP{}
	}

	if !options.Cache {
		return next.Get(ctx, url, headers, options)
	}

	if data, ok := d.lookup(url); ok {
		return data, nil
	}

	// The shared download outlives any single caller's context, and is
	// bounded by options.Timeout instead.
	ch := d.group.DoChan(url, func() (interface{}, error) {
		if data, ok := d.lookup(url); ok {
			return data, nil
		}

		body, err := next.Get(context.WithoutCancel(ctx), url, headers, options)
		if err != nil {
			return nil, err
		}

		d.mutex.Lock()
		d.cache[url] = downloaderCacheEntry{
			data:       body,
			expiration: d.TimeNow().Add(options.CacheTTL),
		}
		d.mutex.Unlock()

		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (d *MemoryDownloader) lookup(url string) ([]byte, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	entry, ok := d.cache[url]
	if !ok {
		return nil, false
	}
	if !entry.expiration.After(d.TimeNow()) {
		delete(d.cache, url)
		return nil, false
	}
	return entry.data, true
}
