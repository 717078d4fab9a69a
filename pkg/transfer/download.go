/*
Copyright 2018 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transfer

import (
	"container/heap"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
)

type downloadChunk struct {
	offset int64
	data   []byte
}

// chunkHeap orders buffered out-of-order chunks by offset, for the
// reassembly task feeding a non-seekable Sink.
type chunkHeap []downloadChunk

func (h chunkHeap) Len() int            { return len(h) }
func (h chunkHeap) Less(i, j int) bool  { return h[i].offset < h[j].offset }
func (h chunkHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *chunkHeap) Push(x interface{}) { *h = append(*h, x.(downloadChunk)) }
func (h *chunkHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Download fetches bucket/key from store in parallel ranged GETs and
// writes the raw (still-encrypted) bytes into sink. Decryption is the
// caller's responsibility (see the s3cse Facade), so Download operates on
// ciphertext length/ranges exactly as returned by HeadObject.
func Download(ctx context.Context, store objectstore.Store, bucket, key string, sink Sink, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logrus.Debugf("transfer: Download bucket=%s key=%s", bucket, key)
	head, err := store.HeadObject(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "transfer: head object")
	}

	total := head.ContentLength
	if total == 0 {
		return nil
	}

	partSize := cfg.partSize
	if partSize <= 0 {
		partSize = 1
	}

	type partSpec struct {
		start, end int64
	}
	var specs []partSpec
	for start := int64(0); start < total; start += partSize {
		end := start + partSize - 1
		if end > total-1 {
			end = total - 1
		}
		specs = append(specs, partSpec{start: start, end: end})
	}

	concurrency := cfg.maxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	if sink.IsSeekable() {
		for _, spec := range specs {
			spec := spec
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
				return downloadRangeInto(gctx, store, bucket, key, spec.start, spec.end, func(data []byte) error {
					return sink.WriteAt(spec.start, data)
				}, &cfg)
			})
		}
		return waitDownload(g)
	}

	// Non-seekable sink: workers push chunks onto an unordered channel; a
	// single reassembly goroutine writes them out in strict offset order,
	// buffering early arrivals in a min-heap.
	chunks := make(chan downloadChunk, len(specs))
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return downloadRangeInto(gctx, store, bucket, key, spec.start, spec.end, func(data []byte) error {
				select {
				case chunks <- downloadChunk{offset: spec.start, data: data}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			}, &cfg)
		})
	}

	// reassemble watches the parent ctx, not gctx: errgroup cancels gctx as
	// soon as Wait returns, which may be before every buffered chunk has
	// been written. On a worker failure, close(chunks) below ends it.
	reassembleDone := make(chan error, 1)
	go func() {
		reassembleDone <- reassemble(ctx, sink, chunks, len(specs))
	}()

	waitErr := waitDownload(g)
	close(chunks)
	reassembleErr := <-reassembleDone

	if waitErr != nil {
		return waitErr
	}
	if reassembleErr != nil {
		return classifyGroupError(reassembleErr)
	}
	return nil
}

func waitDownload(g *errgroup.Group) error {
	if err := g.Wait(); err != nil {
		return classifyGroupError(err)
	}
	return nil
}

func downloadRangeInto(ctx context.Context, store objectstore.Store, bucket, key string, start, end int64, write func([]byte) error, cfg *config) error {
	out, err := store.GetObject(ctx, bucket, key, &objectstore.ByteRange{Start: start, End: end})
	if err != nil {
		return errors.Wrapf(err, "transfer: get object range [%d,%d]", start, end)
	}
	defer out.Body.Close()

	buf := make([]byte, 0, end-start+1)
	tmp := make([]byte, 32*1024)
	for {
		n, rerr := out.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrapf(rerr, "transfer: read object range [%d,%d]", start, end)
		}
	}

	if err := write(buf); err != nil {
		return err
	}
	cfg.invokeCallback(len(buf))
	return nil
}

// reassemble drains chunks and writes them to sink in strictly ascending
// offset order, buffering early arrivals until their predecessor has been
// written.
func reassemble(ctx context.Context, sink Sink, chunks <-chan downloadChunk, total int) error {
	h := &chunkHeap{}
	heap.Init(h)
	written := 0
	var nextOffset int64

	for written < total {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				return nil
			}
			heap.Push(h, c)
		}

		for h.Len() > 0 {
			top := (*h)[0]
			if top.offset == nextOffset {
				heap.Pop(h)
				if err := sink.WriteSequential(top.data); err != nil {
					return err
				}
				nextOffset = top.offset + int64(len(top.data))
				written++
				continue
			}
			break
		}
	}
	return nil
}
