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
	"context"
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
)

type uploadPart struct {
	partNumber int32
	body       []byte
}

type uploadResult struct {
	partNumber int32
	etag       string
}

// Upload drives a bounded-concurrency multipart upload of src to
// bucket/key via store, sending metadata as the multipart upload's
// object metadata.
//
// Shape: one reader goroutine accumulates io-chunksize reads into
// multipart-chunksize parts over a bounded channel; max-concurrency
// uploader goroutines drain the channel and call UploadPart. Any failure
// aborts the upload; success sorts parts ascending before completing.
func Upload(ctx context.Context, store objectstore.Store, bucket, key string, src Source, metadata map[string]string, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logrus.Debugf("transfer: Upload bucket=%s key=%s", bucket, key)
	uploadID, err := store.CreateMultipartUpload(ctx, bucket, key, metadata)
	if err != nil {
		return errors.Wrap(err, "transfer: create multipart upload")
	}

	g, gctx := errgroup.WithContext(ctx)
	parts := make(chan uploadPart, cfg.maxIOQueue)

	g.Go(func() error {
		defer close(parts)
		return readParts(gctx, src, cfg, parts)
	})

	var mu sync.Mutex
	var results []uploadResult

	concurrency := cfg.maxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case p, ok := <-parts:
					if !ok {
						return nil
					}
					etag, err := store.UploadPart(gctx, bucket, key, uploadID, p.partNumber, p.body)
					if err != nil {
						return errors.Wrapf(err, "transfer: upload part %d", p.partNumber)
					}
					mu.Lock()
					results = append(results, uploadResult{partNumber: p.partNumber, etag: etag})
					mu.Unlock()
					cfg.invokeCallback(len(p.body))
				}
			}
		})
	}

	// Abort must still reach the store when the parent ctx is already
	// cancelled, so it runs on a detached context.
	abortCtx := context.WithoutCancel(ctx)

	if err := g.Wait(); err != nil {
		logrus.Debugf("transfer: Upload failed, aborting upload_id=%s: %v", uploadID, err)
		if abortErr := store.AbortMultipartUpload(abortCtx, bucket, key, uploadID); abortErr != nil {
			logrus.Warnf("transfer: abort multipart upload also failed: %v", abortErr)
		}
		return classifyGroupError(err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].partNumber < results[j].partNumber })
	completedParts := make([]objectstore.Part, len(results))
	for i, r := range results {
		completedParts[i] = objectstore.Part{PartNumber: r.partNumber, ETag: r.etag}
	}

	if err := store.CompleteMultipartUpload(ctx, bucket, key, uploadID, completedParts); err != nil {
		if abortErr := store.AbortMultipartUpload(abortCtx, bucket, key, uploadID); abortErr != nil {
			logrus.Warnf("transfer: abort multipart upload after completion failure also failed: %v", abortErr)
		}
		return classifyGroupError(errors.Wrap(err, "transfer: complete multipart upload"))
	}
	return nil
}

// readParts pulls ioChunksize reads from src, accumulates them into
// multipartChunksize parts (applying the processing hook, if any), and
// sends each to parts. An empty source still produces exactly one
// zero-length part, so CompleteMultipartUpload always has something to
// commit.
func readParts(ctx context.Context, src Source, cfg config, parts chan<- uploadPart) error {
	buf := make([]byte, cfg.ioChunksize)
	var acc []byte
	var partNumber int32 = 1
	sawAnyByte := false

	flush := func() error {
		body := cfg.applyProcessing(acc)
		acc = nil
		select {
		case <-ctx.Done():
			return ctx.Err()
		case parts <- uploadPart{partNumber: partNumber, body: body}:
		}
		partNumber++
		return nil
	}

	for {
		n, err := src.Read(buf)
		if n > 0 {
			sawAnyByte = true
			acc = append(acc, buf[:n]...)
			for int64(len(acc)) >= cfg.multipartChunksize {
				chunk := acc[:cfg.multipartChunksize]
				acc = acc[cfg.multipartChunksize:]
				body := cfg.applyProcessing(append([]byte(nil), chunk...))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case parts <- uploadPart{partNumber: partNumber, body: body}:
				}
				partNumber++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "transfer: read source")
		}
	}

	if len(acc) > 0 || !sawAnyByte {
		return flush()
	}
	return nil
}
