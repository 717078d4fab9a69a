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

import "github.com/GoogleContainerTools/s3cse/pkg/constants"

// config holds the tunables shared by Upload and Download. There is no
// ambient session: every field is set explicitly by an Option or takes
// the package default.
type config struct {
	multipartChunksize int64
	ioChunksize        int64
	maxConcurrency     int
	maxIOQueue         int
	partSize           int64
	callback           func(n int)
	processing         func([]byte) []byte
}

func defaultConfig() config {
	return config{
		multipartChunksize: constants.DefaultMultipartChunksize,
		ioChunksize:        constants.DefaultIOChunksize,
		maxConcurrency:     constants.DefaultMaxConcurrency,
		maxIOQueue:         constants.DefaultMaxIOQueue,
		partSize:           constants.DefaultPartSize,
	}
}

// Option configures an Upload or Download call.
type Option func(*config)

// WithMultipartChunksize overrides the accumulated part size the reader
// task hands to each uploader (default 8 MiB).
func WithMultipartChunksize(n int64) Option {
	return func(c *config) { c.multipartChunksize = n }
}

// WithIOChunksize overrides the size of each read the reader task issues
// against the source (default 256 KiB).
func WithIOChunksize(n int64) Option {
	return func(c *config) { c.ioChunksize = n }
}

// WithMaxConcurrency overrides the number of concurrent uploader/
// downloader workers (default 10).
func WithMaxConcurrency(n int) Option {
	return func(c *config) { c.maxConcurrency = n }
}

// WithMaxIOQueue overrides the bounded queue capacity between the reader
// task and the uploader workers (default 100).
func WithMaxIOQueue(n int) Option {
	return func(c *config) { c.maxIOQueue = n }
}

// WithPartSize overrides the ranged-GET size the Download orchestrator
// uses to split an object across workers (default 8 MiB). Undefined if
// changed mid-download; treat it as immutable per call.
func WithPartSize(n int64) Option {
	return func(c *config) { c.partSize = n }
}

// WithCallback registers a progress callback invoked after each
// successfully transferred chunk, with that chunk's byte count. Panics
// from the callback are recovered and discarded.
func WithCallback(fn func(n int)) Option {
	return func(c *config) { c.callback = fn }
}

// WithProcessing registers a transform applied to each accumulated part
// before it is uploaded (e.g. compression). Only meaningful for Upload.
func WithProcessing(fn func([]byte) []byte) Option {
	return func(c *config) { c.processing = fn }
}

func (c config) invokeCallback(n int) {
	if c.callback == nil {
		return
	}
	defer func() { _ = recover() }()
	c.callback(n)
}

func (c config) applyProcessing(b []byte) []byte {
	if c.processing == nil {
		return b
	}
	return c.processing(b)
}
