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
	"io"
	"sync"

	"github.com/spf13/afero"
)

// Source is the byte source an Upload reads from. Goroutines make Go's
// blocking io.Reader equally suited to what would otherwise need separate
// sync/async adapters; a single reader covers both.
type Source struct {
	r io.Reader
}

// NewSource wraps any io.Reader as an upload Source.
func NewSource(r io.Reader) Source {
	return Source{r: r}
}

// NewFileSource opens name on fs (or the OS filesystem if fs is nil) for
// reading.
func NewFileSource(fs afero.Fs, name string) (Source, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Open(name)
	if err != nil {
		return Source{}, err
	}
	return Source{r: f}, nil
}

func (s Source) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// sinkKind tags which write strategy a Sink uses, decided once at
// construction instead of probed per write.
type sinkKind int

const (
	sinkKindSeekable sinkKind = iota
	sinkKindStreaming
)

// Sink is the byte sink a Download writes into. It is a tagged union of
// "seekable" (supports out-of-order WriteAt-style writes via Seek+Write)
// and "streaming" (supports only sequential Write). The strategy is
// picked once, at construction, never probed per write.
type Sink struct {
	kind      sinkKind
	seekable  io.WriteSeeker
	writerAt  io.WriterAt
	streaming io.Writer
	mu        *sync.Mutex
}

// NewSeekableSink builds a Sink that writes parts directly to their
// offsets; part order is irrelevant for this kind. Multiple range workers
// call WriteAt concurrently, so when w also implements io.WriterAt (whose
// contract guarantees safe concurrent non-overlapping writes, as os.File
// does) that path is used directly; otherwise Seek+Write are serialized
// behind a mutex to avoid one goroutine's Write landing at another's
// just-seeked offset.
func NewSeekableSink(w io.WriteSeeker) Sink {
	s := Sink{kind: sinkKindSeekable, seekable: w}
	if wa, ok := w.(io.WriterAt); ok {
		s.writerAt = wa
	} else {
		s.mu = &sync.Mutex{}
	}
	return s
}

// NewStreamingSink builds a Sink that can only be written to in strictly
// ascending offset order; Download buffers out-of-order parts until their
// turn.
func NewStreamingSink(w io.Writer) Sink {
	return Sink{kind: sinkKindStreaming, streaming: w}
}

// NewFileSink opens name on fs (or the OS filesystem if fs is nil) for
// writing, as a seekable Sink.
func NewFileSink(fs afero.Fs, name string) (Sink, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Create(name)
	if err != nil {
		return Sink{}, err
	}
	return NewSeekableSink(f), nil
}

// IsSeekable reports which write strategy the Download orchestrator must
// use for this sink.
func (s Sink) IsSeekable() bool {
	return s.kind == sinkKindSeekable
}

// WriteAt writes chunk at the given offset. Only valid for seekable sinks.
// Safe for concurrent calls with disjoint offsets.
func (s Sink) WriteAt(offset int64, chunk []byte) error {
	if s.writerAt != nil {
		_, err := s.writerAt.WriteAt(chunk, offset)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.seekable.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := s.seekable.Write(chunk)
	return err
}

// WriteSequential writes chunk at the sink's current position. Only valid
// for streaming sinks, and only correct when called in ascending offset
// order.
func (s Sink) WriteSequential(chunk []byte) error {
	_, err := s.streaming.Write(chunk)
	return err
}
