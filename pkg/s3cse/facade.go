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

package s3cse

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/GoogleContainerTools/s3cse/pkg/constants"
	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
	"github.com/GoogleContainerTools/s3cse/pkg/transfer"
)

// Engine is the S3CSE facade: it orchestrates a CryptoContext, the
// content cipher, the metadata codec, and the multipart transfer
// orchestrators into the two operations callers need, PutObject and
// GetObject. It owns no resources of its own beyond the CryptoContext
// and Store handed to it at construction.
type Engine struct {
	Store   objectstore.Store
	Context CryptoContext

	cfg engineConfig
}

type engineConfig struct {
	authenticatedEncryption bool
	envelopeV1              bool
	parallelGetThreshold    int64
	transferOpts            []transfer.Option
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		parallelGetThreshold: constants.DefaultPartSize,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithAuthenticatedEncryption selects AES-256-GCM as the content cipher
// for PutObject when Context is a *KmsContext; it has no effect for
// Symmetric/Asymmetric contexts, which always use CBC. The KMS context
// is the only variant that writes GCM-tagged envelopes.
func WithAuthenticatedEncryption(b bool) Option {
	return func(c *engineConfig) { c.authenticatedEncryption = b }
}

// WithV1Envelope selects the legacy v1 envelope (x-amz-key, no
// x-amz-cek-alg/x-amz-wrap-alg headers) for PutObject. Only Symmetric and
// Asymmetric contexts support v1 encryption; v1 KMS objects can be
// neither written nor decrypted.
func WithV1Envelope(b bool) Option {
	return func(c *engineConfig) { c.envelopeV1 = b }
}

// WithParallelGetThreshold sets the ciphertext length, in bytes, above
// which a non-ranged GetObject fetches the object through the parallel
// Multipart Download Orchestrator (pkg/transfer) instead of a single GET.
// Ranged GETs always issue a single adjusted-range request, since the
// adjusted range is already caller-bounded. Default is
// constants.DefaultPartSize.
func WithParallelGetThreshold(n int64) Option {
	return func(c *engineConfig) { c.parallelGetThreshold = n }
}

// WithTransferOptions forwards tunables (concurrency, chunk sizes,
// callbacks) to the underlying Multipart Upload/Download Orchestrator.
func WithTransferOptions(opts ...transfer.Option) Option {
	return func(c *engineConfig) { c.transferOpts = append(c.transferOpts, opts...) }
}

// NewEngine builds an Engine over store and cryptoCtx.
func NewEngine(store objectstore.Store, cryptoCtx CryptoContext, opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{Store: store, Context: cryptoCtx, cfg: cfg}
}

// PutObject encrypts body whole under a freshly generated data key,
// builds the envelope metadata, and uploads the ciphertext through the
// multipart upload orchestrator. Streaming encryption of unbounded input
// is not supported; the upload stage may still split the ciphertext
// buffer into parts.
func (e *Engine) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	logrus.Debugf("s3cse: PutObject bucket=%s key=%s len=%d", bucket, key, len(body))

	dk, err := e.Context.GetEncryptionDataKey(ctx)
	if err != nil {
		return errors.Wrap(err, "s3cse: get encryption data key")
	}

	useGCM := e.cfg.authenticatedEncryption
	if _, isKms := e.Context.(*KmsContext); !isKms {
		useGCM = false
	}

	var meta EnvelopeMetadata
	var ciphertext []byte
	if useGCM {
		meta.IV, ciphertext, err = EncryptGCM(dk.Plaintext, body)
		meta.CEKAlg = constants.CEKAlgGCM
		meta.TagLenBits = constants.GCMTagLenBits
	} else {
		meta.IV, ciphertext, err = EncryptCBC(dk.Plaintext, body)
		meta.CEKAlg = constants.CEKAlgCBC
	}
	if err != nil {
		return errors.Wrap(err, "s3cse: encrypt body")
	}

	if e.cfg.envelopeV1 {
		if _, isKms := e.Context.(*KmsContext); isKms {
			return errors.Wrap(ErrDecrypt, "v1 envelope is not supported for KMS contexts")
		}
		meta.KeyV1 = dk.Wrapped
	} else {
		meta.KeyV2 = dk.Wrapped
		meta.WrapAlg = e.Context.WrapAlg()
	}
	meta.MaterialDescription = dk.MaterialDescription
	meta.UnencryptedContentLength = int64(len(body))

	headers, err := EncodeMetadata(meta)
	if err != nil {
		return errors.Wrap(err, "s3cse: encode envelope metadata")
	}

	src := transfer.NewSource(bytes.NewReader(ciphertext))
	if err := transfer.Upload(ctx, e.Store, bucket, key, src, headers, e.cfg.transferOpts...); err != nil {
		return err
	}
	return nil
}

// GetObject retrieves and decrypts bucket/key. When byteRange is non-nil,
// it is aligned to cipher-block boundaries, rejected for CBC objects, and
// decrypted via the CTR reinterpretation of GCM; the result is trimmed
// back to exactly the requested bytes. When byteRange is nil, the whole
// object is fetched and decrypted with the algorithm named in its
// envelope metadata.
func (e *Engine) GetObject(ctx context.Context, bucket, key string, byteRange *objectstore.ByteRange) ([]byte, error) {
	logrus.Debugf("s3cse: GetObject bucket=%s key=%s range=%v", bucket, key, byteRange)

	if byteRange != nil {
		return e.getObjectRanged(ctx, bucket, key, byteRange)
	}
	return e.getObjectWhole(ctx, bucket, key)
}

func (e *Engine) getObjectRanged(ctx context.Context, bucket, key string, byteRange *objectstore.ByteRange) ([]byte, error) {
	head, err := e.Store.HeadObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	meta, err := DecodeMetadata(head.Metadata)
	if err != nil {
		return nil, err
	}
	if meta.CEKAlg != constants.CEKAlgGCM {
		return nil, errors.Wrap(ErrRangeNotSupported, "s3cse: ranged get requires a GCM-encrypted object")
	}

	plan := PlanRange(byteRange.Start, byteRange.End, head.ContentLength)

	out, err := e.Store.GetObject(ctx, bucket, key, &objectstore.ByteRange{Start: plan.AdjustedStart, End: plan.AdjustedEnd})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	ciphertext, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: read ranged body")
	}

	dk, err := e.unwrapDataKey(ctx, meta)
	if err != nil {
		return nil, err
	}

	plaintext, err := DecryptGCMRanged(dk, meta.IV, ciphertext, plan.BlockOffset)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: decrypt ranged ciphertext")
	}

	end := int64(len(plaintext)) - plan.TrimBack
	if plan.TrimFront < 0 || end > int64(len(plaintext)) || plan.TrimFront > end {
		return nil, errors.Wrap(ErrDecrypt, "s3cse: range trim out of bounds")
	}
	return plaintext[plan.TrimFront:end], nil
}

func (e *Engine) getObjectWhole(ctx context.Context, bucket, key string) ([]byte, error) {
	head, err := e.Store.HeadObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	meta, err := DecodeMetadata(head.Metadata)
	if err != nil {
		return nil, err
	}

	var ciphertext []byte
	if head.ContentLength > e.cfg.parallelGetThreshold {
		sink := newMemSink(head.ContentLength)
		if err := transfer.Download(ctx, e.Store, bucket, key, transfer.NewSeekableSink(sink), e.cfg.transferOpts...); err != nil {
			return nil, err
		}
		ciphertext = sink.buf
	} else {
		out, err := e.Store.GetObject(ctx, bucket, key, nil)
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()
		ciphertext, err = io.ReadAll(out.Body)
		if err != nil {
			return nil, errors.Wrap(err, "s3cse: read body")
		}
	}

	dk, err := e.unwrapDataKey(ctx, meta)
	if err != nil {
		return nil, err
	}

	switch {
	case meta.IsV1():
		return DecryptCBC(dk, meta.IV, ciphertext)
	case meta.CEKAlg == constants.CEKAlgGCM:
		return DecryptGCM(dk, meta.IV, ciphertext)
	case meta.CEKAlg == constants.CEKAlgCBC:
		return DecryptCBC(dk, meta.IV, ciphertext)
	default:
		return nil, errors.Wrapf(ErrDecrypt, "s3cse: unsupported cek alg %q", meta.CEKAlg)
	}
}

// unwrapDataKey unwraps the data key named in meta. Each GetObject call
// unwraps exactly once, regardless of how many range workers fetched the
// ciphertext.
func (e *Engine) unwrapDataKey(ctx context.Context, meta EnvelopeMetadata) ([]byte, error) {
	if meta.IsV1() {
		if _, isKms := e.Context.(*KmsContext); isKms {
			return nil, errors.Wrap(ErrDecrypt, "s3cse: v1 KMS envelope decryption is not implemented")
		}
		return e.Context.GetDecryptionDataKey(ctx, meta.MaterialDescription, meta.KeyV1)
	}
	return e.Context.GetDecryptionDataKey(ctx, meta.MaterialDescription, meta.KeyV2)
}

// memSink is a minimal io.WriteSeeker backed by a preallocated byte slice,
// used to give the parallel Download orchestrator a seekable target when
// GetObject fetches a large whole object into memory for decryption. It
// also implements io.WriterAt, so transfer.Sink routes concurrent range
// workers through WriteAt directly instead of serializing Seek+Write.
type memSink struct {
	mu  sync.Mutex
	buf []byte
	pos int64
}

func newMemSink(size int64) *memSink {
	if size < 0 {
		size = 0
	}
	return &memSink{buf: make([]byte, size)}
}

func (m *memSink) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:end], p)
	return len(p), nil
}

func (m *memSink) Write(p []byte) (int, error) {
	m.mu.Lock()
	pos := m.pos
	m.mu.Unlock()
	n, err := m.WriteAt(p, pos)
	if err != nil {
		return n, err
	}
	m.mu.Lock()
	m.pos += int64(n)
	m.mu.Unlock()
	return n, nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	default:
		return 0, errors.Errorf("s3cse: invalid seek whence %d", whence)
	}
	return m.pos, nil
}
