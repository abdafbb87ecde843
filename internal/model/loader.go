package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/plantcare-api/internal/labels"
	"github.com/Brownie44l1/plantcare-api/internal/metrics"
)

// OpenFunc builds a Handle from storage.
type OpenFunc func() (*Handle, error)

// Loader opens the model on the first Get and hands every later caller the
// same Handle. A failed load is remembered; it is not retried.
type Loader struct {
	open OpenFunc
	log  zerolog.Logger

	once   sync.Once
	handle *Handle
	err    error
	loads  atomic.Int32
	ready  atomic.Bool
}

func NewLoader(open OpenFunc, log zerolog.Logger) *Loader {
	return &Loader{open: open, log: log}
}

// Get returns the shared handle, opening it if this is the first call.
func (l *Loader) Get() (*Handle, error) {
	l.once.Do(func() {
		l.loads.Add(1)
		start := time.Now()
		l.handle, l.err = l.open()
		metrics.ObserveModelLoad(time.Since(start), l.err)
		if l.err != nil {
			l.log.Error().Err(l.err).Msg("model load failed")
			return
		}
		l.ready.Store(true)
		meta := l.handle.Metadata()
		l.log.Info().
			Int("classes", len(meta.Classes)).
			Ints64("input_shape", meta.InputShape).
			Dur("dur", time.Since(start)).
			Msg("model loaded")
	})
	return l.handle, l.err
}

// Ready reports whether the model loaded successfully.
func (l *Loader) Ready() bool { return l.ready.Load() }

// Loads reports how many times the artifact has been opened.
func (l *Loader) Loads() int { return int(l.loads.Load()) }

// Close releases the handle if one was loaded.
func (l *Loader) Close() error {
	if !l.ready.Load() {
		return nil
	}
	return l.handle.Close()
}

// ONNXOpener opens an ONNX artifact and its metadata file. A missing metadata
// file falls back to DefaultMetadata; a malformed one is an error.
func ONNXOpener(modelPath, metadataPath, libPath string, log zerolog.Logger) OpenFunc {
	return func() (*Handle, error) {
		if _, err := os.Stat(modelPath); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, modelPath, err)
		}

		meta, err := openMetadata(metadataPath, log)
		if err != nil {
			return nil, err
		}

		sess, err := NewSession(modelPath, libPath, meta)
		if err != nil {
			return nil, err
		}
		h, err := NewHandle(sess, meta)
		if err != nil {
			_ = sess.Close()
			return nil, err
		}
		return h, nil
	}
}

func openMetadata(path string, log zerolog.Logger) (Metadata, error) {
	if path == "" {
		log.Warn().Msg("no metadata path configured, using built-in label table")
		return DefaultMetadata(), nil
	}
	meta, err := LoadMetadata(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("metadata file not found, using built-in label table")
		return DefaultMetadata(), nil
	}
	if err != nil {
		return Metadata{}, err
	}
	if t, _ := meta.Table(); !t.Equal(labels.Default()) {
		log.Warn().Str("path", path).Int("classes", len(meta.Classes)).
			Msg("metadata class list differs from the built-in table, using metadata ordering")
	}
	return meta, nil
}
