// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package storage

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ErrNoModel is returned when no stored version exists for a name.
var ErrNoModel = errors.New("no stored model")

const modelExt = ".gob.gz"

// ModelMetadata describes one stored model version.
type ModelMetadata struct {
	// Name is the model family, e.g. "segments".
	Name string `json:"name"`

	// Version increases monotonically per Name.
	Version int `json:"version"`

	// RunID is the pipeline run that trained the model.
	RunID string `json:"run_id,omitempty"`

	TrainedAt time.Time `json:"trained_at"`
	SavedAt   time.Time `json:"saved_at"`

	Segments  int `json:"segments"`
	Customers int `json:"customers"`

	// Checksum is the SHA-256 of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`

	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// Store persists versioned gob+gzip model files in one directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// versions tracks the latest version per name.
	versions map[string]int
}

// NewStore opens or creates a store at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{baseDir: baseDir, versions: make(map[string]int)}
	all, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("scan existing models: %w", err)
	}
	for name, vs := range all {
		s.versions[name] = vs[0]
	}
	return s, nil
}

// scan returns every stored version per name, newest first.
func (s *Store) scan() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), modelExt) {
			continue
		}
		name, version := parseModelFilename(strings.TrimSuffix(entry.Name(), modelExt))
		if name == "" {
			continue
		}
		out[name] = append(out[name], version)
	}
	for _, vs := range out {
		sort.Sort(sort.Reverse(sort.IntSlice(vs)))
	}
	return out, nil
}

// parseModelFilename splits "segments_v3" into ("segments", 3).
func parseModelFilename(base string) (string, int) {
	idx := strings.LastIndex(base, "_v")
	if idx <= 0 {
		return "", 0
	}
	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0
	}
	return base[:idx], version
}

// Save encodes data as version of name. A model file is one JSON metadata
// line followed by the gzip-compressed gob payload, written atomically.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, version int, data any, meta ModelMetadata) (*ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(data); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	sum := sha256.Sum256(payload.Bytes())

	var packed bytes.Buffer
	zw := gzip.NewWriter(&packed)
	if _, err := payload.WriteTo(zw); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}

	meta.Name = name
	meta.Version = version
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(packed.Len())
	meta.SavedAt = time.Now().UTC()

	header, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = WriteFileAtomic(s.modelPath(name, version), func(w io.Writer) error {
		if _, err := w.Write(append(header, '\n')); err != nil {
			return err
		}
		_, err := packed.WriteTo(w)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("write model file: %w", err)
	}

	if v, ok := s.versions[name]; !ok || version > v {
		s.versions[name] = version
	}
	return &meta, nil
}

// Load decodes version of name into target. Version 0 loads the latest.
// The payload checksum is verified before decoding.
func (s *Store) Load(ctx context.Context, name string, version int, target any) (*ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		v, ok := s.versions[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoModel, name)
		}
		version = v
	}

	f, err := os.Open(s.modelPath(name, version)) //nolint:gosec // path is built from the store directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s v%d", ErrNoModel, name, version)
		}
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only

	br := bufio.NewReader(f)
	meta, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}

	sum := sha256.Sum256(payload)
	if got := hex.EncodeToString(sum[:]); got != meta.Checksum {
		return nil, fmt.Errorf("checksum mismatch for %s v%d: stored %s, computed %s", name, version, meta.Checksum, got)
	}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return meta, nil
}

func readHeader(br *bufio.Reader) (*ModelMetadata, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read model header: %w", err)
	}
	var meta ModelMetadata
	if err := json.Unmarshal(line, &meta); err != nil {
		return nil, fmt.Errorf("parse model header: %w", err)
	}
	return &meta, nil
}

func readMetadata(path string) (*ModelMetadata, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the store directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only
	return readHeader(bufio.NewReader(f))
}

// LatestVersion returns the newest stored version of name.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[name]
	return v, ok
}

// List returns metadata for every stored version of name, newest first.
// Unreadable files are skipped.
func (s *Store) List(ctx context.Context, name string) ([]ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var out []ModelMetadata
	for _, v := range all[name] {
		meta, err := readMetadata(s.modelPath(name, v))
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}
	return out, nil
}

// Prune deletes all but the newest keep versions of name.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.scan()
	if err != nil {
		return 0, fmt.Errorf("read directory: %w", err)
	}

	removed := 0
	versions := all[name]
	for i := keep; i < len(versions); i++ {
		if err := os.Remove(s.modelPath(name, versions[i])); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("delete model: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) modelPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, modelExt))
}
