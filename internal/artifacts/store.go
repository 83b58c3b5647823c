// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Package artifacts provides persistence for trained model artifacts.
//
// Artifacts are grouped into named bundles. A bundle is the unit of
// persistence: each save writes a new generation of every artifact file and
// commits it by replacing the bundle manifest last, so readers only ever see
// a complete generation. Loading verifies the SHA-256 checksum of every
// artifact before decoding.
//
// Artifacts are serialized with Go's gob encoding and gzip-compressed, one
// file per artifact:
//
//	collaborative_v3_model.gob.gz
//	collaborative_v3_user_index.gob.gz
//	collaborative.manifest.json
package artifacts

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ErrBundleNotFound is returned when a bundle has no committed manifest.
var ErrBundleNotFound = errors.New("artifact bundle not found")

// ErrArtifactNotFound is returned when a bundle does not contain the
// requested artifact.
var ErrArtifactNotFound = errors.New("artifact not found in bundle")

// Config configures the artifact store.
type Config struct {
	// Dir is the directory holding artifact files and manifests.
	Dir string
}

// Store persists artifact bundles in a directory.
// It is safe for concurrent use; writers block readers of the same store
// only for the duration of the manifest swap.
type Store struct {
	dir string
	mu  sync.RWMutex

	// versions tracks the latest committed generation per bundle.
	versions map[string]int
}

// NewStore creates a store rooted at cfg.Dir, creating the directory if
// needed and scanning for previously committed bundles.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("artifact store: empty directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	s := &Store{
		dir:      cfg.Dir,
		versions: make(map[string]int),
	}

	if err := s.scanManifests(); err != nil {
		return nil, fmt.Errorf("scan artifact manifests: %w", err)
	}

	return s, nil
}

// scanManifests reads committed manifests to recover generation counters.
func (s *Store) scanManifests() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, manifestSuffix) {
			continue
		}
		bundle := strings.TrimSuffix(name, manifestSuffix)

		m, err := s.readManifest(bundle)
		if err != nil {
			// A corrupt manifest means the bundle is not loadable; it will
			// be replaced wholesale by the next save.
			continue
		}
		if m.Version > s.versions[bundle] {
			s.versions[bundle] = m.Version
		}
	}

	return nil
}

const manifestSuffix = ".manifest.json"

// manifest is the committed description of one bundle generation.
type manifest struct {
	Bundle    string          `json:"bundle"`
	Version   int             `json:"version"`
	SavedAt   time.Time       `json:"saved_at"`
	Artifacts []artifactEntry `json:"artifacts"`
}

// artifactEntry describes one artifact file within a bundle generation.
type artifactEntry struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// SaveBundle writes a new generation of the named bundle containing the
// given artifacts and commits it atomically. Earlier generations become
// unreachable and their files are removed best-effort.
func (s *Store) SaveBundle(bundle string, parts map[string]interface{}) error {
	if len(parts) == 0 {
		return errors.New("save bundle: no artifacts")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.versions[bundle] + 1

	// Deterministic write order keeps failures reproducible.
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	m := manifest{
		Bundle:  bundle,
		Version: version,
		SavedAt: time.Now().UTC(),
	}

	written := make([]string, 0, len(names))
	cleanup := func() {
		for _, f := range written {
			_ = os.Remove(filepath.Join(s.dir, f))
		}
	}

	for _, name := range names {
		entry, err := s.writeArtifact(bundle, version, name, parts[name])
		if err != nil {
			cleanup()
			return fmt.Errorf("write artifact %s/%s: %w", bundle, name, err)
		}
		written = append(written, entry.File)
		m.Artifacts = append(m.Artifacts, entry)
	}

	// Commit: the manifest swap is the point where readers switch over.
	if err := s.writeManifest(m); err != nil {
		cleanup()
		return fmt.Errorf("commit bundle %s: %w", bundle, err)
	}

	s.versions[bundle] = version
	s.pruneGenerations(bundle, version)

	return nil
}

// writeArtifact encodes, compresses, and writes one artifact file.
func (s *Store) writeArtifact(bundle string, version int, name string, data interface{}) (artifactEntry, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return artifactEntry{}, fmt.Errorf("encode: %w", err)
	}
	raw := buf.Bytes()

	hash := sha256.Sum256(raw)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return artifactEntry{}, fmt.Errorf("compress: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return artifactEntry{}, fmt.Errorf("finalize compression: %w", err)
	}

	file := artifactFilename(bundle, version, name)
	path := filepath.Join(s.dir, file)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, compressed.Bytes(), 0o640); err != nil { //nolint:gosec // model artifacts are not secrets
		return artifactEntry{}, fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return artifactEntry{}, fmt.Errorf("rename file: %w", err)
	}

	return artifactEntry{
		Name:     name,
		File:     file,
		Checksum: hex.EncodeToString(hash[:]),
		Size:     int64(compressed.Len()),
	}, nil
}

// writeManifest atomically replaces the bundle manifest.
func (s *Store) writeManifest(m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(s.dir, m.Bundle+manifestSuffix)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o640); err != nil { //nolint:gosec // manifest is not a secret
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename manifest: %w", err)
	}

	return nil
}

// pruneGenerations removes artifact files from generations older than keep.
func (s *Store) pruneGenerations(bundle string, keep int) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	prefix := bundle + "_v"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		idx := strings.IndexByte(rest, '_')
		if idx <= 0 {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(rest[:idx], "%d", &v); err != nil {
			continue
		}
		if v < keep {
			_ = os.Remove(filepath.Join(s.dir, name))
		}
	}
}

// readManifest loads and parses the committed manifest of a bundle.
func (s *Store) readManifest(bundle string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, bundle+manifestSuffix)) //nolint:gosec // bundle names are internal constants
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBundleNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	return &m, nil
}

// Bundle is a read handle on one committed bundle generation.
type Bundle struct {
	store  *Store
	byName map[string]artifactEntry
	saved  time.Time
	ver    int
}

// OpenBundle opens the latest committed generation of the named bundle.
// Returns ErrBundleNotFound when the bundle was never committed.
func (s *Store) OpenBundle(bundle string) (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.readManifest(bundle)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]artifactEntry, len(m.Artifacts))
	for _, entry := range m.Artifacts {
		byName[entry.Name] = entry
	}

	return &Bundle{
		store:  s,
		byName: byName,
		saved:  m.SavedAt,
		ver:    m.Version,
	}, nil
}

// Has reports whether the bundle contains the named artifact.
func (b *Bundle) Has(name string) bool {
	_, ok := b.byName[name]
	return ok
}

// SavedAt returns when the bundle generation was committed.
func (b *Bundle) SavedAt() time.Time {
	return b.saved
}

// Version returns the bundle generation number.
func (b *Bundle) Version() int {
	return b.ver
}

// Load reads, verifies, and gob-decodes the named artifact into target.
func (b *Bundle) Load(name string, target interface{}) error {
	entry, ok := b.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}

	f, err := os.Open(filepath.Join(b.store.dir, entry.File)) //nolint:gosec // file names come from the committed manifest
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompress artifact %s: %w", name, err)
	}
	defer func() { _ = gzr.Close() }()

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", name, err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != entry.Checksum {
		return fmt.Errorf("artifact %s checksum mismatch: expected %s, got %s", name, entry.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return fmt.Errorf("decode artifact %s: %w", name, err)
	}

	return nil
}

// artifactFilename builds the generation-scoped file name for an artifact.
func artifactFilename(bundle string, version int, name string) string {
	return fmt.Sprintf("%s_v%d_%s.gob.gz", bundle, version, name)
}
