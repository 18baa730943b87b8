// Package audio implements durable chunked-audio storage and the finalize
// step that turns a client's chunk set into one authoritative artifact per
// session.
package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/logging"
	"meeting-sidekick/internal/observability/metrics"
)

const chunkPrefix = "chunk-"

// ChunkStore stores raw audio byte ranges uploaded during a live recording,
// namespaced by (session, client) so two browser tabs recording into the
// same session never interleave byte streams. Chunks may arrive out of
// order and duplicated; ordering is reconstructed at finalize time.
type ChunkStore struct {
	root    string
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewChunkStore creates a chunk store rooted at dir.
func NewChunkStore(dir string, m *metrics.Metrics) (*ChunkStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk root: %w", err)
	}
	return &ChunkStore{
		root:    dir,
		metrics: m,
		log:     logging.WithComponent("chunkstore"),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// lockFor returns the mutex serializing writes for one (session, client)
// pair. Different pairs proceed fully in parallel.
func (s *ChunkStore) lockFor(sessionID, clientID string) *sync.Mutex {
	key := sessionID + "/" + clientID
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *ChunkStore) pairDir(sessionID, clientID string) string {
	return filepath.Join(s.root, sessionID, clientID)
}

func (s *ChunkStore) chunkPath(sessionID, clientID string, index int) string {
	return filepath.Join(s.pairDir(sessionID, clientID), fmt.Sprintf("%s%06d", chunkPrefix, index))
}

// Put stores one chunk. Re-uploading a chunk of identical size is a no-op
// (duplicate retry). A different size at an already-stored index means the
// client's index bookkeeping is inconsistent and returns a ConflictError.
func (s *ChunkStore) Put(sessionID, clientID string, index int, data []byte) error {
	if index < 0 {
		return fmt.Errorf("chunk index must be non-negative, got %d", index)
	}
	if len(data) == 0 {
		return fmt.Errorf("chunk payload is empty")
	}

	l := s.lockFor(sessionID, clientID)
	l.Lock()
	defer l.Unlock()

	path := s.chunkPath(sessionID, clientID, index)
	if info, err := os.Stat(path); err == nil {
		if info.Size() == int64(len(data)) {
			s.metrics.RecordChunkDuplicate()
			s.log.Debug().
				Str("sessionId", sessionID).
				Str("clientId", clientID).
				Int("index", index).
				Msg("duplicate chunk, keeping stored bytes")
			return nil
		}
		s.metrics.RecordChunkConflict()
		indices, lerr := s.listLocked(sessionID, clientID)
		next := 0
		if lerr == nil {
			next = NextIndex(indices)
		}
		return &faults.ConflictError{
			SessionID:  sessionID,
			ClientID:   clientID,
			Index:      index,
			StoredSize: int(info.Size()),
			GotSize:    len(data),
			NextIndex:  next,
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat chunk: %w", err)
	}

	if err := os.MkdirAll(s.pairDir(sessionID, clientID), 0o755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}

	s.metrics.RecordChunkStored(len(data))
	return nil
}

// List returns the sorted indices stored for (session, client). Gaps are
// reported as-is; the finalizer decides what to do with them.
func (s *ChunkStore) List(sessionID, clientID string) ([]int, error) {
	l := s.lockFor(sessionID, clientID)
	l.Lock()
	defer l.Unlock()
	return s.listLocked(sessionID, clientID)
}

func (s *ChunkStore) listLocked(sessionID, clientID string) ([]int, error) {
	entries, err := os.ReadDir(s.pairDir(sessionID, clientID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chunk dir: %w", err)
	}

	indices := make([]int, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, chunkPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, chunkPrefix))
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices, nil
}

// Open returns a reader for one stored chunk.
func (s *ChunkStore) Open(sessionID, clientID string, index int) (io.ReadCloser, error) {
	f, err := os.Open(s.chunkPath(sessionID, clientID, index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &faults.NotFoundError{Kind: "chunk", ID: fmt.Sprintf("%s/%s/%d", sessionID, clientID, index)}
		}
		return nil, err
	}
	return f, nil
}

// Clear removes all chunk state for (session, client). Safe to call on a
// pair with no stored chunks.
func (s *ChunkStore) Clear(sessionID, clientID string) error {
	l := s.lockFor(sessionID, clientID)
	l.Lock()
	defer l.Unlock()

	if err := os.RemoveAll(s.pairDir(sessionID, clientID)); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	// Drop the session dir if this was the last client.
	_ = os.Remove(filepath.Join(s.root, sessionID))
	return nil
}

// ClearSession removes chunk state for every client of a session.
func (s *ChunkStore) ClearSession(sessionID string) error {
	clients, err := s.Clients(sessionID)
	if err != nil {
		return err
	}
	for _, c := range clients {
		if err := s.Clear(sessionID, c); err != nil {
			return err
		}
	}
	return nil
}

// Clients returns the client IDs with stored chunks for a session.
func (s *ChunkStore) Clients(sessionID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session chunk dir: %w", err)
	}
	var clients []string
	for _, e := range entries {
		if e.IsDir() {
			clients = append(clients, e.Name())
		}
	}
	return clients, nil
}

// NextIndex returns the first gap in a sorted index sequence, which is the
// next index the client should upload.
func NextIndex(sorted []int) int {
	next := 0
	for _, n := range sorted {
		if n != next {
			break
		}
		next++
	}
	return next
}

// writeFileAtomic writes data to path via a temp file and rename so a
// crashed write never leaves a half-written chunk behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
