package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
)

// Ext is the recording file extension.
const Ext = ".jsonl"

// JSONL is a Recorder backed by an append-only JSONL file. Each line is one
// JSON-serialized reading. The file is synced after every Append so a crash
// loses at most the reading being written.
//
// Session identity: "<unix-timestamp>-<uuid prefix>.jsonl". Names sort
// chronologically and never collide between concurrent processes.
type JSONL struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	sessionID string
	startedAt time.Time
	sum       summary
	size      int64
}

// NewJSONL creates a new session recording in dir. dir is created with
// os.MkdirAll if it does not exist.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %q: %w", dir, err)
	}
	now := time.Now()
	sessionID := fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString()[:8])
	path := filepath.Join(dir, sessionID+Ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	return &JSONL{
		file:      f,
		path:      path,
		sessionID: sessionID,
		startedAt: now,
	}, nil
}

// Append serializes r as a JSON line, writes it to the file, and syncs.
// It is safe to call from multiple goroutines.
func (j *JSONL) Append(r reading.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	j.size += int64(len(data))
	j.sum.add(r)
	return nil
}

// Close closes the underlying file.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Path returns the recording file path.
func (j *JSONL) Path() string { return j.path }

// Info summarises what has been recorded so far.
func (j *JSONL) Info() SessionInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	info := SessionInfo{
		ID:        j.sessionID,
		Path:      j.path,
		StartedAt: j.startedAt,
		SizeBytes: j.size,
	}
	j.sum.fill(&info)
	return info
}

// LoadFile reads every reading from a recording. Malformed lines are skipped
// and logged. A file with no valid readings returns ErrEmptyRecording.
func LoadFile(path string, log zerolog.Logger) ([]reading.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	defer f.Close()

	var out []reading.Reading
	skipped := 0
	err = scanReadings(f, func(line int, r reading.Reading, perr error) {
		if perr != nil {
			skipped++
			log.Warn().Str("file", path).Int("line", line).Err(perr).Msg("skipping malformed reading")
			return
		}
		out = append(out, r)
	})
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("store: %q: %w", path, ErrEmptyRecording)
	}
	if skipped > 0 {
		log.Info().Str("file", path).Int("loaded", len(out)).Int("skipped", skipped).Msg("recording loaded with errors")
	}
	return out, nil
}

// List returns the recordings in dir, newest first. A missing dir yields no
// recordings and no error.
func List(dir string) ([]SessionInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read dir %q: %w", dir, err)
	}

	var out []SessionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		info, err := describe(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	return out, nil
}

func describe(path string) (SessionInfo, error) {
	id := strings.TrimSuffix(filepath.Base(path), Ext)
	info := SessionInfo{ID: id, Path: path, StartedAt: startedAt(id)}

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("store: open %q: %w", path, err)
	}
	defer f.Close()
	if st, err := f.Stat(); err == nil {
		info.SizeBytes = st.Size()
	}

	var sum summary
	err = scanReadings(f, func(_ int, r reading.Reading, perr error) {
		if perr == nil {
			sum.add(r)
		}
	})
	if err != nil {
		return info, fmt.Errorf("store: read %q: %w", path, err)
	}
	sum.fill(&info)
	return info, nil
}

// startedAt parses the unix prefix of a session ID.
func startedAt(id string) time.Time {
	prefix, _, _ := strings.Cut(id, "-")
	sec, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func scanReadings(f *os.File, fn func(line int, r reading.Reading, err error)) error {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var r reading.Reading
		err := json.Unmarshal(b, &r)
		fn(line, r, err)
	}
	return sc.Err()
}

// EnforceRetention removes the oldest recordings in dir, keeping at most
// maxKeep files. If maxKeep is 0, no files are removed. Returns nil if dir
// does not exist or is empty.
func EnforceRetention(dir string, maxKeep int) error {
	if maxKeep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Ext) {
			files = append(files, e.Name())
		}
	}

	sort.Strings(files) // timestamp-prefixed names sort chronologically

	toDelete := len(files) - maxKeep
	for i := 0; i < toDelete; i++ {
		path := filepath.Join(dir, files[i])
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: remove %q: %w", path, err)
		}
	}
	return nil
}
