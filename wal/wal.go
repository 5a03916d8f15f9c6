// Package wal implements the engine's durability log: a sequence of
// append-only, rotatable files recording Add/Update/Delete/Commit
// operations ahead of their effect on the in-memory index, replayed on
// open to recover any work not yet reflected in a published segment.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Operation is the closed set of WAL entry kinds.
type Operation uint8

const (
	OpAdd Operation = iota
	OpUpdate
	OpDelete
	OpCommit
)

// SyncMode controls when the WAL forces data to stable storage.
type SyncMode uint8

const (
	// SyncImmediate fsyncs after every append.
	SyncImmediate SyncMode = iota
	// SyncBatch fsyncs once accumulated unsynced bytes exceed batchSyncBytes.
	SyncBatch
	// SyncNone leaves fsync entirely to the OS page-cache writeback.
	SyncNone
)

const (
	batchSyncBytes = 1 << 20 // fsync every 1 MiB under SyncBatch
	maxEntrySize   = 10 << 20
	logFilePrefix  = "wal_"
	logFileSuffix  = ".log"
)

// logFileName formats seq into the on-disk log file name: an 8-digit
// zero-padded sequence between the "wal_" prefix and ".log" suffix, e.g.
// wal_00000007.log.
func logFileName(seq uint64) string {
	return logFilePrefix + fmt.Sprintf("%08d", seq) + logFileSuffix
}

// Entry is one WAL record.
type Entry struct {
	Sequence  uint64
	Op        Operation
	Timestamp int64 // unix nanos
	DocID     uint64
	Payload   []byte // serialized document for Add/Update; empty for Delete/Commit
}

func (e Entry) encode() []byte {
	var out [1 + 8 + 8 + 8]byte
	out[0] = byte(e.Op)
	binary.LittleEndian.PutUint64(out[1:9], e.Sequence)
	binary.LittleEndian.PutUint64(out[9:17], uint64(e.Timestamp))
	binary.LittleEndian.PutUint64(out[17:25], e.DocID)
	return append(out[:], e.Payload...)
}

func decodeEntry(buf []byte) (Entry, error) {
	if len(buf) < 25 {
		return Entry{}, errors.New("wal: entry truncated")
	}
	e := Entry{
		Op:        Operation(buf[0]),
		Sequence:  binary.LittleEndian.Uint64(buf[1:9]),
		Timestamp: int64(binary.LittleEndian.Uint64(buf[9:17])),
		DocID:     binary.LittleEndian.Uint64(buf[17:25]),
	}
	if len(buf) > 25 {
		e.Payload = append([]byte(nil), buf[25:]...)
	}
	return e, nil
}

// Log is the append-only write-ahead log. Only one goroutine may call
// Append/Rotate at a time in practice (the index writer's single-writer
// discipline), but Log itself serializes via an internal mutex for
// safety.
type Log struct {
	mu          sync.Mutex
	dir         string
	sync        SyncMode
	logger      *zap.Logger
	f           *os.File
	seq         uint64
	unsynced    int
}

// Open opens (creating if necessary) the WAL directory and starts a new
// log file at the next sequence number after any existing ones.
func Open(dir string, mode SyncMode, logger *zap.Logger) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "wal: create directory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seqs, err := listSequences(dir)
	if err != nil {
		return nil, err
	}
	next := uint64(0)
	if len(seqs) > 0 {
		next = seqs[len(seqs)-1] + 1
	}
	l := &Log{dir: dir, sync: mode, logger: logger.Named("wal"), seq: next}
	if err := l.openFileLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) fileName(seq uint64) string {
	return filepath.Join(l.dir, logFileName(seq))
}

func (l *Log) openFileLocked() error {
	f, err := os.OpenFile(l.fileName(l.seq), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "wal: open log file")
	}
	l.f = f
	return nil
}

// Append writes one entry, applying the configured sync policy.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	payload := e.encode()
	if len(payload) > maxEntrySize {
		return errors.New("wal: entry exceeds maximum size")
	}
	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(payload)))

	if _, err := l.f.Write(lenPrefix[:]); err != nil {
		return errors.Wrap(err, "wal: append length prefix")
	}
	if _, err := l.f.Write(payload); err != nil {
		return errors.Wrap(err, "wal: append entry")
	}
	l.unsynced += 4 + len(payload)

	switch l.sync {
	case SyncImmediate:
		return l.syncLocked()
	case SyncBatch:
		if l.unsynced >= batchSyncBytes {
			return l.syncLocked()
		}
	case SyncNone:
	}
	return nil
}

func (l *Log) syncLocked() error {
	if err := l.f.Sync(); err != nil {
		return errors.Wrap(err, "wal: fsync")
	}
	l.unsynced = 0
	return nil
}

// Sync forces any unsynced bytes to stable storage regardless of mode.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.syncLocked()
}

// Rotate fsyncs the current file and opens a new one at the next
// sequence number, returning the sequence the new file starts at.
func (l *Log) Rotate() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.syncLocked(); err != nil {
		return 0, err
	}
	if err := l.f.Close(); err != nil {
		return 0, errors.Wrap(err, "wal: close rotated file")
	}
	l.seq++
	if err := l.openFileLocked(); err != nil {
		return 0, err
	}
	return l.seq, nil
}

// Close syncs and closes the current log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.syncLocked(); err != nil {
		return err
	}
	return l.f.Close()
}

// DiscardConsumed removes every log file in the directory except the one
// currently open for appends. The engine's open path does not call it.
func (l *Log) DiscardConsumed() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return errors.Wrap(err, "wal: list log directory")
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), logFileSuffix) && e.Name() != filepath.Base(l.fileName(l.seq)) {
			if err := os.Remove(filepath.Join(l.dir, e.Name())); err != nil {
				l.logger.Warn("failed to remove consumed log file", zap.String("file", e.Name()), zap.Error(err))
			}
		}
	}
	return nil
}

func listSequences(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "wal: list directory")
	}
	var seqs []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), logFilePrefix) || !strings.HasSuffix(e.Name(), logFileSuffix) {
			continue
		}
		base := strings.TrimSuffix(strings.TrimPrefix(e.Name(), logFilePrefix), logFileSuffix)
		seq, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

// Recover enumerates every .log file in dir in sequence order and replays
// its well-formed entries, calling apply for each. A deserialization
// failure on a trailing entry is treated as a truncation point rather
// than a fatal error: everything up to the last well-formed entry is
// still recovered.
func Recover(dir string, apply func(Entry) error) error {
	seqs, err := listSequences(dir)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		path := filepath.Join(dir, logFileName(seq))
		if err := recoverFile(path, apply); err != nil {
			return err
		}
	}
	return nil
}

func recoverFile(path string, apply func(Entry) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "wal: read log file")
	}
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			break // truncated length prefix: stop here, not an error
		}
		length := binary.LittleEndian.Uint32(data[pos : pos+4])
		if length > maxEntrySize {
			break // corrupted length, treat as truncation point
		}
		if pos+4+int(length) > len(data) {
			break // truncated entry body
		}
		entry, err := decodeEntry(data[pos+4 : pos+4+int(length)])
		if err != nil {
			break
		}
		if err := apply(entry); err != nil {
			return err
		}
		pos += 4 + int(length)
	}
	return nil
}
