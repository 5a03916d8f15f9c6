// Package ember is an embeddable full-text search and document-store
// engine: write-ahead logged ingestion, segmented on-disk storage,
// MVCC snapshot isolation for readers, and a boolean/term/phrase/range/
// prefix/wildcard/fuzzy query surface scored by BM25 or TF-IDF.
//
// Engine is the package's single entry point. Open builds one from a
// Config; every other public type (Document, Field, the Query
// constructors) exists to get data in and queries out of it.
package ember

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/emberdb/ember/index"
	"github.com/emberdb/ember/search"
	"github.com/emberdb/ember/store"
	"github.com/emberdb/ember/wal"
)

// Engine is an open instance of the embedded store. Safe for concurrent
// use: writes serialize internally on the underlying index.Writer, and
// any number of searches may run concurrently against published
// snapshots.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	dir    store.Directory
	lock   store.Lock
	writer *index.Writer
	pool   *index.ReaderPool
	cache  *search.Cache
}

// Open creates or reopens an engine rooted at cfg.StoragePath, replaying
// every entry of the write-ahead log and committing the result before
// returning. Log files are not removed afterwards, so each Open replays
// the whole log.
func Open(cfg Config) (*Engine, error) {
	if cfg.Analyzer == nil {
		cfg.Analyzer = Simple
	}
	logger := newLogger(cfg).Named("ember")

	dir, err := store.NewFSDirectory(cfg.StoragePath)
	if err != nil {
		return nil, Wrap(KindIo, "open storage directory", err)
	}
	lock, err := store.LockDirectory(cfg.StoragePath)
	if err != nil {
		return nil, Wrap(KindIo, "acquire directory lock", err)
	}

	walDir := filepath.Join(cfg.StoragePath, "wal")
	writer, err := index.NewWriter(index.WriterConfig{
		Dir:            dir,
		WALDir:         walDir,
		BatchSize:      cfg.WriterBatchSize,
		FlushThreshold: cfg.BufferPoolSize << 10,
		MaxSegmentSize: cfg.WriterMaxSegmentSize,
		MergePolicy: index.MergePolicy{
			Kind:           index.MergePolicyKind(cfg.MergePolicyKind),
			MaxSegmentSize: cfg.WriterMaxSegmentSize,
		},
		WALSyncMode:     wal2sync(cfg.WALSyncMode),
		ReaderCacheSize: cfg.CacheSize,
		Logger:          logger,
	})
	if err != nil {
		_ = lock.Release()
		return nil, Wrap(KindIo, "open writer", err)
	}

	if err := index.Recover(writer, walDir); err != nil {
		_ = writer.Close()
		_ = lock.Release()
		return nil, Wrap(KindIo, "replay write-ahead log", err)
	}
	if err := writer.Commit(); err != nil {
		_ = writer.Close()
		_ = lock.Release()
		return nil, Wrap(KindIo, "commit after recovery", err)
	}

	pool := index.NewReaderPool(dir, writer.Controller(), cfg.CacheSize, cfg.MaxReaders, logger)
	cache, err := search.NewCache(cfg.CacheSize)
	if err != nil {
		_ = writer.Close()
		_ = lock.Release()
		return nil, Wrap(KindInternal, "build query cache", err)
	}

	return &Engine{
		cfg:    cfg,
		logger: logger,
		dir:    dir,
		lock:   lock,
		writer: writer,
		pool:   pool,
		cache:  cache,
	}, nil
}

func wal2sync(m SyncMode) wal.SyncMode { return wal.SyncMode(m) }

// IsolationLevel is the transaction isolation guarantee a Txn requests.
type IsolationLevel = index.IsolationLevel

const (
	ReadCommitted  = index.ReadCommitted
	RepeatableRead = index.RepeatableRead
	Serializable   = index.Serializable
)

// Close flushes and fsyncs any pending writes, releases the directory
// lock, and closes every pooled reader.
func (e *Engine) Close() error {
	if err := e.writer.Commit(); err != nil {
		e.logger.Warn("commit on close failed", zap.Error(err))
	}
	e.pool.Close()
	err := e.writer.Close()
	if rerr := e.lock.Release(); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return Wrap(KindIo, "close engine", err)
	}
	return nil
}

// Add appends doc to the write-ahead log and stages it for indexing. The
// document is durable once a subsequent Commit returns without error.
func (e *Engine) Add(doc *Document) error {
	internal, err := e.toInternalDoc(doc)
	if err != nil {
		return err
	}
	if err := e.writer.Add(internal); err != nil {
		return Wrap(KindIo, "add document", err)
	}
	e.cache.Clear()
	return nil
}

// Delete marks id removed. The document stops matching queries as soon
// as the next snapshot is published (immediately, since Delete publishes
// one itself), regardless of whether Commit has been called.
func (e *Engine) Delete(id DocId) error {
	if err := e.writer.Delete(uint64(id)); err != nil {
		return Wrap(KindIo, "delete document", err)
	}
	e.cache.Clear()
	return nil
}

// Flush finalizes any staged documents into an immutable segment and
// publishes a new snapshot, without forcing a WAL fsync.
func (e *Engine) Flush() error {
	if err := e.writer.Flush(); err != nil {
		return Wrap(KindIo, "flush", err)
	}
	e.cache.Clear()
	return nil
}

// Commit flushes staged documents and fsyncs the write-ahead log: the
// durability boundary callers should wait on before treating writes as
// surviving a crash.
func (e *Engine) Commit() error {
	if err := e.writer.Commit(); err != nil {
		return Wrap(KindIo, "commit", err)
	}
	e.cache.Clear()
	return nil
}

// Compact rewrites every segment holding at least one deleted document
// into a fresh, delete-free segment, reclaiming space. Safe to call
// concurrently with reads; published snapshots already acquired keep
// seeing the segments they were opened against until released.
func (e *Engine) Compact() error {
	if err := e.writer.Compact(); err != nil {
		return Wrap(KindIo, "compact", err)
	}
	e.cache.Clear()
	return nil
}

// SearchOptions configures one Search call.
type SearchOptions struct {
	Limit              int
	Offset             int
	Score              ScoreKind
	Validate           bool
	MaxDepth           int
	MaxClauses         int
	BanLeadingWildcard bool
	Timeout            time.Duration
	UseCache           bool
}

// ScoreKind selects the scoring kernel Search ranks hits with.
type ScoreKind uint8

const (
	ScoreBM25  ScoreKind = ScoreKind(search.ScoreBM25)
	ScoreTFIDF ScoreKind = ScoreKind(search.ScoreTFIDF)
	ScoreUnit  ScoreKind = ScoreKind(search.ScoreUnit)
)

// SearchHit is one scored result: the id of the matching document and
// its score under the configured kernel.
type SearchHit struct {
	ID    DocId
	Score float64
}

// SearchResult is the outcome of a Search call.
type SearchResult struct {
	Hits            []SearchHit
	TotalCandidates int
	MaxScore        float64
	ElapsedMillis   int64
}

// Search evaluates q against the engine's current snapshot and returns
// the top Limit hits ordered by descending score.
func (e *Engine) Search(q Query, opts SearchOptions) (*SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	r := e.pool.Acquire()
	defer e.pool.Release(r)

	// The snapshot version is folded into the cache key: snapshots that a
	// background merge publishes do not clear the cache.
	var cacheKey uint64
	if opts.UseCache {
		cacheKey = search.Key(q, opts.Limit, opts.Offset) ^ r.Snapshot.Version
		if cached, ok := e.cache.Get(cacheKey); ok {
			return fromSearchResult(cached), nil
		}
	}

	result, err := search.Execute(r, q, search.Options{
		Limit:              opts.Limit,
		Offset:             opts.Offset,
		ScoreKind:          search.Kind(opts.Score),
		Validate:           opts.Validate,
		MaxDepth:           opts.MaxDepth,
		MaxClauses:         opts.MaxClauses,
		BanLeadingWildcard: opts.BanLeadingWildcard,
		Timeout:            opts.Timeout,
	})
	if err != nil {
		if opts.Validate {
			return nil, Wrap(KindUnsupportedQuery, "invalid query", err)
		}
		return nil, Wrap(KindInternal, "search", err)
	}
	if opts.UseCache {
		e.cache.Put(cacheKey, result)
	}
	return fromSearchResult(result), nil
}

func fromSearchResult(r *search.Result) *SearchResult {
	hits := make([]SearchHit, len(r.Hits))
	for i, h := range r.Hits {
		hits[i] = SearchHit{ID: DocId(h.DocID), Score: h.Score}
	}
	return &SearchResult{
		Hits:            hits,
		TotalCandidates: r.TotalCandidates,
		MaxScore:        r.MaxScore,
		ElapsedMillis:   r.ElapsedMillis,
	}
}

// Txn groups a sequence of Add/Delete calls against a fixed read
// snapshot, with optional serializable conflict detection on Commit.
// Unlike Engine's own Add/Delete (which publish immediately), a Txn
// buffers its writes in memory: they are only issued against the
// underlying Writer when Commit succeeds. Rollback (or an error
// propagated through WithTransaction) discards the buffer untouched, so
// the engine never observes a rolled-back transaction's documents.
type Txn struct {
	engine *Engine
	inner  *index.Txn
	ops    []txnOp
	done   bool
}

// txnOp is one buffered write: either add (doc set, id zero) or delete
// (id set, doc nil).
type txnOp struct {
	doc *Document
	id  DocId
	del bool
}

// BeginTxn starts a transaction at the given isolation level against the
// engine's current MVCC version. Writes issued through the returned Txn
// are held in memory until Commit.
func (e *Engine) BeginTxn(isolation IsolationLevel) *Txn {
	return &Txn{engine: e, inner: e.writer.Controller().NewTxn(isolation)}
}

// Add buffers doc for indexing; it is not sent to the engine until
// Commit.
func (t *Txn) Add(doc *Document) error {
	if t.done {
		return Wrap(KindInvalidState, "transaction add", errors.New("transaction already finished"))
	}
	t.ops = append(t.ops, txnOp{doc: doc})
	return nil
}

// Delete buffers removal of id; it is not sent to the engine until
// Commit.
func (t *Txn) Delete(id DocId) error {
	if t.done {
		return Wrap(KindInvalidState, "transaction delete", errors.New("transaction already finished"))
	}
	t.ops = append(t.ops, txnOp{id: id, del: true})
	return nil
}

// Read records id in the transaction's read set (Serializable isolation
// only) so Commit can detect a conflicting concurrent write. It does not
// look up or return the document.
func (t *Txn) Read(id DocId) {
	t.inner.RecordRead(uint64(id))
}

// Commit validates the transaction's read set (Serializable only) and,
// if it still holds, applies every buffered Add/Delete to the engine in
// issue order before flushing and fsyncing the write-ahead log. No
// buffered operation reaches the engine if validation fails.
func (t *Txn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.inner.Finish()

	if err := t.inner.Validate(); err != nil {
		return Wrap(KindInvalidState, "transaction commit", err)
	}
	for _, op := range t.ops {
		var err error
		if op.del {
			err = t.engine.Delete(op.id)
		} else {
			err = t.engine.Add(op.doc)
		}
		if err != nil {
			return Wrap(KindInvalidState, "transaction commit", err)
		}
	}
	return t.engine.Commit()
}

// Rollback discards every buffered Add/Delete and releases the
// transaction's MVCC bookkeeping; nothing the transaction issued ever
// reaches the engine.
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	t.done = true
	t.ops = nil
	t.inner.Finish()
}

// WithTransaction runs fn against a new transaction at the given
// isolation level, committing on a nil error and rolling back otherwise
// (including when fn panics, in which case the panic is re-raised after
// rollback). This is the closure-based equivalent of BeginTxn/Commit/
// Rollback for callers who want rollback-on-error handled for them.
func WithTransaction[T any](e *Engine, isolation IsolationLevel, fn func(*Txn) (T, error)) (T, error) {
	txn := e.BeginTxn(isolation)
	committed := false
	defer func() {
		if !committed {
			txn.Rollback()
		}
	}()

	result, err := fn(txn)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := txn.Commit(); err != nil {
		var zero T
		return zero, err
	}
	committed = true
	return result, nil
}

// toInternalDoc translates a public Document into the index package's
// internal Doc representation, running the configured Analyzer over
// every FieldText value to produce its token stream.
func (e *Engine) toInternalDoc(doc *Document) (*index.Doc, error) {
	if doc == nil {
		return nil, Wrap(KindInvalidArgument, "add document", errors.New("nil document"))
	}
	fields := make([]index.FieldValue, len(doc.Fields))
	for i, f := range doc.Fields {
		fields[i] = index.FieldValue{
			Name:   f.Name,
			Kind:   index.FieldKind(f.Kind),
			Stored: f.Stored(),
		}
		switch f.Kind {
		case FieldText:
			fields[i].Text = f.Text()
			fields[i].Tokens = toInternalTokens(e.cfg.Analyzer(f.Text()))
		case FieldNumber:
			fields[i].Number = f.Number()
		case FieldDate:
			fields[i].DateUnixNano = f.Date().UnixNano()
		case FieldBool:
			fields[i].Bool = f.Bool()
		}
	}
	return &index.Doc{ID: uint64(doc.ID), Fields: fields}, nil
}

func toInternalTokens(stream TokenStream) []index.Token {
	out := make([]index.Token, len(stream))
	for i, t := range stream {
		out[i] = index.Token{Term: t.Term, Position: t.Position}
	}
	return out
}
