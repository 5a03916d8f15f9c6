package ember

import "go.uber.org/zap"

// CompressionKind selects the block compressor used for stored document
// records and the .idx companion block. It is a closed, tagged-variant
// enum rather than a pluggable interface (see spec design notes on
// dynamic dispatch over a small closed set).
type CompressionKind int

const (
	CompressionS2 CompressionKind = iota
	CompressionNone
)

// MergePolicyKind selects which segment merge policy the writer's
// background merger runs.
type MergePolicyKind int

const (
	MergePolicyTiered MergePolicyKind = iota
	MergePolicyLogStructured
)

// SyncMode controls when the WAL fsyncs an appended record.
type SyncMode int

const (
	SyncImmediate SyncMode = iota
	SyncBatch
	SyncNone
)

// Config configures an Engine. Construct one with DefaultConfig and layer
// With* builders on top, mirroring bluge/index.Config's pattern. Loading
// Config from a file (flags, YAML, env) is outside the core's scope; the
// surrounding application is expected to populate this struct itself.
type Config struct {
	StoragePath string

	MemoryLimit           int64
	CacheSize             int
	WriterBatchSize       int
	WriterCommitInterval  int // seconds
	WriterMaxSegmentSize  int64
	MaxReaders            int
	BufferPoolSize        int
	IndexingThreads       int
	CompressionKind       CompressionKind
	MergePolicyKind       MergePolicyKind
	WALSyncMode           SyncMode
	MaxSnapshotVersions   int
	MinSnapshotVersions   int
	PrefixMinLength       int
	MaxConcurrentAnalysis int

	Analyzer Analyzer

	// Ambient logging. Logger, if set, is used verbatim; otherwise
	// LogPath/LogLevel configure a default zap logger (see logging.go).
	Logger   *zap.Logger
	LogPath  string
	LogLevel string
}

// DefaultConfig returns a Config with the reference policy's defaults
// (batch threshold, segment size ceiling, reader pool size, ...) rooted at
// the given base directory.
func DefaultConfig(path string) Config {
	return Config{
		StoragePath:           path,
		MemoryLimit:           512 * 1024 * 1024,
		CacheSize:             1024,
		WriterBatchSize:       1000,
		WriterCommitInterval:  5,
		WriterMaxSegmentSize:  512 * 1024 * 1024,
		MaxReaders:            64,
		BufferPoolSize:        256,
		IndexingThreads:       4,
		CompressionKind:       CompressionS2,
		MergePolicyKind:       MergePolicyTiered,
		WALSyncMode:           SyncBatch,
		MaxSnapshotVersions:   100,
		MinSnapshotVersions:   50,
		PrefixMinLength:       2,
		MaxConcurrentAnalysis: 4,
		Analyzer:              Simple,
	}
}

func (c Config) WithLogger(l *zap.Logger) Config {
	c.Logger = l
	return c
}

func (c Config) WithAnalyzer(a Analyzer) Config {
	c.Analyzer = a
	return c
}

func (c Config) WithCompressionKind(k CompressionKind) Config {
	c.CompressionKind = k
	return c
}

func (c Config) WithMergePolicyKind(k MergePolicyKind) Config {
	c.MergePolicyKind = k
	return c
}

func (c Config) WithWriterBatchSize(n int) Config {
	c.WriterBatchSize = n
	return c
}

func (c Config) WithMaxReaders(n int) Config {
	c.MaxReaders = n
	return c
}

func (c Config) WithWALSyncMode(m SyncMode) Config {
	c.WALSyncMode = m
	return c
}
