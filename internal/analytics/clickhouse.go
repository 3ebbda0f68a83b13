package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cespare/xxhash/v2"

	"github.com/fidde/codesnip/internal/metrics"
)

const (
	defaultBatchSize     = 1000
	defaultFlushInterval = 5 * time.Second
	defaultShutdownWait  = 10 * time.Second
	defaultMaxPending    = 100_000
	maxInsertRetries     = 3

	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	defaultDialTimeout  = 10 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = 1 * time.Second
)

// ErrSinkClosed is returned by Add after Close.
var ErrSinkClosed = errors.New("analytics sink closed")

// ErrBufferFull is returned by Add when the pending buffer is at capacity,
// typically because ClickHouse is unreachable.
var ErrBufferFull = errors.New("analytics buffer full")

// ClickHouseConfig holds ClickHouse connection and batching parameters.
type ClickHouseConfig struct {
	Addr          string
	Database      string
	Username      string
	Password      string
	MaxOpenConns  int
	MaxIdleConns  int
	DialTimeout   time.Duration
	MaxRetries    int
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultClickHouseConfig returns a config for a local server.
func DefaultClickHouseConfig() *ClickHouseConfig {
	return &ClickHouseConfig{
		Addr:          "localhost:9000",
		Database:      "default",
		Username:      "default",
		MaxOpenConns:  defaultMaxOpenConns,
		MaxIdleConns:  defaultMaxIdleConns,
		DialTimeout:   defaultDialTimeout,
		MaxRetries:    defaultMaxRetries,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
	}
}

// Connect opens a ClickHouse connection, retrying with exponential backoff
// until the server answers a ping.
func Connect(ctx context.Context, cfg *ClickHouseConfig) (driver.Conn, error) {
	if cfg == nil {
		cfg = DefaultClickHouseConfig()
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = defaultMaxRetries
	}

	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      cfg.DialTimeout,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	}

	var conn driver.Conn
	var err error
	retryDelay := defaultRetryDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = clickhouse.Open(opts)
		if err == nil {
			if err = conn.Ping(ctx); err == nil {
				return conn, nil
			}
			_ = conn.Close()
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
				retryDelay *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", attempts, err)
}

const snippetViewsDDL = `
	CREATE TABLE IF NOT EXISTS snippet_views (
		snippet_id String,
		viewer_hash UInt64,
		viewed_at DateTime64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(viewed_at)
	ORDER BY (snippet_id, viewed_at)
`

// InitializeSchema creates the snippet_views table if it does not exist.
func InitializeSchema(ctx context.Context, conn driver.Conn) error {
	if err := conn.Exec(ctx, snippetViewsDDL); err != nil {
		return fmt.Errorf("creating table snippet_views: %w", err)
	}
	return nil
}

// insertFunc writes one batch.
type insertFunc func(ctx context.Context, rows []ViewEvent) error

// ClickHouseSink buffers view events and writes them to ClickHouse in
// batches, when the buffer fills up or on a timer.
type ClickHouseSink struct {
	conn   driver.Conn
	insert insertFunc

	mu      sync.Mutex
	pending []ViewEvent
	closed  bool

	// flushMu serializes inserts so batches land in order.
	flushMu sync.Mutex

	batchSize     int
	maxPending    int
	flushInterval time.Duration
	shutdownWait  time.Duration
	retryDelay    time.Duration

	kick      chan struct{}
	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewClickHouseSink connects, creates the schema and starts the flush loop.
func NewClickHouseSink(ctx context.Context, cfg *ClickHouseConfig, logger *slog.Logger) (*ClickHouseSink, error) {
	if cfg == nil {
		cfg = DefaultClickHouseConfig()
	}

	conn, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := InitializeSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s := newSink(nil, cfg.BatchSize, cfg.FlushInterval, logger)
	s.conn = conn
	s.insert = s.insertBatch
	s.start()

	logger.Info("analytics sink connected", "addr", cfg.Addr, "database", cfg.Database)
	return s, nil
}

func newSink(insert insertFunc, batchSize int, flushInterval time.Duration, logger *slog.Logger) *ClickHouseSink {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return &ClickHouseSink{
		insert:        insert,
		batchSize:     batchSize,
		maxPending:    max(defaultMaxPending, batchSize),
		flushInterval: flushInterval,
		shutdownWait:  defaultShutdownWait,
		retryDelay:    100 * time.Millisecond,
		kick:          make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		logger:        logger,
	}
}

func (s *ClickHouseSink) start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Add buffers an event. A full batch wakes the flush loop.
func (s *ClickHouseSink) Add(ev ViewEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if len(s.pending) >= s.maxPending {
		return ErrBufferFull
	}

	s.pending = append(s.pending, ev)
	if len(s.pending) >= s.batchSize {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *ClickHouseSink) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.Flush(context.Background())
		case <-s.kick:
			_ = s.Flush(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Flush writes everything buffered so far. Rows of a batch that still fails
// after retries are dropped and counted.
func (s *ClickHouseSink) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	var errs []error
	for {
		s.mu.Lock()
		n := min(len(s.pending), s.batchSize)
		rows := make([]ViewEvent, n)
		copy(rows, s.pending[:n])
		s.pending = s.pending[n:]
		s.mu.Unlock()

		if n == 0 {
			break
		}

		start := time.Now()
		if err := s.retryInsert(ctx, rows); err != nil {
			metrics.AnalyticsDropped(len(rows))
			s.logger.Error("failed to flush view events", "error", err, "row_count", len(rows))
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("flushed view events",
			"row_count", len(rows),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return errors.Join(errs...)
}

// retryInsert retries with exponential backoff.
func (s *ClickHouseSink) retryInsert(ctx context.Context, rows []ViewEvent) error {
	var err error
	delay := s.retryDelay

	for attempt := 1; attempt <= maxInsertRetries; attempt++ {
		insertCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = s.insert(insertCtx, rows)
		cancel()
		if err == nil {
			return nil
		}

		if attempt < maxInsertRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return fmt.Errorf("insert failed after %d attempts: %w", maxInsertRetries, err)
}

func (s *ClickHouseSink) insertBatch(ctx context.Context, rows []ViewEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO snippet_views")
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := batch.Append(row.SnippetID, ViewerHash(row.ViewerKey), row.At); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

// Pending returns the number of buffered events.
func (s *ClickHouseSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops the flush loop, writes what is left and closes the connection.
func (s *ClickHouseSink) Close(ctx context.Context) error {
	var finalErr error

	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.stopCh)

		shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownWait)
		defer cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-shutdownCtx.Done():
			s.logger.Warn("analytics flush loop did not stop within timeout")
		}

		finalErr = s.Flush(shutdownCtx)
		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				finalErr = errors.Join(finalErr, err)
			}
		}
	})

	return finalErr
}

// ViewerHash is the stored form of a viewer key, so raw client identifiers
// never leave the process.
func ViewerHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

