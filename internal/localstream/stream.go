// Package localstream is an embedded SQLite stand-in for the managed stream
// and its batch trigger, used for local runs and end-to-end tests.
package localstream

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"

	perrors "github.com/activitysink/activitysink/internal/errors"
	"github.com/activitysink/activitysink/pkg/types"
)

// Region reported on delivered records.
const Region = "local"

// Stream is a sharded, append-only record log in a single SQLite file.
// Records sharing a partition key always land on the same shard.
type Stream struct {
	db     *sql.DB
	path   string
	shards int
	arn    string
	now    func() time.Time

	mu sync.Mutex
}

// Open opens or creates the stream at path with the given shard count.
// The shard count of an existing file must not change between runs or keys
// would move between shards.
func Open(path string, shards int) (*Stream, error) {
	if shards < 1 {
		return nil, fmt.Errorf("localstream: shard count must be at least 1, got %d", shards)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("localstream: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{createRecordsTableSQL, createRecordsIndexSQL, createCheckpointsTableSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("localstream: failed to initialize schema: %w", err)
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Stream{
		db:     db,
		path:   path,
		shards: shards,
		arn:    "arn:aws:kinesis:" + Region + ":000000000000:stream/" + name,
		now:    time.Now,
	}, nil
}

// ARN returns the synthetic event source ARN stamped on delivered records.
func (s *Stream) ARN() string {
	return s.arn
}

// Shards returns the shard count.
func (s *Stream) Shards() int {
	return s.shards
}

// ShardFor returns the shard a partition key is routed to.
func (s *Stream) ShardFor(partitionKey string) int {
	return int(murmur3.Sum32([]byte(partitionKey)) % uint32(s.shards))
}

// Submit appends a record. It satisfies the producer's channel contract.
func (s *Stream) Submit(ctx context.Context, partitionKey string, data []byte) error {
	if data == nil {
		data = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (shard, partition_key, data, arrived_at) VALUES (?, ?, ?, ?)`,
		s.ShardFor(partitionKey), partitionKey, data, s.now().UnixMilli())
	if err != nil {
		return perrors.NewChannelError(perrors.CodeSubmitFailed, "append to "+s.path, err)
	}
	return nil
}

// Poll returns up to limit unacknowledged records of shard, oldest first,
// shaped like a delivered trigger batch. Polling does not advance the shard.
func (s *Stream) Poll(ctx context.Context, shard, limit int) (types.StreamEvent, error) {
	if shard < 0 || shard >= s.shards {
		return types.StreamEvent{}, fmt.Errorf("localstream: shard %d out of range [0, %d)", shard, s.shards)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, partition_key, data, arrived_at FROM records
		WHERE shard = ? AND seq > COALESCE((SELECT seq FROM checkpoints WHERE shard = ?), 0)
		ORDER BY seq
		LIMIT ?`, shard, shard, limit)
	if err != nil {
		return types.StreamEvent{}, fmt.Errorf("localstream: poll shard %d: %w", shard, err)
	}
	defer rows.Close()

	ev := types.StreamEvent{Records: []types.StreamRecord{}}
	for rows.Next() {
		var (
			seq       int64
			key       string
			data      []byte
			arrivedAt int64
		)
		if err := rows.Scan(&seq, &key, &data, &arrivedAt); err != nil {
			return types.StreamEvent{}, fmt.Errorf("localstream: scan record: %w", err)
		}

		seqStr := strconv.FormatInt(seq, 10)
		rec := types.NewStreamRecord(s.arn, Region, key, seqStr, data)
		rec.EventID = fmt.Sprintf("shardId-%012d:%s", shard, seqStr)
		rec.Kinesis.ApproximateArrivalTimestamp = float64(arrivedAt) / 1000
		ev.Records = append(ev.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return types.StreamEvent{}, fmt.Errorf("localstream: poll shard %d: %w", shard, err)
	}
	return ev, nil
}

// Ack marks every record of shard up to and including seq as processed.
// A checkpoint never moves backwards.
func (s *Stream) Ack(ctx context.Context, shard int, seq string) error {
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return fmt.Errorf("localstream: invalid sequence number %q: %w", seq, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (shard, seq) VALUES (?, ?)
		ON CONFLICT(shard) DO UPDATE SET seq = MAX(seq, excluded.seq)`, shard, n)
	if err != nil {
		return fmt.Errorf("localstream: ack shard %d: %w", shard, err)
	}
	return nil
}

// Pending returns the number of unacknowledged records on shard.
func (s *Stream) Pending(ctx context.Context, shard int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records
		WHERE shard = ? AND seq > COALESCE((SELECT seq FROM checkpoints WHERE shard = ?), 0)`,
		shard, shard).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("localstream: count pending: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Stream) Close() error {
	return s.db.Close()
}
