package localstream

// createRecordsTableSQL holds every submitted record. seq is global and
// strictly increasing, so ordering within a shard follows submission order.
const createRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS records (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    shard INTEGER NOT NULL,
    partition_key TEXT NOT NULL,
    data BLOB NOT NULL,
    arrived_at INTEGER NOT NULL
)`

const createRecordsIndexSQL = `CREATE INDEX IF NOT EXISTS idx_records_shard_seq ON records(shard, seq)`

// createCheckpointsTableSQL tracks the last acknowledged sequence number per shard.
const createCheckpointsTableSQL = `
CREATE TABLE IF NOT EXISTS checkpoints (
    shard INTEGER PRIMARY KEY,
    seq INTEGER NOT NULL
)`
