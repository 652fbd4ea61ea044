package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names, one per record family (§3). Records are keyed by their
// PDA-style address, so bucket iteration order never matters to protocol
// semantics — only Get/Put by key does.
var (
	BucketProtocolConfig = []byte("protocol_config")
	BucketMarkets        = []byte("markets_by_address")
	BucketEpochs         = []byte("epochs_by_address")
	BucketCommits        = []byte("commits_by_address")
	BucketSignerSets     = []byte("signer_sets_by_address")
	BucketAuditLogs      = []byte("audit_logs_by_address")
)

var allBuckets = [][]byte{
	BucketProtocolConfig,
	BucketMarkets,
	BucketEpochs,
	BucketCommits,
	BucketSignerSets,
	BucketAuditLogs,
}

// DB is the bbolt-backed persistent state store simulating the on-chain
// program's account storage. Values are opaque to DB; callers (protocol
// package) own encoding.
type DB struct {
	networkDir string
	db         *bolt.DB
	manifest   *Manifest
}

// Open opens (or creates) the store for network under datadir, at
// datadir/protocol/<network>/.
func Open(datadir string, network string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if network == "" {
		return nil, fmt.Errorf("network required")
	}

	networkDir := NetworkDir(datadir, network)
	if err := ensureDir(networkDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(networkDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(networkDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{networkDir: networkDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(networkDir)
	if err != nil {
		if os.IsNotExist(err) {
			m = &Manifest{SchemaVersion: SchemaVersionV1, Network: network}
			if werr := writeManifestAtomic(networkDir, m); werr != nil {
				_ = bdb.Close()
				return nil, werr
			}
			d.manifest = m
			return d, nil
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) NetworkDir() string { return d.networkDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

// Get fetches value at key from bucket, returning ok=false if absent.
func (d *DB) Get(bucket []byte, key [32]byte) (value []byte, ok bool, err error) {
	err = d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key[:])
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return value, ok, err
}

// Put writes value at key in bucket inside its own transaction.
func (d *DB) Put(bucket []byte, key [32]byte, value []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key[:], value)
	})
}

// Update runs fn inside a single bbolt read-write transaction. This is the
// primitive every multi-record protocol operation is built on: because
// bbolt serializes all writers, two Update calls that touch the same key
// are totally ordered, which is what gives the store the serializability
// §5 assumes of the host runtime.
func (d *DB) Update(fn func(tx *bolt.Tx) error) error {
	return d.db.Update(fn)
}

// View runs fn inside a read-only transaction.
func (d *DB) View(fn func(tx *bolt.Tx) error) error {
	return d.db.View(fn)
}

// ForEach iterates every key/value pair in bucket in bbolt's key order.
// Used by the audit export tool; protocol operations never rely on
// iteration order since records are addressed by PDA, not position.
func (d *DB) ForEach(bucket []byte, fn func(key [32]byte, value []byte) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var addr [32]byte
			copy(addr[:], k)
			return fn(addr, append([]byte(nil), v...))
		})
	})
}
