// Package chainsync drives the synchronizer state machine (§4.F): it takes
// batches of compact blocks, trial-decrypts them, folds the resulting
// commitments into each pool's note-commitment tree, cross-checks revealed
// nullifiers against notes the wallet holds, and checkpoints the result so
// a restart can resume without replaying the chain from genesis.
package chainsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warpsync/core/pkg/types"
)

// Common store errors.
var (
	ErrNotFound     = errors.New("chainsync: not found")
	ErrDBConnection = errors.New("chainsync: database connection error")
)

// Checkpoint is the durable unit the synchronizer rewinds to on restart or
// on Rewind: a block height, its hash and time, each shielded pool's tree
// frontier, and the nullifier-set epoch it was computed against (§4.F).
type Checkpoint struct {
	Height          uint64
	BlockHash       types.Hash
	Timestamp       uint64
	SaplingFrontier []byte
	OrchardFrontier []byte
	NullifierEpoch  uint64
}

// ReceivedNote is one shielded note the decrypter found for the wallet,
// ready to be persisted against the position add_nodes assigned it.
type ReceivedNote struct {
	Account        uint32
	Pool           types.Pool
	Position       uint64
	TxHash         types.Hash
	Value          uint64
	Nullifier      types.Hash
	ReceivedHeight uint64
}

// WalletStore is the single persistence collaborator the synchronizer and
// the UTXO fetcher both depend on (§6: "Wallet store"). A PostgresWalletStore
// is the only shipped implementation, but the interface is what every
// caller in this module programs against.
type WalletStore interface {
	// StoreBlock records a processed block's checkpoint, replacing any
	// checkpoint at an equal or greater height (a restart always resumes
	// from the single latest checkpoint row).
	StoreBlock(ctx context.Context, cp Checkpoint) error

	// StoreReceivedNote persists a decrypted note and returns the id
	// mark_spent later references.
	StoreReceivedNote(ctx context.Context, note ReceivedNote) (noteID uint64, err error)

	// MarkSpent records that noteID's nullifier was seen spent at height.
	MarkSpent(ctx context.Context, noteID uint64, spentHeight uint64) error

	// TrimToHeight discards checkpoints, received notes and spent-marks
	// above height, the torn-write / rewind recovery primitive (§4.F).
	TrimToHeight(ctx context.Context, height uint64) error

	// LoadCheckpoint returns the latest checkpoint, or ok=false if the
	// wallet has never synced anything.
	LoadCheckpoint(ctx context.Context) (cp Checkpoint, ok bool, err error)

	// FindByNullifier returns the note id a nullifier was derived from,
	// used for the spend cross-check (§4.F), or ok=false if untracked.
	FindByNullifier(ctx context.Context, nullifier types.Hash) (noteID uint64, ok bool, err error)

	// GetUnspentReceivedNotes and GetTransparentAddress satisfy
	// utxo.NoteStore directly: the planner's UTXO fetcher and the
	// synchronizer share one store.
	GetUnspentReceivedNotes(ctx context.Context, account uint32, pool types.Pool, checkpointHeight uint64) ([]types.UTXO, error)
	GetTransparentAddress(ctx context.Context, account uint32) (addr string, ok bool, err error)
}

// PostgresWalletStore implements WalletStore on PostgreSQL via pgx.
type PostgresWalletStore struct {
	pool *pgxpool.Pool
}

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "warpsync",
		Database: "warpsync",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// NewPostgresWalletStore dials cfg and pings it before returning.
func NewPostgresWalletStore(ctx context.Context, cfg *Config) (*PostgresWalletStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	return &PostgresWalletStore{pool: pool}, nil
}

func (s *PostgresWalletStore) Close() {
	s.pool.Close()
}

func (s *PostgresWalletStore) StoreBlock(ctx context.Context, cp Checkpoint) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chainsync: store checkpoint: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM checkpoints WHERE height > $1`, cp.Height); err != nil {
		return fmt.Errorf("chainsync: store checkpoint: %w", err)
	}
	query := `
		INSERT INTO checkpoints (height, block_hash, timestamp, sapling_frontier, orchard_frontier, nullifier_epoch)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (height) DO UPDATE SET
			block_hash = $2, timestamp = $3, sapling_frontier = $4, orchard_frontier = $5, nullifier_epoch = $6
	`
	_, err = tx.Exec(ctx, query,
		cp.Height, cp.BlockHash[:], cp.Timestamp, cp.SaplingFrontier, cp.OrchardFrontier, cp.NullifierEpoch,
	)
	if err != nil {
		return fmt.Errorf("chainsync: store checkpoint: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresWalletStore) StoreReceivedNote(ctx context.Context, note ReceivedNote) (uint64, error) {
	query := `
		INSERT INTO received_notes (account, pool, position, tx_hash, value, nullifier, received_height, spent_height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		RETURNING id
	`
	var id uint64
	err := s.pool.QueryRow(ctx, query,
		note.Account, uint8(note.Pool), note.Position, note.TxHash[:], note.Value, note.Nullifier[:], note.ReceivedHeight,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("chainsync: store received note: %w", err)
	}
	return id, nil
}

func (s *PostgresWalletStore) MarkSpent(ctx context.Context, noteID uint64, spentHeight uint64) error {
	_, err := s.pool.Exec(ctx, `UPDATE received_notes SET spent_height = $2 WHERE id = $1`, noteID, spentHeight)
	return err
}

func (s *PostgresWalletStore) TrimToHeight(ctx context.Context, height uint64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM checkpoints WHERE height > $1`, height); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM received_notes WHERE received_height > $1`, height); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE received_notes SET spent_height = NULL WHERE spent_height > $1`, height); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresWalletStore) LoadCheckpoint(ctx context.Context) (Checkpoint, bool, error) {
	query := `
		SELECT height, block_hash, timestamp, sapling_frontier, orchard_frontier, nullifier_epoch
		FROM checkpoints ORDER BY height DESC LIMIT 1
	`
	var cp Checkpoint
	var hashBytes []byte
	err := s.pool.QueryRow(ctx, query).Scan(
		&cp.Height, &hashBytes, &cp.Timestamp, &cp.SaplingFrontier, &cp.OrchardFrontier, &cp.NullifierEpoch,
	)
	if err == pgx.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("chainsync: load checkpoint: %w", err)
	}
	copy(cp.BlockHash[:], hashBytes)
	return cp, true, nil
}

func (s *PostgresWalletStore) FindByNullifier(ctx context.Context, nullifier types.Hash) (uint64, bool, error) {
	var id uint64
	err := s.pool.QueryRow(ctx, `SELECT id FROM received_notes WHERE nullifier = $1 AND spent_height IS NULL`, nullifier[:]).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("chainsync: find by nullifier: %w", err)
	}
	return id, true, nil
}

func (s *PostgresWalletStore) GetUnspentReceivedNotes(ctx context.Context, account uint32, pool types.Pool, checkpointHeight uint64) ([]types.UTXO, error) {
	query := `
		SELECT position, value FROM received_notes
		WHERE account = $1 AND pool = $2 AND received_height <= $3
		  AND (spent_height IS NULL OR spent_height > $3)
		ORDER BY position ASC
	`
	rows, err := s.pool.Query(ctx, query, account, uint8(pool), checkpointHeight)
	if err != nil {
		return nil, fmt.Errorf("chainsync: get unspent received notes: %w", err)
	}
	defer rows.Close()

	var utxos []types.UTXO
	for rows.Next() {
		var position, value uint64
		if err := rows.Scan(&position, &value); err != nil {
			return nil, err
		}
		var source types.Source
		if pool == types.PoolSapling {
			source = types.NewSaplingSource(position)
		} else {
			source = types.NewOrchardSource(position)
		}
		utxos = append(utxos, types.UTXO{ID: position, Source: source, Amount: value})
	}
	return utxos, rows.Err()
}

func (s *PostgresWalletStore) GetTransparentAddress(ctx context.Context, account uint32) (string, bool, error) {
	var addr string
	err := s.pool.QueryRow(ctx, `SELECT address FROM transparent_addresses WHERE account = $1`, account).Scan(&addr)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("chainsync: get transparent address: %w", err)
	}
	return addr, true, nil
}
