// Package offersql is a modernc.org/sqlite-backed OfferRecord/OfferMetadata
// store, grounded in the teacher's aperturedb package: a thin BaseDB wrapper
// around database/sql, hand-written SQL in place of aperturedb's
// sqlc-generated Querier (no code generation step is available here), and
// the same restrict-on-delete referential integrity the schema calls for.
package offersql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/bitshock-src/switchgear/internal/core/offerprovider"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS offer_metadata (
	id          TEXT NOT NULL,
	partition   TEXT NOT NULL,
	metadata    TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (partition, id)
);

CREATE TABLE IF NOT EXISTS offer_record (
	id           TEXT NOT NULL,
	partition    TEXT NOT NULL,
	max_sendable INTEGER NOT NULL,
	min_sendable INTEGER NOT NULL,
	metadata_id  TEXT NOT NULL,
	timestamp    TEXT NOT NULL,
	expires      TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (partition, id),
	FOREIGN KEY (partition, metadata_id)
		REFERENCES offer_metadata (partition, id)
		ON DELETE RESTRICT
);
`

// Store is a sqlite-backed OfferRecord/OfferMetadata store.
type Store struct {
	db *sql.DB
}

var (
	_ offerprovider.RecordStore   = (*Store)(nil)
	_ offerprovider.MetadataStore = (*Store)(nil)
)

// Open opens (creating if necessary) a sqlite database at dsn and applies
// the schema. A single connection is kept open: sqlite serialises writers
// at the file level anyway, and a single *sql.DB connection keeps
// session-local PRAGMAs (foreign_keys) in effect for every statement.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// storedMetadata is the JSON shape persisted in offer_metadata.metadata; it
// mirrors api.OfferMetadata without duplicating the id/partition columns.
type storedMetadata struct {
	Text       string                         `json:"text"`
	LongText   string                         `json:"longText,omitempty"`
	Image      *api.OfferMetadataImage        `json:"image,omitempty"`
	Identifier *api.OfferMetadataIdentifier   `json:"identifier,omitempty"`
}

// GetMetadata implements offerprovider.MetadataStore.
func (s *Store) GetMetadata(ctx context.Context, partition string,
	id uuid.UUID) (*api.OfferMetadata, error) {

	row := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM offer_metadata WHERE partition = ? AND id = ?`,
		partition, id.String())

	var raw string
	switch err := row.Scan(&raw); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("loading offer metadata: %w", err)
	}

	var stored storedMetadata
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decoding offer metadata: %w", err)
	}

	return &api.OfferMetadata{
		ID:         id,
		Partition:  partition,
		Text:       stored.Text,
		LongText:   stored.LongText,
		Image:      stored.Image,
		Identifier: stored.Identifier,
	}, nil
}

// PutMetadata inserts or replaces a metadata row.
func (s *Store) PutMetadata(ctx context.Context, md api.OfferMetadata) error {
	stored := storedMetadata{
		Text:       md.Text,
		LongText:   md.LongText,
		Image:      md.Image,
		Identifier: md.Identifier,
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding offer metadata: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offer_metadata (id, partition, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (partition, id) DO UPDATE SET
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		md.ID.String(), md.Partition, string(encoded), now, now)
	if err != nil {
		return fmt.Errorf("storing offer metadata: %w", err)
	}
	return nil
}

// DeleteMetadata removes a metadata row. The schema's ON DELETE RESTRICT
// foreign key makes this fail when any offer_record still references it,
// which DeleteMetadata surfaces as ErrMetadataReferenced.
func (s *Store) DeleteMetadata(ctx context.Context, partition string, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM offer_metadata WHERE partition = ? AND id = ?`,
		partition, id.String())
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrMetadataReferenced, partition, id)
		}
		return fmt.Errorf("deleting offer metadata: %w", err)
	}
	return nil
}

// ErrMetadataReferenced is returned by DeleteMetadata when an offer_record
// still points at the metadata row.
var ErrMetadataReferenced = errors.New("offer metadata still referenced by a record")

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// GetRecord implements offerprovider.RecordStore.
func (s *Store) GetRecord(ctx context.Context, partition string,
	id uuid.UUID) (*api.OfferRecord, error) {

	row := s.db.QueryRowContext(ctx, `
		SELECT max_sendable, min_sendable, metadata_id, timestamp, expires
		FROM offer_record WHERE partition = ? AND id = ?`,
		partition, id.String())

	var (
		maxSendable, minSendable int64
		metadataIDStr, tsStr     string
		expiresStr               sql.NullString
	)
	switch err := row.Scan(&maxSendable, &minSendable, &metadataIDStr,
		&tsStr, &expiresStr); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("loading offer record: %w", err)
	}

	metadataID, err := uuid.Parse(metadataIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing metadata id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return nil, fmt.Errorf("parsing offer record timestamp: %w", err)
	}

	var expires *time.Time
	if expiresStr.Valid {
		parsed, err := time.Parse(time.RFC3339Nano, expiresStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing offer record expiry: %w", err)
		}
		expires = &parsed
	}

	return &api.OfferRecord{
		ID:          id,
		Partition:   partition,
		MinSendable: uint64(minSendable),
		MaxSendable: uint64(maxSendable),
		MetadataID:  metadataID,
		Timestamp:   ts,
		Expires:     expires,
	}, nil
}

// PutRecord inserts or replaces a record row.
func (s *Store) PutRecord(ctx context.Context, record api.OfferRecord) error {
	var expires any
	if record.Expires != nil {
		expires = record.Expires.UTC().Format(time.RFC3339Nano)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offer_record (id, partition, max_sendable, min_sendable,
			metadata_id, timestamp, expires, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (partition, id) DO UPDATE SET
			max_sendable = excluded.max_sendable,
			min_sendable = excluded.min_sendable,
			metadata_id = excluded.metadata_id,
			timestamp = excluded.timestamp,
			expires = excluded.expires,
			updated_at = excluded.updated_at`,
		record.ID.String(), record.Partition, int64(record.MaxSendable),
		int64(record.MinSendable), record.MetadataID.String(),
		record.Timestamp.UTC().Format(time.RFC3339Nano), expires, now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: metadata %s not found in partition %s",
				ErrMetadataMissing, record.MetadataID, record.Partition)
		}
		return fmt.Errorf("storing offer record: %w", err)
	}
	return nil
}

// ErrMetadataMissing is returned by PutRecord when MetadataID does not name
// an existing offer_metadata row in the same partition.
var ErrMetadataMissing = errors.New("offer record references unknown metadata")

// DeleteRecord removes a record row.
func (s *Store) DeleteRecord(ctx context.Context, partition string, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM offer_record WHERE partition = ? AND id = ?`,
		partition, id.String())
	if err != nil {
		return fmt.Errorf("deleting offer record: %w", err)
	}
	return nil
}
