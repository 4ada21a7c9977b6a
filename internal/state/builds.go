package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordBuild stores a completed build. ID and BuiltAt are filled in when empty.
func (s *SQLiteStore) RecordBuild(ctx context.Context, b *Build) error {
	if err := s.ready(); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = generateID()
	}
	if b.BuiltAt.IsZero() {
		b.BuiltAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (id, cache_key, fixture_path, compiler_version, archive_path, digest, units, duration_ms, built_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CacheKey, b.FixturePath, b.CompilerVersion, b.ArchivePath,
		b.Digest, b.Units, b.Duration.Milliseconds(), b.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

// LatestBuild returns the most recent build for a cache key.
func (s *SQLiteStore) LatestBuild(ctx context.Context, cacheKey string) (*Build, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, cache_key, fixture_path, compiler_version, archive_path, digest, units, duration_ms, built_at
		 FROM builds WHERE cache_key = ? ORDER BY built_at DESC, rowid DESC LIMIT 1`,
		cacheKey,
	)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build %s: %w", cacheKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return b, nil
}

// ListBuilds returns all builds, newest first.
func (s *SQLiteStore) ListBuilds(ctx context.Context) ([]*Build, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cache_key, fixture_path, compiler_version, archive_path, digest, units, duration_ms, built_at
		 FROM builds ORDER BY built_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var builds []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*Build, error) {
	b := &Build{}
	var durationMS int64
	err := row.Scan(&b.ID, &b.CacheKey, &b.FixturePath, &b.CompilerVersion,
		&b.ArchivePath, &b.Digest, &b.Units, &durationMS, &b.BuiltAt)
	if err != nil {
		return nil, err
	}
	b.Duration = time.Duration(durationMS) * time.Millisecond
	return b, nil
}
