package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE transcription_job_status AS ENUM ('processing', 'completed', 'failed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS transcription_jobs (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		file_size_bytes BIGINT NOT NULL DEFAULT 0,
		target_lang TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		status transcription_job_status NOT NULL DEFAULT 'processing',
		segment_count INTEGER NOT NULL DEFAULT 0,
		translation_errors INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcription_jobs_started ON transcription_jobs (started_at DESC)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
