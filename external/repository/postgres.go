package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxseedlab/aivideoplayer/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateJob(ctx context.Context, input repository.CreateJobInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcription_jobs (id, filename, file_size_bytes, target_lang, started_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		input.ID, input.Filename, input.FileSizeBytes, input.TargetLang, input.StartedAt, string(repository.JobStatusProcessing))
	return err
}

func (r *PostgresRepository) FinishJob(ctx context.Context, input repository.FinishJobInput) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transcription_jobs
		 SET status = $2, language = $3, segment_count = $4, translation_errors = $5, error_message = $6, ended_at = $7
		 WHERE id = $1`,
		input.ID, string(input.Status), input.Language, input.SegmentCount, input.TranslationErrors, input.ErrorMessage, input.EndedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", input.ID)
	}
	return nil
}

func (r *PostgresRepository) GetJob(ctx context.Context, id string) (*repository.Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id::text, filename, file_size_bytes, target_lang, language, status::text, segment_count,
		        translation_errors, error_message, started_at, ended_at
		 FROM transcription_jobs WHERE id = $1`,
		id)
	var j repository.Job
	var status string
	err := row.Scan(&j.ID, &j.Filename, &j.FileSizeBytes, &j.TargetLang, &j.Language, &status,
		&j.SegmentCount, &j.TranslationErrors, &j.ErrorMessage, &j.StartedAt, &j.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	j.Status = repository.JobStatus(status)
	return &j, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
