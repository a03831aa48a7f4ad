package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"lpsn-harvester/models"
)

type PostgresDB struct {
	DB *sql.DB
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{DB: db}
	if err := pgDB.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pgDB, nil
}

func (p *PostgresDB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS species_sequences (
            id SERIAL PRIMARY KEY,
            url TEXT UNIQUE NOT NULL,
            specie_name TEXT NOT NULL,
            sequence_name TEXT,
            rna_sequence TEXT,
            fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS unfetchable_species (
            id SERIAL PRIMARY KEY,
            url TEXT UNIQUE NOT NULL,
            attempts INTEGER DEFAULT 1,
            last_attempt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS subspecies_links (
            id SERIAL PRIMARY KEY,
            href TEXT UNIQUE NOT NULL,
            seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_species_sequences_name ON species_sequences(specie_name)`,
	}

	for _, query := range queries {
		if _, err := p.DB.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

// SaveResults upserts a run's records, failures and subspecies hrefs in one
// transaction. A species that now downloads is removed from unfetchable_species.
func (p *PostgresDB) SaveResults(ctx context.Context, table *models.ResultTable) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveRecords(ctx, tx, table.Records); err != nil {
		return err
	}
	if err := execEach(ctx, tx, `
        INSERT INTO unfetchable_species (url)
        VALUES ($1)
        ON CONFLICT (url) DO UPDATE SET
            attempts = unfetchable_species.attempts + 1,
            last_attempt = CURRENT_TIMESTAMP`, table.Failed); err != nil {
		return fmt.Errorf("failed to save unfetchable species: %w", err)
	}
	if err := execEach(ctx, tx, `
        INSERT INTO subspecies_links (href)
        VALUES ($1)
        ON CONFLICT (href) DO UPDATE SET seen_at = CURRENT_TIMESTAMP`, table.Subspecies); err != nil {
		return fmt.Errorf("failed to save subspecies links: %w", err)
	}

	return tx.Commit()
}

func saveRecords(ctx context.Context, tx *sql.Tx, records []models.SequenceRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO species_sequences (url, specie_name, sequence_name, rna_sequence)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (url) DO UPDATE SET
            specie_name = EXCLUDED.specie_name,
            sequence_name = EXCLUDED.sequence_name,
            rna_sequence = EXCLUDED.rna_sequence,
            fetched_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	cleared, err := tx.PrepareContext(ctx, `DELETE FROM unfetchable_species WHERE url = $1`)
	if err != nil {
		return err
	}
	defer cleared.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.URL, r.SpeciesName, r.SequenceName, r.RNASequence); err != nil {
			return fmt.Errorf("failed to save %s: %w", r.URL, err)
		}
		if _, err := cleared.ExecContext(ctx, r.URL); err != nil {
			return err
		}
	}

	return nil
}

func execEach(ctx context.Context, tx *sql.Tx, query string, values []string) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, v); err != nil {
			return err
		}
	}

	return nil
}

// GetSequence returns the stored record for a species URL.
func (p *PostgresDB) GetSequence(ctx context.Context, url string) (*models.SequenceRecord, bool, error) {
	var r models.SequenceRecord
	err := p.DB.QueryRowContext(ctx,
		`SELECT url, specie_name, sequence_name, rna_sequence FROM species_sequences WHERE url = $1`, url,
	).Scan(&r.URL, &r.SpeciesName, &r.SequenceName, &r.RNASequence)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

// UnfetchableURLs lists every species URL that has never produced a record.
func (p *PostgresDB) UnfetchableURLs(ctx context.Context) ([]string, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT url FROM unfetchable_species ORDER BY url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}

	return urls, rows.Err()
}

// Write lets the database act as an export sink.
func (p *PostgresDB) Write(ctx context.Context, table *models.ResultTable) error {
	return p.SaveResults(ctx, table)
}

func (p *PostgresDB) Close() error {
	return p.DB.Close()
}
