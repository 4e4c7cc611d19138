package database

import (
	"context"
	"database/sql"
	"fmt"

	"qp-spc/internal/config"

	_ "github.com/lib/pq"
)

// NewPostgresDB 创建PostgreSQL数据库连接
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// schema SPC 表结构（dna_id 主键保证 DNA 记录的条件创建是原子的）
var schema = []string{
	`CREATE TABLE IF NOT EXISTS control_plan_characteristics (
		plan_number    TEXT NOT NULL,
		process_number TEXT NOT NULL,
		item_number    TEXT NOT NULL,
		description    TEXT,
		char_type      TEXT NOT NULL,
		nominal        DOUBLE PRECISION,
		lsl            DOUBLE PRECISION,
		usl            DOUBLE PRECISION,
		lcl            DOUBLE PRECISION,
		cl             DOUBLE PRECISION,
		ucl            DOUBLE PRECISION,
		s_usl          DOUBLE PRECISION,
		units          TEXT,
		sample_size    INTEGER,
		frequency      INTEGER,
		ctq            BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (plan_number, process_number, item_number)
	)`,
	`CREATE TABLE IF NOT EXISTS spc_dna (
		dna_id                  TEXT PRIMARY KEY,
		workstation             TEXT NOT NULL,
		order_number            TEXT NOT NULL,
		process_number          TEXT NOT NULL,
		item_number             TEXT NOT NULL,
		char_type               TEXT NOT NULL,
		lsl                     DOUBLE PRECISION,
		usl                     DOUBLE PRECISION,
		lcl                     DOUBLE PRECISION,
		cl                      DOUBLE PRECISION,
		ucl                     DOUBLE PRECISION,
		s_usl                   DOUBLE PRECISION,
		sample_size             INTEGER,
		frequency               INTEGER,
		check_status            TEXT,
		last_check_at           TIMESTAMPTZ,
		memo                    TEXT,
		image_url               TEXT,
		image_url_latest_sample TEXT,
		created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS spc_samples (
		sample_id   TEXT PRIMARY KEY,
		dna_id      TEXT NOT NULL,
		sampled_at  TIMESTAMPTZ NOT NULL,
		note        TEXT,
		image_url   TEXT,
		exception   BOOLEAN NOT NULL DEFAULT FALSE,
		sample_values JSONB,
		defects     INTEGER,
		sample_size INTEGER,
		mean        DOUBLE PRECISION NOT NULL,
		stddev      DOUBLE PRECISION NOT NULL
	)`,
	// DNA 记录可以存放在 Redis，spc_samples 不能引用 spc_dna
	`ALTER TABLE spc_samples DROP CONSTRAINT IF EXISTS spc_samples_dna_id_fkey`,
	`CREATE INDEX IF NOT EXISTS idx_spc_samples_dna_time ON spc_samples (dna_id, sampled_at DESC)`,
}

// Execer 执行 DDL 的最小接口（*sql.DB 与 *sql.Tx 都满足）
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrate 创建 SPC 所需的表
func Migrate(ctx context.Context, db Execer) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
