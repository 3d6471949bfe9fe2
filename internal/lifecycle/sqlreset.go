package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"
)

// SQLReset wipes service state by running every .sql file in dir, in
// lexical order, against the services' database.
type SQLReset struct {
	db  *sql.DB
	dir string
}

func NewSQLReset(db *sql.DB, dir string) *SQLReset {
	return &SQLReset{db: db, dir: dir}
}

// OpenSQLReset opens a Postgres handle for dsn. The connection is only
// established on first use.
func OpenSQLReset(dsn, dir string) (*SQLReset, error) {
	if dir == "" {
		return nil, fmt.Errorf("reset_dir is required with database_url")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLReset(db, dir), nil
}

func (r *SQLReset) Reset(ctx context.Context) error {
	files, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	var sqlFiles []string
	for _, f := range files {
		if !f.IsDir() && filepath.Ext(f.Name()) == ".sql" {
			sqlFiles = append(sqlFiles, f.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, file := range sqlFiles {
		content, err := os.ReadFile(filepath.Join(r.dir, file))
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

func (r *SQLReset) Close() error {
	return r.db.Close()
}
