package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MigrationScript is the combined SQL of every migration file, in order.
type MigrationScript struct {
	Files []string
	SQL   string
}

// CombineMigrations reads every .sql file in fsys, orders them by their
// numeric prefix ("0002-create-users.sql" sorts before "0010-...") and joins
// them into one script, each file preceded by a "-- File: name" header.
func CombineMigrations(fsys fs.FS) (*MigrationScript, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		pi, pj := migrationPrefix(files[i]), migrationPrefix(files[j])
		if pi != pj {
			return pi < pj
		}
		return files[i] < files[j]
	})

	var b strings.Builder
	for _, name := range files {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		fmt.Fprintf(&b, "-- File: %s\n%s\n\n", name, content)
	}

	return &MigrationScript{Files: files, SQL: b.String()}, nil
}

func migrationPrefix(name string) int {
	prefix, _, _ := strings.Cut(name, "-")
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// WriteFile saves the combined script, replacing any existing file.
func (s *MigrationScript) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create migration output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(s.SQL), 0o644); err != nil {
		return fmt.Errorf("failed to write combined migration: %w", err)
	}
	return nil
}

// RunMigrations executes the combined script in a single transaction.
// Nothing is applied if any statement fails.
func RunMigrations(ctx context.Context, db *sql.DB, script *MigrationScript) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, script.SQL); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to execute migrations: %w (rollback failed: %v)", err, rbErr)
		}
		return fmt.Errorf("failed to execute migrations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	return nil
}

// MigrateDir combines the migrations under dir and runs them.
func MigrateDir(ctx context.Context, db *sql.DB, dir string) (*MigrationScript, error) {
	script, err := CombineMigrations(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db, script); err != nil {
		return nil, err
	}
	return script, nil
}
