package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joescharf/bugs/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const bugColumns = `id, title, description, status, created_at, updated_at`

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access and avoids "database is locked" under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (*models.Bug, error) {
	b := &models.Bug{}
	var status string
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = models.BugStatus(status)
	return b, nil
}

func (s *SQLiteStore) CreateBug(ctx context.Context, bug *models.Bug) error {
	bug.ID = newID()
	now := time.Now().UTC()
	bug.CreatedAt = now
	bug.UpdatedAt = now
	if bug.Status == "" {
		bug.Status = models.BugStatusOpen
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bugs (`+bugColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		bug.ID, bug.Title, bug.Description, string(bug.Status), bug.CreatedAt, bug.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create bug: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bugColumns+` FROM bugs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bugs := []*models.Bug{}
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bug: %w", err)
		}
		bugs = append(bugs, b)
	}
	return bugs, rows.Err()
}

func (s *SQLiteStore) GetBug(ctx context.Context, id string) (*models.Bug, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	b, err := scanBug(s.db.QueryRowContext(ctx,
		`SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bug: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) ReplaceBug(ctx context.Context, bug *models.Bug) error {
	if err := checkID(bug.ID); err != nil {
		return err
	}
	bug.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE bugs SET title=?, description=?, status=?, updated_at=? WHERE id=?`,
		bug.Title, bug.Description, string(bug.Status), bug.UpdatedAt, bug.ID,
	)
	if err != nil {
		return fmt.Errorf("replace bug: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return notFound(bug.ID)
	}

	stored, err := s.GetBug(ctx, bug.ID)
	if err != nil {
		return err
	}
	bug.CreatedAt = stored.CreatedAt
	return nil
}

func (s *SQLiteStore) DeleteBug(ctx context.Context, id string) (*models.Bug, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b, err := scanBug(tx.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete bug: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM bugs WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete bug: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return b, nil
}
