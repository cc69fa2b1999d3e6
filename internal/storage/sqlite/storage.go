package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync/atomic"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/scenesync/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// scenePragmas применяются к каждому соединению релея.
// Таблицы сцены не ссылаются друг на друга, поэтому foreign_keys не включаем.
var scenePragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA busy_timeout = 5000;",
}

// Storage хранит записи сцены и удалённые сущности релея в SQLite.
type Storage struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ storage.SceneStorage = (*Storage)(nil)

// New открывает базу по dbPath и накатывает миграции схемы сцены.
// ":memory:" подходит для тестов.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open scene db %q: %w", dbPath, err)
	}

	s := &Storage{db: db}
	if err := s.prepare(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) prepare(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping scene db: %w", err)
	}

	// Один писатель: хаб и так сериализует запись сцены.
	// Для ":memory:" каждое новое соединение получило бы пустую базу.
	s.db.SetMaxOpenConns(1)
	s.db.SetMaxIdleConns(1)

	for _, pragma := range scenePragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return s.migrate(ctx)
}

// migrate накатывает схему через goose provider без глобального состояния goose.
func (s *Storage) migrate(ctx context.Context) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("scene migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations)
	if err != nil {
		return fmt.Errorf("scene migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("scene migrations up: %w", err)
	}

	return nil
}

// Close закрывает базу. Повторный вызов ничего не делает.
func (s *Storage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB отдаёт соединение для тестов.
func (s *Storage) DB() *sql.DB {
	return s.db
}
