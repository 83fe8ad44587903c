package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

const notifyChannel = "documents_changed"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

func (c *Credentials) connString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName)
}

// PostgresStore keeps every document as a JSONB row keyed by (collection, id)
// and uses LISTEN/NOTIFY for subscriptions.
type PostgresStore struct {
	db      *sql.DB
	connStr string
	log     *slog.Logger
}

func NewPostgresStore(cred *Credentials, log *slog.Logger) (*PostgresStore, error) {
	connStr := cred.connString()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	log.Info("connected to postgres", "host", cred.Host, "db", cred.DBName)
	return &PostgresStore{db: db, connStr: connStr, log: log}, nil
}

func (p *PostgresStore) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(p.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (p *PostgresStore) Create(ctx context.Context, collection string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document failed: %w", err)
	}
	id := newID()
	query := `INSERT INTO documents (collection, id, data, created_at, updated_at)
	          VALUES ($1, $2, $3::jsonb, NOW(), NOW())`
	if _, err := p.db.ExecContext(ctx, query, collection, id, string(raw)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (p *PostgresStore) Read(ctx context.Context, path string, out any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	var raw []byte
	err = p.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal document failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Set(ctx context.Context, path string, data any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document failed: %w", err)
	}
	query := `INSERT INTO documents (collection, id, data, created_at, updated_at)
	          VALUES ($1, $2, $3::jsonb, NOW(), NOW())
	          ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	if _, err := p.db.ExecContext(ctx, query, collection, id, string(raw)); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Update is a single statement shallow merge, so no read-modify-write race exists.
func (p *PostgresStore) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal patch failed: %w", err)
	}
	result, err := p.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Remove(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, collection string) ([]Record, error) {
	return p.query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`, collection)
}

func (p *PostgresStore) Find(ctx context.Context, collection, field, value string) ([]Record, error) {
	return p.query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY id`,
		collection, field, value)
}

func (p *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var raw []byte
		if err := rows.Scan(&rec.Key, &raw); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		rec.Data = json.RawMessage(raw)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func (p *PostgresStore) Subscribe(ctx context.Context, collection string, fn func([]Record)) (func(), error) {
	listener := pq.NewListener(p.connStr, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				p.log.Warn("postgres listener event", "event", ev, "error", err)
			}
		})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	initial, err := p.List(ctx, collection)
	if err != nil {
		listener.Close()
		return nil, err
	}

	f := newFeed(fn)
	f.push(initial)

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		for {
			select {
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// a nil notification follows a reconnect; reload to be safe
				if n != nil && n.Extra != collection {
					continue
				}
				snapshot, err := p.List(subCtx, collection)
				if err != nil {
					p.log.Warn("reload collection after notify failed", "collection", collection, "error", err)
					continue
				}
				f.push(snapshot)
			case <-subCtx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		listener.Close()
		f.stop()
	}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
