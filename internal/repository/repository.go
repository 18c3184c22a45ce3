package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/orderflow/checkout-service/domain"
)

const DefaultSnapshotBatchSize = 1000

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string

	// SnapshotBatchSize caps how many product ids go into one batched read.
	// Zero means DefaultSnapshotBatchSize.
	SnapshotBatchSize int
}

type Repository struct {
	db        *sql.DB
	batchSize int
}

type RepoInterface interface {
	Begin(ctx context.Context) (CheckoutTx, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.OrderRecord, error)
	ResolveProductNames(ctx context.Context, names []string) (map[string]int64, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	Close() error
	RunMigrations(*Credentials) error
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)

	batchSize := cred.SnapshotBatchSize
	if batchSize <= 0 {
		batchSize = DefaultSnapshotBatchSize
	}
	return &Repository{db: db, batchSize: batchSize}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
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

// Begin opens the transaction scope a single checkout attempt lives in.
// Every snapshot read and conditional write of that attempt goes through
// the returned CheckoutTx, so a rollback undoes all of it. Read committed
// is enough: conflicts are detected by the concurrency stamp, not by
// isolation-level locking.
func (r *Repository) Begin(ctx context.Context) (CheckoutTx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin checkout transaction: %w", err)
	}
	return &checkoutTx{tx: tx, batchSize: r.batchSize}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
