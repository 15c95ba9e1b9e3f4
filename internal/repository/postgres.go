package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const linksTable = "short_links"

var linkColumns = []string{"id", "slug", "url", "user_id", "created_at"}

type PostgresRepository struct {
	pool   *pgxpool.Pool
	sb     squirrel.StatementBuilderType
	logger *zap.Logger
}

func NewPostgresRepository(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info("Migrations applied")

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL repository initialized")

	return &PostgresRepository{
		pool:   pool,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger,
	}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Insert stores link. The unique constraint on slug decides races between concurrent
// inserts: the loser gets ErrSlugExists.
func (p *PostgresRepository) Insert(ctx context.Context, link models.ShortLink) (models.ShortLink, error) {
	query, args, err := p.sb.
		Insert(linksTable).
		Columns("id", "slug", "url", "user_id").
		Values(link.ID, link.Slug, link.URL, link.UserID).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return models.ShortLink{}, fmt.Errorf("build query: %w", err)
	}

	err = p.pool.QueryRow(ctx, query, args...).Scan(&link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return models.ShortLink{}, ErrSlugExists
		}
		return models.ShortLink{}, fmt.Errorf("insert link: %w", err)
	}

	return link, nil
}

func (p *PostgresRepository) FindBySlug(ctx context.Context, slug string) (models.ShortLink, error) {
	query, args, err := p.sb.
		Select(linkColumns...).
		From(linksTable).
		Where(squirrel.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return models.ShortLink{}, fmt.Errorf("build query: %w", err)
	}

	return p.queryOne(ctx, query, args...)
}

func (p *PostgresRepository) FindOwnedBySlug(ctx context.Context, userID, slug string) (models.ShortLink, error) {
	query, args, err := p.sb.
		Select(linkColumns...).
		From(linksTable).
		Where(squirrel.Eq{"slug": slug, "user_id": userID}).
		ToSql()
	if err != nil {
		return models.ShortLink{}, fmt.Errorf("build query: %w", err)
	}

	return p.queryOne(ctx, query, args...)
}

// FindByOwner returns the user's links in insertion order.
func (p *PostgresRepository) FindByOwner(ctx context.Context, userID string) ([]models.ShortLink, error) {
	query, args, err := p.sb.
		Select(linkColumns...).
		From(linksTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at", "seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return p.queryMany(ctx, query, args...)
}

// All pages through every link in insertion order. It is meant for offline jobs.
func (p *PostgresRepository) All(ctx context.Context, fn func([]models.ShortLink) error, pageSize int) error {
	if pageSize <= 0 {
		pageSize = 1000
	}

	var lastSeq int64
	for {
		query, args, err := p.sb.
			Select(append([]string{"seq"}, linkColumns...)...).
			From(linksTable).
			Where(squirrel.Gt{"seq": lastSeq}).
			OrderBy("seq").
			Limit(uint64(pageSize)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}

		rows, err := p.pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query links: %w", err)
		}

		page := make([]models.ShortLink, 0, pageSize)
		for rows.Next() {
			var link models.ShortLink
			if err := rows.Scan(&lastSeq, &link.ID, &link.Slug, &link.URL, &link.UserID, &link.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan row: %w", err)
			}
			page = append(page, link)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
	}
}

func (p *PostgresRepository) UpdateURL(ctx context.Context, id, userID, url string) error {
	query, args, err := p.sb.
		Update(linksTable).
		Set("url", url).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	return p.execAffectingOne(ctx, query, args...)
}

func (p *PostgresRepository) DeleteByID(ctx context.Context, id, userID string) error {
	query, args, err := p.sb.
		Delete(linksTable).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	return p.execAffectingOne(ctx, query, args...)
}

func (p *PostgresRepository) CountBySlug(ctx context.Context, slug string) (int, error) {
	query, args, err := p.sb.
		Select("COUNT(*)").
		From(linksTable).
		Where(squirrel.Eq{"slug": slug}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}

	return count, nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (models.ShortLink, error) {
	var link models.ShortLink
	err := p.pool.QueryRow(ctx, query, args...).Scan(&link.ID, &link.Slug, &link.URL, &link.UserID, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ShortLink{}, ErrNotFound
		}
		return models.ShortLink{}, fmt.Errorf("query row: %w", err)
	}

	return link, nil
}

func (p *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.ShortLink, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make([]models.ShortLink, 0)
	for rows.Next() {
		var link models.ShortLink
		if err := rows.Scan(&link.ID, &link.Slug, &link.URL, &link.UserID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return links, nil
}

func (p *PostgresRepository) execAffectingOne(ctx context.Context, query string, args ...any) error {
	cmdTag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
