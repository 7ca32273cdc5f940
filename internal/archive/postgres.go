// Package archive persists finished interview transcripts in Postgres.
// Archiving is fire-and-forget from the session's point of view: a write
// failure is logged and the ephemeral store keeps its own snapshot.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
)

// RetentionPeriod is how long archived conversations are kept.
const RetentionPeriod = 7 * 24 * time.Hour

//go:embed migrations/*.sql
var migrations embed.FS

// Archive stores conversations in Postgres.
type Archive struct {
	pool *pgxpool.Pool
}

// New applies pending migrations and connects the archive pool.
func New(ctx context.Context, databaseURL string) (*Archive, error) {
	if err := migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}

	return &Archive{pool: pool}, nil
}

func migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply archive migrations: %w", err)
	}
	return nil
}

// Store inserts one finished conversation.
func (a *Archive) Store(ctx context.Context, email, userID string, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO conversations (email, user_id, messages, message_count) VALUES ($1, $2, $3, $4)`,
		email, userID, payload, len(messages))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// PurgeExpired deletes conversations older than the retention period.
func (a *Archive) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := a.pool.Exec(ctx,
		`DELETE FROM conversations WHERE saved_at < now() - $1::interval`,
		fmt.Sprintf("%d hours", int(RetentionPeriod.Hours())))
	if err != nil {
		return 0, fmt.Errorf("purge archived conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RunRetention periodically purges expired conversations until the
// context is cancelled.
func (a *Archive) RunRetention(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.PurgeExpired(ctx)
			if err != nil {
				log.Printf("[archive] retention sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("[archive] purged %d expired conversations", removed)
			}
		}
	}
}

// Close releases the connection pool.
func (a *Archive) Close() {
	a.pool.Close()
}
