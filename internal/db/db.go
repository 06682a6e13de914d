package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"messenger-service/internal/logger"
)

// Connect opens the database and applies migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS providers (
            owner_type TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            name TEXT NOT NULL,
            avatar TEXT,
            last_active TIMESTAMPTZ,
            PRIMARY KEY(owner_type, owner_id)
        );`,
	`CREATE TABLE IF NOT EXISTS threads (
            id UUID PRIMARY KEY,
            type SMALLINT NOT NULL DEFAULT 1,
            subject TEXT,
            image TEXT,
            add_participants BOOLEAN NOT NULL DEFAULT FALSE,
            invitations BOOLEAN NOT NULL DEFAULT FALSE,
            calling BOOLEAN NOT NULL DEFAULT TRUE,
            messaging BOOLEAN NOT NULL DEFAULT TRUE,
            knocks BOOLEAN NOT NULL DEFAULT TRUE,
            lockout BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
	`CREATE TABLE IF NOT EXISTS participants (
            id UUID PRIMARY KEY,
            thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            owner_type TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            admin BOOLEAN NOT NULL DEFAULT FALSE,
            muted BOOLEAN NOT NULL DEFAULT FALSE,
            pending BOOLEAN NOT NULL DEFAULT FALSE,
            send_messages BOOLEAN NOT NULL DEFAULT FALSE,
            send_knocks BOOLEAN NOT NULL DEFAULT FALSE,
            add_participants BOOLEAN NOT NULL DEFAULT FALSE,
            manage_invites BOOLEAN NOT NULL DEFAULT FALSE,
            start_calls BOOLEAN NOT NULL DEFAULT FALSE,
            last_read TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
	`CREATE INDEX IF NOT EXISTS participants_owner_idx ON participants (owner_type, owner_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            owner_type TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            type SMALLINT NOT NULL DEFAULT 0,
            body TEXT NOT NULL,
            reply_to_id UUID REFERENCES messages(id) ON DELETE SET NULL,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            reacted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            deleted_at TIMESTAMPTZ
        );`,
	`CREATE INDEX IF NOT EXISTS messages_thread_created_idx ON messages (thread_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS message_edits (
            id UUID PRIMARY KEY,
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            body TEXT NOT NULL,
            edited_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS message_reactions (
            id UUID PRIMARY KEY,
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            owner_type TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            reaction TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS calls (
            id UUID PRIMARY KEY,
            thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            owner_type TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            type SMALLINT NOT NULL DEFAULT 1,
            room_id TEXT,
            room_pin TEXT,
            room_secret TEXT,
            payload TEXT,
            setup_complete BOOLEAN NOT NULL DEFAULT FALSE,
            teardown_complete BOOLEAN NOT NULL DEFAULT FALSE,
            call_ended TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS call_participants (
            id UUID PRIMARY KEY,
            call_id UUID NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
            owner_type TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            left_call TIMESTAMPTZ,
            kicked BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
}

func runMigrations(db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	logger.Log.Info("database migrations applied", zap.Int("count", len(migrations)))
	return nil
}
