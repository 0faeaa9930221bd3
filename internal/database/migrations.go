package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL UNIQUE,
			phone TEXT UNIQUE,
			avatar TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'JOINED' CHECK (status IN ('JOINED', 'INVITED')),
			invited_by UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users(LOWER(email))`,

		`CREATE TABLE IF NOT EXISTS groups (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			banner TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			author_id UUID NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS members (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'JOINED' CHECK (status IN ('JOINED', 'PENDING', 'LEFT', 'INVITED')),
			role TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('OWNER', 'ADMIN', 'MEMBER')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, group_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_group_id ON members(group_id)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount DECIMAL(12, 2) NOT NULL CHECK (amount > 0),
			author_id UUID NOT NULL REFERENCES users(id),
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			group_id UUID REFERENCES groups(id),
			icon TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'PAID' CHECK (type IN ('PAID', 'RECEIVED', 'CASHBACK', 'SELF')),
			method TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_author_id ON expenses(author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_group_id ON expenses(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_occurred_at ON expenses(occurred_at)`,

		`CREATE TABLE IF NOT EXISTS splits (
			id UUID PRIMARY KEY,
			expense_id UUID NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id),
			pending DECIMAL(12, 2) NOT NULL DEFAULT 0 CHECK (pending >= 0),
			completed DECIMAL(12, 2) NOT NULL DEFAULT 0 CHECK (completed >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (expense_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_splits_user_id ON splits(user_id)`,

		`CREATE TABLE IF NOT EXISTS tags (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS expense_tags (
			expense_id UUID NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (expense_id, tag_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expense_tags_tag_id ON expense_tags(tag_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
