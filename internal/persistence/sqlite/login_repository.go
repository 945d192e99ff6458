package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/schoolsoft-sync/internal/persistence"
)

// LoginRepository implements persistence.LoginRepository using SQLite.
type LoginRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewLoginRepository creates a new SQLite login repository.
func NewLoginRepository(pool *ConnectionPool) *LoginRepository {
	return &LoginRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// SaveLogin inserts or updates the login identified by (username, url) and
// marks it as the single active login.
func (r *LoginRepository) SaveLogin(ctx context.Context, login persistence.Login) (persistence.Login, error) {
	login.Username = strings.TrimSpace(login.Username)
	if login.Username == "" || login.URL == "" || len(login.AppKey) == 0 {
		return persistence.Login{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(tx, "UPDATE logins SET active = 0"); err != nil {
			return r.mapper.MapError(err)
		}

		_, err := r.helper.ExecTx(tx, `
			INSERT INTO logins (username, app_key, user_id, user_type, url, org_id, org_name, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (username, url) DO UPDATE SET
				app_key = excluded.app_key,
				user_id = excluded.user_id,
				user_type = excluded.user_type,
				org_id = excluded.org_id,
				org_name = excluded.org_name,
				active = 1,
				updated_at = excluded.updated_at`,
			login.Username, login.AppKey, login.UserID, login.UserType, login.URL,
			login.OrgID, login.OrgName,
			now.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return nil
	})
	if err != nil {
		return persistence.Login{}, err
	}

	return r.getLoginByKey(ctx, login.Username, login.URL)
}

// ActiveLogin returns the currently active saved login.
func (r *LoginRepository) ActiveLogin(ctx context.Context) (persistence.Login, error) {
	return r.scanLogin(r.helper.QueryRow(ctx, `
		SELECT id, username, app_key, user_id, user_type, url, org_id, org_name, active, created_at, updated_at
		FROM logins WHERE active = 1 LIMIT 1`))
}

// SetActiveLogin marks the given login active and deactivates the rest.
func (r *LoginRepository) SetActiveLogin(ctx context.Context, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(tx, "UPDATE logins SET active = 0"); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx,
			"UPDATE logins SET active = 1, updated_at = ? WHERE id = ?",
			time.Now().UTC().Format(time.RFC3339), id,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// DeleteLogin removes a saved login.
func (r *LoginRepository) DeleteLogin(ctx context.Context, id int64) error {
	result, err := r.helper.Exec(ctx, "DELETE FROM logins WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *LoginRepository) getLoginByKey(ctx context.Context, username, url string) (persistence.Login, error) {
	return r.scanLogin(r.helper.QueryRow(ctx, `
		SELECT id, username, app_key, user_id, user_type, url, org_id, org_name, active, created_at, updated_at
		FROM logins WHERE username = ? AND url = ?`, username, url))
}

func (r *LoginRepository) scanLogin(row *sql.Row) (persistence.Login, error) {
	var login persistence.Login
	var active int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&login.ID,
		&login.Username,
		&login.AppKey,
		&login.UserID,
		&login.UserType,
		&login.URL,
		&login.OrgID,
		&login.OrgName,
		&active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Login{}, persistence.ErrNotFound
		}
		return persistence.Login{}, r.mapper.MapError(err)
	}

	login.Active = active != 0
	if login.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Login{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if login.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Login{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return login, nil
}
