package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/repository"
)

const (
	credentialsTable = "auth_credentials"

	uniqueViolationCode = "23505"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var credentialColumns = []string{
	"id",
	"tenant_id",
	"user_id",
	"username",
	"email",
	"password_hash",
	"password_algo",
	"failed_login_attempts",
	"locked_until",
	"mfa_enabled",
	"mfa_secret",
	"email_verified",
	"phone_verified",
	"is_active",
	"last_password_change",
	"created_at",
	"updated_at",
}

// CredentialRepository implements port.CredentialRepository backed by PostgreSQL.
type CredentialRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCredentialRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewCredentialRepository(exec pgExecutor) *CredentialRepository {
	return &CredentialRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a credential row. A unique violation on username or email yields repository.ErrDuplicate.
func (r *CredentialRepository) Create(ctx context.Context, credential domain.AuthCredential) error {
	stmt, args, err := r.builder.Insert(credentialsTable).
		Columns(credentialColumns...).
		Values(
			credential.ID,
			credential.TenantID,
			credential.UserID,
			credential.Username,
			credential.Email,
			credential.PasswordHash,
			credential.PasswordAlgo,
			credential.FailedLoginAttempts,
			credential.LockedUntil,
			credential.MFAEnabled,
			credential.MFASecret,
			credential.EmailVerified,
			credential.PhoneVerified,
			credential.IsActive,
			credential.LastPasswordChange,
			credential.CreatedAt,
			credential.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert credential sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert credential: %w: %w", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

// Delete removes a credential row.
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Delete(credentialsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete credential sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

var _ port.CredentialRepository = (*CredentialRepository)(nil)
