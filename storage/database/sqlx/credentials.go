package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/identity"
)

const credentialColumns = `uid, email, password_hash, disabled, created_at, updated_at, last_login`

type credentialRepository struct {
	exec core.DBExecutor
}

var _ identity.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(exec core.DBExecutor) *credentialRepository {
	return &credentialRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to identity.ErrNotFound
func (repo credentialRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return identity.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps psql unique violations to identity.ErrEmailExists
func (repo credentialRepository) trapUniqueErr(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return identity.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo credentialRepository) CreateCredential(ctx context.Context, cred identity.Credential) (identity.Credential, error) {
	q := `
		INSERT INTO identities (uid, email, password_hash, disabled, created_at, updated_at, last_login)
		VALUES (:uid, :email, :password_hash, :disabled, :created_at, :updated_at, :last_login)`
	if _, err := sqlxNamedExec(ctx, repo.exec, q, cred); err != nil {
		return identity.Credential{}, repo.trapUniqueErr(err, "inserting credential")
	}
	return cred, nil
}

func (repo credentialRepository) GetCredentialByUID(ctx context.Context, uid string) (identity.Credential, error) {
	var cred identity.Credential
	q := `SELECT ` + credentialColumns + ` FROM identities WHERE uid = $1`
	if err := repo.exec.GetContext(ctx, &cred, q, uid); err != nil {
		return identity.Credential{}, repo.trapNoRowsErr(err, "getting credential by uid")
	}
	return cred, nil
}

func (repo credentialRepository) GetCredentialByEmail(ctx context.Context, email string) (identity.Credential, error) {
	var cred identity.Credential
	q := `SELECT ` + credentialColumns + ` FROM identities WHERE email = $1`
	if err := repo.exec.GetContext(ctx, &cred, q, email); err != nil {
		return identity.Credential{}, repo.trapNoRowsErr(err, "getting credential by email")
	}
	return cred, nil
}

func (repo credentialRepository) UpdateCredential(ctx context.Context, cred identity.Credential) (identity.Credential, error) {
	q := `
		UPDATE identities
		SET email = :email, password_hash = COALESCE(:password_hash, password_hash), disabled = :disabled,
			updated_at = :updated_at, last_login = COALESCE(:last_login, last_login)
		WHERE uid = :uid`
	res, err := sqlxNamedExec(ctx, repo.exec, q, cred)
	if err != nil {
		return identity.Credential{}, repo.trapUniqueErr(err, "updating credential")
	}
	if err = checkAffected(res, identity.ErrNotFound); err != nil {
		return identity.Credential{}, err
	}
	return repo.GetCredentialByUID(ctx, cred.UID)
}

func (repo credentialRepository) DeleteCredential(ctx context.Context, uid string) error {
	res, err := repo.exec.ExecContext(ctx, `DELETE FROM identities WHERE uid = $1`, uid)
	if err != nil {
		return errors.Wrap(err, "deleting credential")
	}
	return checkAffected(res, identity.ErrNotFound)
}
