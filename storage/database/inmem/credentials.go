package inmemdb

import (
	"context"

	"github.com/trezcool/hoaportal/core/identity"
)

type credentialRepository struct {
	db *credentialTable
}

var _ identity.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(db *DB) *credentialRepository {
	return &credentialRepository{db: db.credentials}
}

func (repo *credentialRepository) CreateCredential(_ context.Context, cred identity.Credential) (identity.Credential, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, c := range repo.db.t {
		if c.Email == cred.Email {
			return identity.Credential{}, identity.ErrEmailExists
		}
	}
	repo.db.t[cred.UID] = &cred
	return cred, nil
}

func (repo *credentialRepository) GetCredentialByUID(_ context.Context, uid string) (identity.Credential, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cred, ok := repo.db.t[uid]; ok {
		return *cred, nil
	}
	return identity.Credential{}, identity.ErrNotFound
}

func (repo *credentialRepository) GetCredentialByEmail(_ context.Context, email string) (identity.Credential, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cred := range repo.db.t {
		if cred.Email == email {
			return *cred, nil
		}
	}
	return identity.Credential{}, identity.ErrNotFound
}

func (repo *credentialRepository) UpdateCredential(_ context.Context, cred identity.Credential) (identity.Credential, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.t[cred.UID]
	if !ok {
		return identity.Credential{}, identity.ErrNotFound
	}
	for uid, c := range repo.db.t {
		if uid != cred.UID && c.Email == cred.Email {
			return identity.Credential{}, identity.ErrEmailExists
		}
	}

	// only save set fields
	if cred.PasswordHash != nil {
		orig.PasswordHash = cred.PasswordHash
	}
	if cred.LastLogin.Valid {
		orig.LastLogin = cred.LastLogin
	}
	orig.Email = cred.Email
	orig.Disabled = cred.Disabled
	orig.UpdatedAt = cred.UpdatedAt
	return *orig, nil
}

func (repo *credentialRepository) DeleteCredential(_ context.Context, uid string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t[uid]; !ok {
		return identity.ErrNotFound
	}
	delete(repo.db.t, uid)
	return nil
}
