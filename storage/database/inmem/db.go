package inmemdb

import (
	"sync"
	"time"

	"github.com/trezcool/hoaportal/core/document"
	"github.com/trezcool/hoaportal/core/identity"
)

type (
	// DB is a process-local database used by tests and the memory storage backend.
	DB struct {
		documents   *documentTable
		credentials *credentialTable
		signIns     *signInTable
	}

	documentTable struct {
		t     map[string]map[string]*document.Document // collection -> id -> document
		mutex sync.RWMutex
	}

	credentialTable struct {
		t     map[string]*identity.Credential // uid -> credential
		mutex sync.RWMutex
	}

	signIn struct {
		uid       string
		expiresAt time.Time // zero means never
	}

	signInTable struct {
		t     map[string]signIn // session id -> sign-in
		mutex sync.Mutex
	}
)

func Open() *DB {
	return &DB{
		documents:   &documentTable{t: make(map[string]map[string]*document.Document)},
		credentials: &credentialTable{t: make(map[string]*identity.Credential)},
		signIns:     &signInTable{t: make(map[string]signIn)},
	}
}
