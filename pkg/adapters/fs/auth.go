package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/aretw0/notesync/internal/accounts"
	"github.com/aretw0/notesync/pkg/core"
)

// AccountsFile is the bbolt database of the identity provider, inside the
// store's system directory.
const AccountsFile = "accounts.db"

var (
	bucketAccounts = []byte("accounts")
	bucketSession  = []byte("session")
	keyCurrent     = []byte("current")
)

// Auth implements core.IdentityProvider on a bbolt database. The signed-in
// identity is persisted, so a new process resumes the last session.
type Auth struct {
	db   *bolt.DB
	path string
	cost int

	mu        sync.Mutex
	current   *core.Identity
	observers map[uint64]func(*core.Identity)
	next      uint64
}

type accountRecord struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Hash        []byte `json:"hash"`
}

// AuthConfig holds the configuration of the identity provider.
type AuthConfig struct {
	// Path of the database file.
	Path string
	// BcryptCost of password hashes; zero uses the bcrypt default.
	BcryptCost int
}

// OpenAuth opens (or creates) the account database.
func OpenAuth(config AuthConfig) (*Auth, error) {
	path := strings.TrimSpace(config.Path)
	if path == "" {
		return nil, errors.New("accounts db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAccounts, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &Auth{
		db:        db,
		path:      path,
		cost:      config.BcryptCost,
		observers: make(map[uint64]func(*core.Identity)),
	}
	current, err := a.loadCurrent()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.current = current
	return a, nil
}

// Register implements core.IdentityProvider.
func (a *Auth) Register(ctx context.Context, displayName, email, password string) (core.Identity, error) {
	if err := ctx.Err(); err != nil {
		return core.Identity{}, err
	}
	if err := accounts.ValidateRegistration(email, password); err != nil {
		return core.Identity{}, err
	}
	hash, err := accounts.HashPassword(password, a.cost)
	if err != nil {
		return core.Identity{}, err
	}

	key := accounts.NormalizeEmail(email)
	rec := accountRecord{UID: uuid.NewString(), Email: key, DisplayName: displayName, Hash: hash}
	err = a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		if b.Get([]byte(key)) != nil {
			return core.ErrEmailInUse
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(key), data); err != nil {
			return err
		}
		return putCurrent(tx, &rec)
	})
	if err != nil {
		return core.Identity{}, err
	}

	id := rec.identity()
	a.setCurrent(&id)
	return id, nil
}

// SignIn implements core.IdentityProvider.
func (a *Auth) SignIn(ctx context.Context, email, password string) (core.Identity, error) {
	if err := ctx.Err(); err != nil {
		return core.Identity{}, err
	}

	var rec accountRecord
	err := a.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get([]byte(accounts.NormalizeEmail(email)))
		if data == nil {
			return core.ErrInvalidCredentials
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return core.Identity{}, err
	}
	if err := accounts.CheckPassword(rec.Hash, password); err != nil {
		return core.Identity{}, err
	}

	if err := a.db.Update(func(tx *bolt.Tx) error { return putCurrent(tx, &rec) }); err != nil {
		return core.Identity{}, err
	}
	id := rec.identity()
	a.setCurrent(&id)
	return id, nil
}

// SignOut implements core.IdentityProvider.
func (a *Auth) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keyCurrent)
	})
	if err != nil {
		return err
	}
	a.setCurrent(nil)
	return nil
}

// ObserveIdentity implements core.IdentityProvider.
// fn is called synchronously with the persisted identity.
func (a *Auth) ObserveIdentity(fn func(*core.Identity)) func() {
	a.mu.Lock()
	a.next++
	key := a.next
	a.observers[key] = fn
	current := copyIdentity(a.current)
	a.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.observers, key)
			a.mu.Unlock()
		})
	}
}

// Close closes the database.
func (a *Auth) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Auth) setCurrent(id *core.Identity) {
	a.mu.Lock()
	a.current = copyIdentity(id)
	observers := make([]func(*core.Identity), 0, len(a.observers))
	for _, fn := range a.observers {
		observers = append(observers, fn)
	}
	a.mu.Unlock()

	for _, fn := range observers {
		fn(copyIdentity(id))
	}
}

func (a *Auth) loadCurrent() (*core.Identity, error) {
	var current *core.Identity
	err := a.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(keyCurrent)
		if data == nil {
			return nil
		}
		var id core.Identity
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("corrupt session record: %w", err)
		}
		current = &id
		return nil
	})
	return current, err
}

func (a *Auth) countAccounts() (int, error) {
	var n int
	err := a.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketAccounts).Stats().KeyN
		return nil
	})
	return n, err
}

func putCurrent(tx *bolt.Tx, rec *accountRecord) error {
	id := rec.identity()
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketSession).Put(keyCurrent, data)
}

func (r accountRecord) identity() core.Identity {
	return core.Identity{UID: r.UID, Email: r.Email, DisplayName: r.DisplayName}
}

func copyIdentity(id *core.Identity) *core.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
