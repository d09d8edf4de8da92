//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"dm-lab/domain"
	apperrors "dm-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IUserRepository is the account directory. The hub only reads from it
// (sender/receiver resolution, OnlineUsers view); writes come from the
// registration flow.
type IUserRepository interface {
	CreateUser(username, displayName, avatarURL, hashedPassword string) (string, error)
	GetUserByUsername(username string) (domain.User, error)
	GetUserByID(id string) (domain.User, error)
	ListUsers() ([]domain.User, error)
	GetCredentials(username string) (UserRecord, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UserRecord is the stored representation of an account, including the
// password hash that never leaves the repository/auth layers.
type UserRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Keyspace:
//
//	user:{username} -> JSON record (primary, username is the unique key)
//	userid:{id}     -> username (secondary index for id lookups)
func userKey(username string) []byte {
	return []byte("user:" + username)
}

func userIDKey(id string) []byte {
	return []byte("userid:" + id)
}

// CreateUser persists a new account and returns the generated user id.
// The username is taken as-is: lookups are case-sensitive.
func (u *UserRepository) CreateUser(username, displayName, avatarURL, hashedPassword string) (string, error) {
	newID := uuid.NewString()
	record := UserRecord{
		ID:           newID,
		Username:     username,
		DisplayName:  displayName,
		AvatarURL:    avatarURL,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := txn.Set(userKey(username), data); err != nil {
			return err
		}
		return txn.Set(userIDKey(newID), []byte(username))
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

func (u *UserRepository) GetUserByUsername(username string) (domain.User, error) {
	record, err := u.GetCredentials(username)
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

func (u *UserRepository) GetUserByID(id string) (domain.User, error) {
	var username []byte
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(id))
		if err != nil {
			return err
		}
		username, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return u.GetUserByUsername(string(username))
}

// ListUsers returns every known account. The OnlineUsers view covers
// all users, online or not, so the hub calls this on each presence
// change.
func (u *UserRepository) ListUsers() ([]domain.User, error) {
	var users []domain.User
	prefix := []byte("user:")

	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record UserRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			users = append(users, toUser(record))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetCredentials returns the full stored record, password hash
// included. Only the auth service should need it.
func (u *UserRepository) GetCredentials(username string) (UserRecord, error) {
	var record UserRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return UserRecord{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, err
	}
	return record, nil
}

func toUser(record UserRecord) domain.User {
	return domain.User{
		ID:          record.ID,
		Username:    record.Username,
		DisplayName: record.DisplayName,
		AvatarURL:   record.AvatarURL,
	}
}
