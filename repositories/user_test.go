package repositories

import (
	"testing"

	apperrors "dm-lab/errors"

	"github.com/stretchr/testify/require"
)

func Test_CreateUser_And_Lookups(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// When creating an account
	id, err := repository.CreateUser("alice", "Alice A.", "https://cdn/a.png", "$argon2id$hash")
	req.NoError(err)
	req.NotEmpty(id)

	// Then it resolves by username and by id with identical identity
	byName, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(id, byName.ID)
	req.Equal("Alice A.", byName.DisplayName)

	byID, err := repository.GetUserByID(id)
	req.NoError(err)
	req.Equal(byName, byID)

	// And the password hash only travels on the credentials path
	record, err := repository.GetCredentials("alice")
	req.NoError(err)
	req.Equal("$argon2id$hash", record.PasswordHash)
}

func Test_CreateUser_Rejects_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice", "Alice A.", "", "hash")
	req.NoError(err)

	// When registering the same username again
	_, err = repository.CreateUser("alice", "Another Alice", "", "hash")

	// Then the unique key holds
	req.ErrorIs(err, apperrors.ErrUserAlreadyExists)
}

func Test_Usernames_Are_Case_Sensitive(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice", "Alice A.", "", "hash")
	req.NoError(err)

	_, err = repository.GetUserByUsername("Alice")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func Test_ListUsers_Returns_Every_Account(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	for _, username := range []string{"alice", "bob", "clara"} {
		_, err := repository.CreateUser(username, username, "", "hash")
		req.NoError(err)
	}

	users, err := repository.ListUsers()
	req.NoError(err)
	req.Len(users, 3)
}
