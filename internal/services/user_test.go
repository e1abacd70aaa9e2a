package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cinevault/apiserver/internal/services/servicestest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(events EventPublisher) (*UserService, *servicestest.Users) {
	users := servicestest.NewUsers()
	return NewUserService(users, events, UserOptions{BcryptCost: bcrypt.MinCost}, nil), users
}

func TestCreateUserNeverExposesHash(t *testing.T) {
	events := &servicestest.Events{}
	svc, users := newUserService(events)

	safe, err := svc.Create(context.Background(), CreateUserInput{Name: " Ana ", Email: "Ana@X.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", safe.Name)
	assert.Equal(t, "ana@x.com", safe.Email)

	body, err := json.Marshal(safe)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")
	assert.NotContains(t, string(body), "$2a$")

	stored, err := users.GetByID(context.Background(), safe.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

	published := events.Published()
	require.Len(t, published, 1)
	assert.Equal(t, EventUserRegistered, published[0].Channel)
	registered, ok := published[0].Payload.(UserRegistered)
	require.True(t, ok)
	assert.Equal(t, *stored.ConfirmToken, registered.ConfirmToken)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newUserService(nil)

	_, err := svc.Create(context.Background(), CreateUserInput{Name: "", Email: "nope", Password: "123"})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	paths := make([]string, 0, len(verr.Details))
	for _, d := range verr.Details {
		paths = append(paths, d.Path)
	}
	assert.ElementsMatch(t, []string{"name", "email", "password"}, paths)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _ := newUserService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Name: "Ana", Email: "ana@x.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateUserInput{Name: "Ana 2", Email: "ANA@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateUserIsSelfOnly(t *testing.T) {
	svc, _ := newUserService(nil)
	ctx := context.Background()

	ana, err := svc.Create(ctx, CreateUserInput{Name: "Ana", Email: "ana@x.com", Password: "secret1"})
	require.NoError(t, err)
	bob, err := svc.Create(ctx, CreateUserInput{Name: "Bob", Email: "bob@x.com", Password: "secret1"})
	require.NoError(t, err)

	name := "Hacked"
	_, err = svc.Update(ctx, bob.ID, ana.ID, UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	name = "Ana Maria"
	updated, err := svc.Update(ctx, ana.ID, ana.ID, UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.Equal(t, "ana@x.com", updated.Email)

	email := "bob@x.com"
	_, err = svc.Update(ctx, ana.ID, ana.ID, UpdateUserInput{Email: &email})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeleteUser(t *testing.T) {
	svc, _ := newUserService(nil)
	ctx := context.Background()

	ana, err := svc.Create(ctx, CreateUserInput{Name: "Ana", Email: "ana@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, "someone-else", ana.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	result, err := svc.Delete(ctx, ana.ID, ana.ID)
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	_, err = svc.Get(ctx, ana.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUsersNewestFirst(t *testing.T) {
	svc, _ := newUserService(nil)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, err := svc.Create(ctx, CreateUserInput{Name: "U", Email: email, Password: "secret1"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c@x.com", page.Items[0].Email)

	page, err = svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultUserPageSize, page.PageSize)
}
