package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_RegisterThenLogin(t *testing.T) {
	s := NewUserService(bcrypt.MinCost)
	ctx := context.Background()

	first, err := s.Login(ctx, " alice ", "pw")
	require.NoError(t, err)
	require.Equal(t, "alice", first.Username)
	require.NotEmpty(t, first.ID)

	again, err := s.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, first, again)

	_, err = s.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	bob, err := s.Login(ctx, "bob", "pw")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, bob.ID)
}

func TestUserService_Validation(t *testing.T) {
	s := NewUserService(bcrypt.MinCost)

	_, err := s.Login(context.Background(), "  ", "pw")
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = s.Login(context.Background(), "alice", "")
	require.ErrorIs(t, err, ErrPasswordRequired)
}
