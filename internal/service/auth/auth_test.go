package auth

import (
	"strings"
	"testing"
	"time"

	"PricePortal/internal/domain/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Username: "alice"}
}

func TestIssueAndParse(t *testing.T) {
	s := NewTokenService("secret", "priceportal", 5*time.Minute, 24*time.Hour)
	u := testUser()

	pair, err := s.IssuePair(u)
	require.NoError(t, err)

	c, err := s.ParseAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, u.ID.String(), c.Subject)

	// refresh tokens are not accepted as access tokens
	_, err = s.ParseAccess(pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenType)
}

func TestRefresh(t *testing.T) {
	s := NewTokenService("secret", "priceportal", 5*time.Minute, 24*time.Hour)
	pair, err := s.IssuePair(testUser())
	require.NoError(t, err)

	access, err := s.Refresh(pair.Refresh)
	require.NoError(t, err)
	c, err := s.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Username)

	_, err = s.Refresh(pair.Access)
	assert.ErrorIs(t, err, ErrTokenType)
}

func TestExpiry(t *testing.T) {
	s := NewTokenService("secret", "priceportal", 5*time.Minute, 24*time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	pair, err := s.IssuePair(testUser())
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = s.ParseAccess(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Refresh(pair.Refresh)
	assert.NoError(t, err)

	now = now.Add(24 * time.Hour)
	_, err = s.Refresh(pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestForeignSignatureRejected(t *testing.T) {
	a := NewTokenService("secret-a", "priceportal", time.Minute, time.Hour)
	b := NewTokenService("secret-b", "priceportal", time.Minute, time.Hour)
	pair, err := a.IssuePair(testUser())
	require.NoError(t, err)

	_, err = b.ParseAccess(pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = b.ParseAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, h.Verify(hash, "hunter22"))
	assert.False(t, h.Verify(hash, "hunter23"))
	assert.False(t, h.Verify("garbage", "hunter22"))
}

func TestPasswordHasherLongPasswords(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	long := strings.Repeat("a", 100)

	hash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, long))

	// passwords sharing the first 72 bytes must not collide
	assert.False(t, h.Verify(hash, strings.Repeat("a", 72)))
	assert.False(t, h.Verify(hash, strings.Repeat("a", 99)+"b"))
}
