package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := iss.Issue("user-1")
	require.NoError(t, err)

	uid, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	a, err := NewIssuer(0)
	require.NoError(t, err)
	b, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := a.Issue("user-1")
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	iss, err := NewIssuer(time.Minute)
	require.NoError(t, err)

	issued := time.Now()
	iss.now = func() time.Time { return issued }
	token, err := iss.Issue("user-1")
	require.NoError(t, err)

	iss.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = iss.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss, err := NewIssuer(0)
	require.NoError(t, err)
	_, err = iss.Verify("not.a.token")
	assert.Error(t, err)
}
