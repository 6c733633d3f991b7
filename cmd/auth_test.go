package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tracker/internal/auth"
	"github.com/joescharf/tracker/internal/tracker"
)

// signUp creates an account through the CLI path and leaves it signed in.
func signUp(t *testing.T, email string) {
	t.Helper()
	ui.In = strings.NewReader("secret1\n")
	authEmail = email
	authPasswordFile = "-"
	t.Cleanup(func() { authEmail, authPasswordFile = "", "" })
	require.NoError(t, signupRun(context.Background()))
}

func TestSignupLoginLogout(t *testing.T) {
	dir := testEnv(t)
	ctx := context.Background()

	signUp(t, "cli@b.co")
	_, err := os.Stat(filepath.Join(dir, "session"))
	require.NoError(t, err, "session is saved under state_dir")

	u, err := requireUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cli@b.co", u.Email)

	require.NoError(t, logoutRun(ctx))
	_, err = requireUser(ctx)
	assert.ErrorIs(t, err, tracker.ErrNotSignedIn)

	pwFile := filepath.Join(dir, "pw")
	require.NoError(t, os.WriteFile(pwFile, []byte("wrong-pass\n"), 0o600))
	authEmail, authPasswordFile = "cli@b.co", pwFile
	err = loginRun(ctx)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, os.WriteFile(pwFile, []byte("secret1\n"), 0o600))
	require.NoError(t, loginRun(ctx))
	assert.NoError(t, whoamiRun(ctx))
}

func TestSessionSharedAcrossInvocations(t *testing.T) {
	testEnv(t)
	ctx := context.Background()

	signUp(t, "shared@b.co")

	// A fresh invocation restores the session from disk.
	closeDeps()
	u, err := requireUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared@b.co", u.Email)
}

func TestReadFirstLine(t *testing.T) {
	pw, err := readFirstLine(strings.NewReader("hunter22\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pw)

	_, err = readFirstLine(strings.NewReader(""))
	assert.Error(t, err)
}
