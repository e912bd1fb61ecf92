package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresToken(t *testing.T) {
	p := &Profile{Endpoints: "endpoints.yaml"}
	assert.Error(t, p.Validate())
}

func TestValidateRequiresEndpoints(t *testing.T) {
	p := &Profile{BotToken: "123:abc"}
	assert.Error(t, p.Validate())
}

func TestValidateDefaults(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{
		Mode:      "staging",
		Data:      dir,
		BotToken:  "123:abc",
		Endpoints: "endpoints.yaml",
	}
	require.NoError(t, p.Validate())

	assert.Equal(t, "dev", p.Mode)
	assert.True(t, p.IsDev())
	assert.Equal(t, filepath.Join(dir, "catgpt.db"), p.DSN)
}

func TestValidateKeepsExplicitDSN(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{
		Mode:      "prod",
		Data:      dir,
		DSN:       "/var/lib/catgpt/db.sqlite",
		BotToken:  "123:abc",
		Endpoints: "endpoints.yaml",
	}
	require.NoError(t, p.Validate())

	assert.False(t, p.IsDev())
	assert.Equal(t, "/var/lib/catgpt/db.sqlite", p.DSN)
}

func TestValidateRejectsMissingDataDir(t *testing.T) {
	p := &Profile{
		Data:      filepath.Join(t.TempDir(), "nope"),
		BotToken:  "123:abc",
		Endpoints: "endpoints.yaml",
	}
	assert.Error(t, p.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CATGPT_BOT_TOKEN", "env-token")
	t.Setenv("CATGPT_ACCESS_KEY", "env-key")
	t.Setenv("CATGPT_GITHUB_OWNER", "env-owner")

	p := &Profile{AccessKey: "explicit"}
	p.FromEnv()

	assert.Equal(t, "env-token", p.BotToken)
	assert.Equal(t, "explicit", p.AccessKey, "explicit values win over the environment")
	assert.Equal(t, "env-owner", p.ShareOwner)
}
