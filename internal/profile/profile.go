// Package profile holds the runtime configuration of one bot instance.
package profile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Profile is configuration to start the bot process.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Data is the directory holding the database and cached tokens.
	Data string
	// DSN is the sqlite database path. Defaults to <data>/catgpt.db.
	DSN string
	// BotToken is the Telegram bot token.
	BotToken string
	// AccessKey enrolls new users via /key <access_key>.
	AccessKey string
	// Endpoints is the path of the endpoints config file.
	Endpoints string
	// MetricsAddr exposes prometheus metrics when set, e.g. ":9090".
	MetricsAddr string
	// TelegraphAuthor names the telegra.ph account used for long replies.
	TelegraphAuthor string
	// ShareOwner/ShareRepo/ShareToken configure the GitHub issue exporter.
	// Sharing is disabled when any of them is empty.
	ShareOwner string
	ShareRepo  string
	ShareToken string
	// RespondGroup is the default group answering policy.
	RespondGroup bool
	Version      string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// FromEnv fills unset fields from the environment.
func (p *Profile) FromEnv() {
	if p.BotToken == "" {
		p.BotToken = os.Getenv("CATGPT_BOT_TOKEN")
	}
	if p.AccessKey == "" {
		p.AccessKey = os.Getenv("CATGPT_ACCESS_KEY")
	}
	if p.Data == "" {
		p.Data = os.Getenv("CATGPT_DATA")
	}
	if p.ShareOwner == "" {
		p.ShareOwner = os.Getenv("CATGPT_GITHUB_OWNER")
	}
	if p.ShareRepo == "" {
		p.ShareRepo = os.Getenv("CATGPT_GITHUB_REPO")
	}
	if p.ShareToken == "" {
		p.ShareToken = os.Getenv("CATGPT_GITHUB_TOKEN")
	}
}

// Validate normalizes the profile and rejects configurations the process
// cannot start with. Missing required fields are config errors, not runtime
// conditions, so they fail the process at once.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		p.Mode = "dev"
	}

	if p.BotToken == "" {
		return errors.New("bot token is required")
	}
	if p.Endpoints == "" {
		return errors.New("endpoints config file is required")
	}

	if p.Data == "" {
		p.Data = "."
	}
	absData, err := filepath.Abs(p.Data)
	if err != nil {
		return errors.Wrapf(err, "unable to resolve data directory %q", p.Data)
	}
	if fi, err := os.Stat(absData); err != nil || !fi.IsDir() {
		return fmt.Errorf("data directory %q does not exist", absData)
	}
	p.Data = absData

	if p.DSN == "" {
		p.DSN = filepath.Join(p.Data, "catgpt.db")
	}

	return nil
}
