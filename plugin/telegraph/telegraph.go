// Package telegraph publishes long replies as telegra.ph pages.
package telegraph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://api.telegra.ph"
	tokenFileName  = "telegraph.json"
)

// account is the persisted telegra.ph credential. Pages can only be edited
// with the token that created them, so the token must survive restarts.
type account struct {
	ShortName   string `json:"short_name"`
	AuthorName  string `json:"author_name"`
	AccessToken string `json:"access_token"`
}

// Client is a minimal telegra.ph API client bound to one account.
type Client struct {
	baseURL   string
	client    *http.Client
	tokenPath string
	account   account
}

// Load opens the account cached under dataDir, creating a fresh telegra.ph
// account on first use and persisting its token next to the database.
func Load(ctx context.Context, dataDir, author string) (*Client, error) {
	if author == "" {
		author = "catgpt"
	}
	c := &Client{
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		tokenPath: filepath.Join(dataDir, tokenFileName),
	}

	data, err := os.ReadFile(c.tokenPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &c.account); err != nil {
			return nil, errors.Wrapf(err, "corrupt telegraph token file %q", c.tokenPath)
		}
	case os.IsNotExist(err):
		if err := c.createAccount(ctx, author); err != nil {
			return nil, err
		}
		saved, err := json.MarshalIndent(c.account, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(c.tokenPath, saved, 0o600); err != nil {
			return nil, errors.Wrap(err, "unable to persist telegraph token")
		}
	default:
		return nil, errors.Wrapf(err, "unable to read telegraph token file %q", c.tokenPath)
	}
	return c, nil
}

// Token returns the account token identifying page ownership.
func (c *Client) Token() string {
	return c.account.AccessToken
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method,
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "telegraph %s failed", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errors.Wrapf(err, "telegraph %s returned malformed response", method)
	}
	if !parsed.OK {
		return errors.Errorf("telegraph %s failed: %s", method, parsed.Error)
	}
	if result != nil {
		return json.Unmarshal(parsed.Result, result)
	}
	return nil
}

func (c *Client) createAccount(ctx context.Context, author string) error {
	form := url.Values{}
	form.Set("short_name", author)
	form.Set("author_name", author)

	var created account
	if err := c.call(ctx, "createAccount", form, &created); err != nil {
		return err
	}
	if created.AccessToken == "" {
		return errors.New("telegraph returned no access token")
	}
	created.ShortName = author
	created.AuthorName = author
	c.account = created
	return nil
}

type page struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// CreatePage publishes markdown as a new page and returns its public URL and
// path. An empty title gets an opaque generated one.
func (c *Client) CreatePage(ctx context.Context, title, markdown string) (string, string, error) {
	if title == "" {
		title = shortuuid.New()
	}
	content, err := json.Marshal(MarkdownToNodes(markdown))
	if err != nil {
		return "", "", err
	}

	form := url.Values{}
	form.Set("access_token", c.account.AccessToken)
	form.Set("title", title)
	form.Set("author_name", c.account.AuthorName)
	form.Set("content", string(content))

	var created page
	if err := c.call(ctx, "createPage", form, &created); err != nil {
		return "", "", err
	}
	return created.URL, created.Path, nil
}

// UpdatePage rewrites an existing page in place and returns its public URL.
func (c *Client) UpdatePage(ctx context.Context, path, title, markdown string) (string, error) {
	if title == "" {
		title = shortuuid.New()
	}
	content, err := json.Marshal(MarkdownToNodes(markdown))
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("access_token", c.account.AccessToken)
	form.Set("path", path)
	form.Set("title", title)
	form.Set("author_name", c.account.AuthorName)
	form.Set("content", string(content))

	var edited page
	if err := c.call(ctx, "editPage", form, &edited); err != nil {
		return "", err
	}
	return edited.URL, nil
}
