// Package share exports conversation transcripts to external services.
package share

import (
	"context"

	"github.com/google/go-github/v66/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// IssueExporter publishes transcripts as issues in a GitHub repository. The
// topic label doubles as the issue label, so re-sharing the same topic
// updates the existing issue instead of opening a new one.
type IssueExporter struct {
	client *github.Client
	owner  string
	repo   string
}

func NewIssueExporter(ctx context.Context, owner, repo, token string) (*IssueExporter, error) {
	if owner == "" || repo == "" || token == "" {
		return nil, errors.New("share requires owner, repo and token")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &IssueExporter{
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		owner:  owner,
		repo:   repo,
	}, nil
}

// Export creates or updates the issue labelled with label and returns its
// public URL.
func (e *IssueExporter) Export(ctx context.Context, title, label, body string) (string, error) {
	existing, err := e.findIssue(ctx, label)
	if err != nil {
		return "", err
	}

	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	}

	var issue *github.Issue
	if existing != nil {
		issue, _, err = e.client.Issues.Edit(ctx, e.owner, e.repo, existing.GetNumber(), req)
		if err != nil {
			return "", errors.Wrap(err, "unable to update share issue")
		}
	} else {
		req.Labels = &[]string{label}
		issue, _, err = e.client.Issues.Create(ctx, e.owner, e.repo, req)
		if err != nil {
			return "", errors.Wrap(err, "unable to create share issue")
		}
	}
	return issue.GetHTMLURL(), nil
}

func (e *IssueExporter) findIssue(ctx context.Context, label string) (*github.Issue, error) {
	issues, _, err := e.client.Issues.ListByRepo(ctx, e.owner, e.repo, &github.IssueListByRepoOptions{
		Labels: []string{label},
		State:  "open",
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to search share issues")
	}
	if len(issues) == 0 {
		return nil, nil
	}
	return issues[0], nil
}
