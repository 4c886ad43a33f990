package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/shaun/chatsync/internal/publish"
	"golang.org/x/oauth2"
)

// ErrIsDirectory is returned when the target path names a directory.
var ErrIsDirectory = errors.New("path is a directory")

type Options struct {
	Token     string
	APIURL    string // optional; GitHub Enterprise or tests
	UserAgent string
	Timeout   time.Duration

	HTTPClient *http.Client // optional; base client for tests
}

// Client reads and writes single files through the GitHub Contents API.
type Client struct {
	gh *github.Client
}

func NewClient(opts Options) (*Client, error) {
	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	var httpClient *http.Client
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		httpClient = &hc
	} else {
		httpClient = &http.Client{}
	}
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}

	client := github.NewClient(httpClient)
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}
	if opts.APIURL != "" {
		u, err := url.Parse(opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("parse api url %q: %w", opts.APIURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}
	return &Client{gh: client}, nil
}

func statusCode(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func isNotFound(resp *github.Response, err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusNotFound
	}
	return statusCode(resp) == http.StatusNotFound
}

// FetchVersionToken returns the blob sha of the file at t. A 404 reports the
// file as absent; every other failure is returned as *publish.RemoteReadError.
func (c *Client) FetchVersionToken(ctx context.Context, t publish.Target) (string, bool, error) {
	var opts *github.RepositoryContentGetOptions
	if t.Branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: t.Branch}
	}
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, t.Owner, t.Repo, t.Path, opts)
	if err != nil {
		if isNotFound(resp, err) {
			return "", false, nil
		}
		return "", false, &publish.RemoteReadError{Path: t.Path, StatusCode: statusCode(resp), Err: err}
	}
	if file == nil {
		return "", false, &publish.RemoteReadError{Path: t.Path, StatusCode: statusCode(resp), Err: ErrIsDirectory}
	}
	return file.GetSHA(), true, nil
}

// WriteFile creates the file at t when p carries no sha, and updates it
// otherwise.
func (c *Client) WriteFile(ctx context.Context, t publish.Target, p publish.WritePlan) (publish.Written, error) {
	content := p.Content
	if content == nil {
		content = []byte{}
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(p.Message),
		Content: content,
		SHA:     p.SHA,
	}
	if t.Branch != "" {
		opts.Branch = github.String(t.Branch)
	}

	// GetContents escapes the path itself; CreateFile and UpdateFile do not.
	path := (&url.URL{Path: t.Path}).EscapedPath()

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
		err  error
	)
	if p.SHA == nil {
		res, resp, err = c.gh.Repositories.CreateFile(ctx, t.Owner, t.Repo, path, opts)
	} else {
		res, resp, err = c.gh.Repositories.UpdateFile(ctx, t.Owner, t.Repo, path, opts)
	}
	if err != nil {
		return publish.Written{}, writeError(resp, err)
	}
	if res == nil || res.Content == nil {
		return publish.Written{}, fmt.Errorf("write %s: response has no content", t.Path)
	}
	return publish.Written{URL: res.Content.GetHTMLURL(), SHA: res.Content.GetSHA()}, nil
}

// writeError keeps the raw response body; go-github leaves it readable after
// parsing the error.
func writeError(resp *github.Response, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		body := ""
		if ghErr.Response.Body != nil {
			if data, rerr := io.ReadAll(ghErr.Response.Body); rerr == nil {
				body = strings.TrimSpace(string(data))
			}
		}
		if body == "" {
			body = ghErr.Message
		}
		return &publish.RemoteWriteError{StatusCode: ghErr.Response.StatusCode, Body: body}
	}
	if code := statusCode(resp); code >= http.StatusMultipleChoices {
		return &publish.RemoteWriteError{StatusCode: code, Body: err.Error()}
	}
	return err
}
