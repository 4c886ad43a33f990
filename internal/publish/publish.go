package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// DefaultMessagePrefix starts every commit message.
const DefaultMessagePrefix = "Sync from Gemini Chat"

// Outcomes passed to Recorder.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
)

// ContentStore is the remote side of a publish. Implemented by *github.Client;
// inject a fake in tests.
type ContentStore interface {
	// FetchVersionToken returns the current sha of the file at t. found is
	// false only when the remote confirmed the file does not exist.
	FetchVersionToken(ctx context.Context, t Target) (sha string, found bool, err error)
	// WriteFile creates or overwrites the file at t.
	WriteFile(ctx context.Context, t Target, p WritePlan) (Written, error)
}

// Written describes the file after a successful write.
type Written struct {
	URL string
	SHA string
}

// Recorder observes finished publishes. Implemented by *metrics.ServerMetrics.
type Recorder interface {
	ObservePublish(outcome string, unchanged bool, d time.Duration)
}

type Config struct {
	Owner         string
	Repo          string
	Branch        string
	MessagePrefix string
}

func (c Config) missing() []string {
	var m []string
	if c.Owner == "" {
		m = append(m, "owner")
	}
	if c.Repo == "" {
		m = append(m, "repo")
	}
	return m
}

type Result struct {
	URL       string
	SHA       string
	Created   bool
	Unchanged bool
}

type Publisher struct {
	cfg   Config
	store ContentStore
	log   *slog.Logger
	rec   Recorder
}

type Option func(*Publisher)

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.rec = r }
}

func New(cfg Config, store ContentStore, opts ...Option) *Publisher {
	p := &Publisher{cfg: cfg, store: store}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Publish creates or overwrites filename with content in one commit.
//
// The version token is looked up right before the write. A lookup that fails
// for any reason other than a confirmed 404 aborts the publish.
func (p *Publisher) Publish(ctx context.Context, filename, content string) (*Result, error) {
	start := time.Now()
	res, err := p.publish(ctx, filename, content)
	if p.rec != nil {
		outcome, unchanged := OutcomeFailed, false
		if err == nil {
			outcome, unchanged = OutcomeUpdated, res.Unchanged
			if res.Created {
				outcome = OutcomeCreated
			}
		}
		p.rec.ObservePublish(outcome, unchanged, time.Since(start))
	}
	return res, err
}

func (p *Publisher) publish(ctx context.Context, filename, content string) (*Result, error) {
	if m := p.cfg.missing(); len(m) > 0 {
		return nil, &ConfigurationError{Missing: m}
	}
	path, err := CleanPath(filename)
	if err != nil {
		return nil, err
	}
	t := Target{Owner: p.cfg.Owner, Repo: p.cfg.Repo, Branch: p.cfg.Branch, Path: path}
	log := p.log.With("target", t.String())

	sha, found, err := p.store.FetchVersionToken(ctx, t)
	if err != nil {
		var rerr *RemoteReadError
		if !errors.As(err, &rerr) {
			err = &RemoteReadError{Path: t.Path, Err: err}
		}
		log.Warn("version lookup failed", "error", err)
		return nil, err
	}

	plan := Plan(t, p.cfg.MessagePrefix, []byte(content), sha, found)
	log.Debug("writing file", "exists", found, "unchanged", plan.Unchanged, "bytes", len(plan.Content))

	w, err := p.store.WriteFile(ctx, t, plan)
	if err != nil {
		log.Warn("write failed", "error", err)
		return nil, err
	}
	log.Info("file published", "created", !found, "unchanged", plan.Unchanged, "sha", w.SHA)
	return &Result{URL: w.URL, SHA: w.SHA, Created: !found, Unchanged: plan.Unchanged}, nil
}
