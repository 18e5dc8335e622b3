package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

// SourceKind selects where inbound commands are read from.
type SourceKind string

const (
	// SourceRelease reads the body of a repository's latest release.
	SourceRelease SourceKind = "release"
	// SourceIssues reads the bodies of open issues created by the owner.
	SourceIssues SourceKind = "issues"
	// SourceInstall reports whether a GitHub App is installed for the owner.
	SourceInstall SourceKind = "install"
	// SourceFile reads a local file.
	SourceFile SourceKind = "file"
	// SourceWebhook receives GitHub webhook deliveries.
	SourceWebhook SourceKind = "webhook"
)

// InstallCommand is the command SourceInstall delivers once the app is
// installed.
const InstallCommand = "install__ready"

// DefaultIssues is how many issues SourceIssues reads when unset.
const DefaultIssues = 1

// SourceConfig is a tagged source selection. Only the fields of Kind are
// read.
type SourceConfig struct {
	Kind   SourceKind
	GitHub GitHub
	// Issues caps how many open issues are read.
	Issues int
	// Path is the file read by SourceFile.
	Path string
	// Webhook configures SourceWebhook. GitHub.Owner, when set, restricts
	// issue deliveries to that author.
	Webhook WebhookConfig
	// Now overrides the clock used for rate-window pacing.
	Now func() time.Time
}

// ErrUnknownKind is returned for an unrecognised source or sink kind.
var ErrUnknownKind = errors.New("unknown provider kind")

// NewSeeker builds the Seeker for cfg.
func NewSeeker(ctx context.Context, cfg SourceConfig, logger *logging.Logger) (channel.Seeker, error) {
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger = logger.Named("source").With(zap.String("kind", string(cfg.Kind)))

	switch cfg.Kind {
	case SourceRelease, SourceIssues:
		if err := cfg.GitHub.validate(true); err != nil {
			return nil, fmt.Errorf("%s source: %w", cfg.Kind, err)
		}
		client, err := newGitHubClient(ctx, cfg.GitHub, false)
		if err != nil {
			return nil, fmt.Errorf("%s source: %w", cfg.Kind, err)
		}
		if cfg.Kind == SourceRelease {
			s := &releaseSource{git: cfg.GitHub, client: client, poll: newPoller(cfg.Now), logger: logger}
			return s.Seek, nil
		}
		limit := cfg.Issues
		if limit <= 0 {
			limit = DefaultIssues
		}
		s := &issuesSource{git: cfg.GitHub, limit: limit, client: client, poll: newPoller(cfg.Now), logger: logger}
		return s.Seek, nil

	case SourceInstall:
		if err := cfg.GitHub.validate(false); err != nil {
			return nil, fmt.Errorf("install source: %w", err)
		}
		client, err := newGitHubClient(ctx, cfg.GitHub, true)
		if err != nil {
			return nil, fmt.Errorf("install source: %w", err)
		}
		s := &installSource{owner: cfg.GitHub.Owner, client: client, poll: newPoller(cfg.Now), logger: logger}
		return s.Seek, nil

	case SourceFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file source: path is required")
		}
		s := &fileSource{path: cfg.Path}
		return s.Seek, nil

	case SourceWebhook:
		if cfg.Webhook.Addr == "" {
			return nil, fmt.Errorf("webhook source: address is required")
		}
		s, err := newWebhookSource(cfg.Webhook, cfg.GitHub.Owner, logger)
		if err != nil {
			return nil, fmt.Errorf("webhook source: %w", err)
		}
		if err := s.serve(ctx); err != nil {
			return nil, fmt.Errorf("webhook source: %w", err)
		}
		return s.Seek, nil
	}
	return nil, fmt.Errorf("source %q: %w", cfg.Kind, ErrUnknownKind)
}

type releaseSource struct {
	git    GitHub
	client *github.Client
	poll   *poller
	logger *logging.Logger
}

func (s *releaseSource) Seek(ctx context.Context, persist map[string]string) (channel.SeekResult, error) {
	path := fmt.Sprintf("repos/%s/%s/releases/latest", s.git.Owner, s.git.Repo)
	var rel github.RepositoryRelease
	resp, err := get(ctx, s.client, path, conditional(persist, true), &rel)
	if ctx.Err() != nil {
		return channel.SeekResult{}, ctx.Err()
	}

	status := statusOf(resp)
	var list command.List
	if status == http.StatusOK {
		list = parseBodies(ctx, s.logger, []string{rel.GetBody()})
	}
	s.logger.Trace(ctx, "polled release", zap.Int("status", status), zap.Int("commands", len(list)))

	res, err := s.poll.handle(status, rateOf(resp), list, err)
	if err != nil {
		return res, fmt.Errorf("latest release of %s/%s: %w", s.git.Owner, s.git.Repo, err)
	}
	res.Persist = validators(resp, true)
	return res, nil
}

type issuesSource struct {
	git    GitHub
	limit  int
	client *github.Client
	poll   *poller
	logger *logging.Logger
}

func (s *issuesSource) Seek(ctx context.Context, persist map[string]string) (channel.SeekResult, error) {
	q := url.Values{}
	q.Set("creator", s.git.Owner)
	q.Set("state", "open")
	path := fmt.Sprintf("repos/%s/%s/issues?%s", s.git.Owner, s.git.Repo, q.Encode())

	var issues []*github.Issue
	resp, err := get(ctx, s.client, path, conditional(persist, false), &issues)
	if ctx.Err() != nil {
		return channel.SeekResult{}, ctx.Err()
	}

	status := statusOf(resp)
	var list command.List
	if status == http.StatusOK {
		bodies := make([]string, 0, s.limit)
		for i, issue := range issues {
			if i >= s.limit {
				break
			}
			if body := issue.GetBody(); body != "" {
				bodies = append(bodies, body)
			}
		}
		list = parseBodies(ctx, s.logger, bodies)
	}
	s.logger.Trace(ctx, "polled issues", zap.Int("status", status), zap.Int("commands", len(list)))

	res, err := s.poll.handle(status, rateOf(resp), list, err)
	if err != nil {
		return res, fmt.Errorf("issues of %s/%s: %w", s.git.Owner, s.git.Repo, err)
	}
	res.Persist = validators(resp, false)
	return res, nil
}

type installSource struct {
	owner  string
	client *github.Client
	poll   *poller
	logger *logging.Logger
}

type installation struct {
	ID          int64             `json:"id"`
	Permissions map[string]string `json:"permissions"`
}

func (s *installSource) Seek(ctx context.Context, persist map[string]string) (channel.SeekResult, error) {
	path := fmt.Sprintf("users/%s/installation", s.owner)
	var inst installation
	resp, err := get(ctx, s.client, path, conditional(persist, false), &inst)
	if ctx.Err() != nil {
		return channel.SeekResult{}, ctx.Err()
	}

	status := statusOf(resp)
	var list command.List
	switch status {
	case http.StatusNotFound:
		// Not installed yet.
		status, err = http.StatusOK, nil
		list = command.List{}
	case http.StatusOK:
		perms := tree.NewBuilder()
		for k, v := range inst.Permissions {
			perms.String(k, v)
		}
		t, berr := tree.NewBuilder().
			String("id", strconv.FormatInt(inst.ID, 10)).
			Sub("permissions", perms).
			Build()
		if berr != nil {
			return channel.SeekResult{}, fmt.Errorf("installation of %s: %w", s.owner, berr)
		}
		list = command.List{{Command: InstallCommand, Tree: t}}
	}
	s.logger.Trace(ctx, "polled installation", zap.Int("status", statusOf(resp)))

	res, err := s.poll.handle(status, rateOf(resp), list, err)
	if err != nil {
		return res, fmt.Errorf("installation of %s: %w", s.owner, err)
	}
	res.Persist = validators(resp, false)
	return res, nil
}

type fileSource struct {
	path string
}

// Seek reads the whole file every poll. A missing file is an empty batch.
func (s *fileSource) Seek(context.Context, map[string]string) (channel.SeekResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return channel.SeekResult{}, nil
	}
	if err != nil {
		return channel.SeekResult{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	list, err := command.ParseList(string(data))
	if err != nil {
		return channel.SeekResult{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return channel.SeekResult{Commands: list}, nil
}
