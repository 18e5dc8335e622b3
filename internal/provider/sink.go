package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

// SinkKind selects where outbound commands are written.
type SinkKind string

const (
	// SinkSecret stores each command as an environment secret.
	SinkSecret SinkKind = "secret"
	// SinkDispatch sends the batch as a repository_dispatch event.
	SinkDispatch SinkKind = "dispatch"
	// SinkFile writes the batch to a file or writer.
	SinkFile SinkKind = "file"
)

// SinkConfig is a tagged sink selection. Only the fields of Kind are read.
type SinkConfig struct {
	Kind   SinkKind
	GitHub GitHub
	// Env is the deployment environment holding secrets.
	Env string
	// EventType is the repository_dispatch event type.
	EventType string
	// Key names the client_payload field carrying the batch.
	Key string
	// Path is the file written by SinkFile.
	Path string
	// Writer replaces Path when set.
	Writer io.Writer
	// Parallel caps concurrent secret writes. Default: 4
	Parallel int
	Retry    RetryConfig
}

// ErrSecretName is returned when a command cannot name a GitHub secret.
var ErrSecretName = errors.New("invalid secret name")

var secretName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewSender builds the Sender for cfg. GitHub sinks retry on transient
// failures.
func NewSender(ctx context.Context, cfg SinkConfig, logger *logging.Logger) (channel.Sender, error) {
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger = logger.Named("sink").With(zap.String("kind", string(cfg.Kind)))

	switch cfg.Kind {
	case SinkSecret:
		if err := cfg.GitHub.validate(true); err != nil {
			return nil, fmt.Errorf("secret sink: %w", err)
		}
		if cfg.Env == "" {
			return nil, fmt.Errorf("secret sink: environment is required")
		}
		client, err := newGitHubClient(ctx, cfg.GitHub, true)
		if err != nil {
			return nil, fmt.Errorf("secret sink: %w", err)
		}
		parallel := cfg.Parallel
		if parallel <= 0 {
			parallel = 4
		}
		s := &secretSink{git: cfg.GitHub, env: cfg.Env, parallel: parallel, client: client, logger: logger}
		return Retrying(s.Send, cfg.Retry, logger), nil

	case SinkDispatch:
		if err := cfg.GitHub.validate(true); err != nil {
			return nil, fmt.Errorf("dispatch sink: %w", err)
		}
		if cfg.EventType == "" || cfg.Key == "" {
			return nil, fmt.Errorf("dispatch sink: event type and key are required")
		}
		client, err := newGitHubClient(ctx, cfg.GitHub, true)
		if err != nil {
			return nil, fmt.Errorf("dispatch sink: %w", err)
		}
		s := &dispatchSink{git: cfg.GitHub, eventType: cfg.EventType, key: cfg.Key, client: client}
		return Retrying(s.Send, cfg.Retry, logger), nil

	case SinkFile:
		if cfg.Writer == nil && cfg.Path == "" {
			return nil, fmt.Errorf("file sink: path or writer is required")
		}
		s := &fileSink{path: cfg.Path, w: cfg.Writer}
		return s.Send, nil
	}
	return nil, fmt.Errorf("sink %q: %w", cfg.Kind, ErrUnknownKind)
}

type secretSink struct {
	git      GitHub
	env      string
	parallel int
	client   *github.Client
	logger   *logging.Logger

	mu     sync.Mutex
	repoID int64
}

// Send writes every command as its own secret, concurrently.
func (s *secretSink) Send(ctx context.Context, list command.List) error {
	for _, ct := range list {
		if !secretName.MatchString(ct.Command) {
			return permanent(fmt.Errorf("%w: %q", ErrSecretName, ct.Command))
		}
	}
	id, err := s.repositoryID(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, ct := range list {
		g.Go(func() error {
			return s.put(gctx, id, ct)
		})
	}
	return g.Wait()
}

func (s *secretSink) repositoryID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repoID != 0 {
		return s.repoID, nil
	}
	repo, _, err := s.client.Repositories.Get(ctx, s.git.Owner, s.git.Repo)
	if err != nil {
		return 0, fmt.Errorf("get repository %s/%s: %w", s.git.Owner, s.git.Repo, err)
	}
	s.repoID = repo.GetID()
	return s.repoID, nil
}

func (s *secretSink) put(ctx context.Context, repoID int64, ct command.Tree) error {
	key, _, err := s.client.Actions.GetEnvPublicKey(ctx, int(repoID), s.env)
	if err != nil {
		return fmt.Errorf("get public key of %s: %w", s.env, err)
	}
	sealed, err := seal(key.GetKey(), []byte(tree.Encode(ct.Tree)))
	if err != nil {
		return permanent(fmt.Errorf("seal %s: %w", ct.Command, err))
	}

	secret := &github.EncryptedSecret{
		Name:           ct.Command,
		KeyID:          key.GetKeyID(),
		EncryptedValue: sealed,
	}
	if _, err := s.client.Actions.CreateOrUpdateEnvSecret(ctx, int(repoID), s.env, secret); err != nil {
		return fmt.Errorf("put secret %s: %w", ct.Command, err)
	}
	s.logger.Debug(ctx, "secret written", zap.String("command", ct.Command), zap.String("env", s.env))
	return nil
}

// seal encrypts value to a base64 Curve25519 public key with an anonymous
// sealed box, the format GitHub expects for secrets.
func seal(publicKey string, value []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("public key is %d bytes, want 32", len(raw))
	}
	var pk [32]byte
	copy(pk[:], raw)

	out, err := box.SealAnonymous(nil, value, &pk, rand.Reader)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

type dispatchSink struct {
	git       GitHub
	eventType string
	key       string
	client    *github.Client
}

// Send posts one repository_dispatch whose client_payload maps the key to
// the batch's wire text.
func (s *dispatchSink) Send(ctx context.Context, list command.List) error {
	payload, err := json.Marshal(map[string]string{s.key: command.Format(list)})
	if err != nil {
		return permanent(err)
	}
	raw := json.RawMessage(payload)
	opts := github.DispatchRequestOptions{EventType: s.eventType, ClientPayload: &raw}
	if _, _, err := s.client.Repositories.Dispatch(ctx, s.git.Owner, s.git.Repo, opts); err != nil {
		return fmt.Errorf("dispatch %s to %s/%s: %w", s.eventType, s.git.Owner, s.git.Repo, err)
	}
	return nil
}

type fileSink struct {
	mu   sync.Mutex
	path string
	w    io.Writer
}

// Send replaces the file with the batch, or appends it to the writer.
func (s *fileSink) Send(_ context.Context, list command.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := command.Format(list)
	if s.w != nil {
		_, err := io.WriteString(s.w, text)
		return err
	}
	if err := os.WriteFile(s.path, []byte(text), 0600); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
