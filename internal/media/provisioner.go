// Package media publishes a local or inline media payload at a URL
// the messaging vendor can fetch, using the vendor's serverless
// hosting sub-API, and releases every resource it created once the
// message has been sent.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aniladanir/retry"
	"github.com/google/uuid"
	"github.com/robosms/twilio-sms-service/internal/domain"
	"github.com/robosms/twilio-sms-service/internal/twilio"
)

const (
	// pollInterval is the pause between build status checks while the
	// vendor compiles the uploaded asset.
	pollInterval = 200 * time.Millisecond

	// maxPollAttempts bounds the build poll; exceeding it surfaces
	// domain.ErrProvisionTimeout instead of waiting forever.
	maxPollAttempts = 150

	// maxDomainSuffixLen is the vendor-imposed cap on environment
	// domain suffixes.
	maxDomainSuffixLen = 16

	fallbackMimeType = "application/octet-stream"
)

// API is the slice of the serverless sub-API the provisioner drives.
type API interface {
	CreateAsset(ctx context.Context, serviceSID, friendlyName string) (string, error)
	DeleteAsset(ctx context.Context, serviceSID, assetSID string) error
	UploadAssetVersion(ctx context.Context, serviceSID, assetSID, path, mimeType string, content []byte) (string, error)
	CreateBuild(ctx context.Context, serviceSID, versionSID string) (string, error)
	BuildStatus(ctx context.Context, serviceSID, buildSID string) (string, error)
	DeleteBuild(ctx context.Context, serviceSID, buildSID string) error
	CreateEnvironment(ctx context.Context, serviceSID, uniqueName, domainSuffix string) (twilio.Environment, error)
	DeleteEnvironment(ctx context.Context, serviceSID, environmentSID string) error
	CreateDeployment(ctx context.Context, serviceSID, environmentSID, buildSID string) (string, error)
}

// Session is the ephemeral state of one provisioning run. Each
// identifier is set only once its step has succeeded, and a session is
// owned exclusively by the send operation that created it.
type Session struct {
	ID       string
	FileName string

	AssetSID       string
	BuildSID       string
	EnvironmentSID string
	DeploymentSID  string

	URL string
}

// MediaURL returns the public URL of the hosted file, empty until the
// whole pipeline has completed.
func (s *Session) MediaURL() string {
	return s.URL
}

type Provisioner struct {
	client       API
	serviceSID   string
	logger       *slog.Logger
	retrier      *retry.Retrier
	pollInterval time.Duration
}

func NewProvisioner(client API, serviceSID string, logger *slog.Logger) (*Provisioner, error) {
	retrier, err := retry.New(retry.WithMaxAttemps(maxPollAttempts))
	if err != nil {
		return nil, fmt.Errorf("encountered error when initializing retrier: %w", err)
	}

	return &Provisioner{
		client:       client,
		serviceSID:   serviceSID,
		logger:       logger,
		retrier:      retrier,
		pollInterval: pollInterval,
	}, nil
}

// Provision runs the full pipeline: create asset, upload content,
// build, poll the build to completion, create an environment, deploy,
// and compose the public URL. On failure the partially populated
// session is returned alongside the error so the caller can tear down
// whatever was created.
func (p *Provisioner) Provision(ctx context.Context, src *domain.MediaSource) (*Session, error) {
	content, mimeType, fileName, err := resolveSource(src)
	if err != nil {
		return nil, &domain.ProvisionError{Step: "read source", Err: err}
	}

	sess := &Session{
		ID:       uuid.NewString(),
		FileName: fileName,
	}

	sess.AssetSID, err = p.client.CreateAsset(ctx, p.serviceSID, fileName)
	if err != nil {
		return sess, &domain.ProvisionError{Step: "create asset", Err: err}
	}

	versionSID, err := p.client.UploadAssetVersion(ctx, p.serviceSID, sess.AssetSID, "/"+fileName, mimeType, content)
	if err != nil {
		return sess, &domain.ProvisionError{Step: "upload content", Err: err}
	}

	sess.BuildSID, err = p.client.CreateBuild(ctx, p.serviceSID, versionSID)
	if err != nil {
		return sess, &domain.ProvisionError{Step: "create build", Err: err}
	}

	if err = p.awaitBuild(ctx, sess.BuildSID); err != nil {
		return sess, &domain.ProvisionError{Step: "poll build", Err: err}
	}

	env, err := p.client.CreateEnvironment(ctx, p.serviceSID, sess.ID, domainSuffix(sess.ID))
	if err != nil {
		return sess, &domain.ProvisionError{Step: "create environment", Err: err}
	}
	sess.EnvironmentSID = env.SID

	sess.DeploymentSID, err = p.client.CreateDeployment(ctx, p.serviceSID, sess.EnvironmentSID, sess.BuildSID)
	if err != nil {
		return sess, &domain.ProvisionError{Step: "create deployment", Err: err}
	}

	sess.URL = fmt.Sprintf("https://%s/%s", env.DomainName, fileName)

	return sess, nil
}

// awaitBuild polls the build status at a fixed short interval until it
// reaches the completed state or the attempt budget runs out.
func (p *Provisioner) awaitBuild(ctx context.Context, buildSID string) error {
	var pollErr error
	completed := false

	retryFunc := func(attempt int) (terminate bool) {
		var status string
		status, pollErr = p.client.BuildStatus(ctx, p.serviceSID, buildSID)
		if pollErr != nil {
			return true
		}
		if status == twilio.BuildStatusCompleted {
			completed = true
			return true
		}

		select {
		case <-ctx.Done():
			pollErr = ctx.Err()
			return true
		case <-time.After(p.pollInterval):
		}
		return false
	}

	<-p.retrier.Retry(ctx, retryFunc, true)

	if pollErr != nil {
		return pollErr
	}
	if !completed {
		return domain.ErrProvisionTimeout
	}
	return nil
}

// Teardown releases every resource the session created, in reverse
// order, skipping steps whose resource never came to exist. Failures
// are logged and do not abort the remaining deletions.
func (p *Provisioner) Teardown(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}

	log := p.logger.With(slog.String("session", sess.ID))

	if sess.EnvironmentSID != "" {
		// Detach the active build with an empty deployment first; the
		// environment delete then cascades over the deployment.
		if _, err := p.client.CreateDeployment(ctx, p.serviceSID, sess.EnvironmentSID, ""); err != nil {
			log.Error("failed to create empty deployment during teardown", "error", err.Error())
		}
		if err := p.client.DeleteEnvironment(ctx, p.serviceSID, sess.EnvironmentSID); err != nil {
			log.Error("failed to delete environment", "error", err.Error())
		}
	}

	if sess.BuildSID != "" {
		if err := p.client.DeleteBuild(ctx, p.serviceSID, sess.BuildSID); err != nil {
			log.Error("failed to delete build", "error", err.Error())
		}
	}

	if sess.AssetSID != "" {
		if err := p.client.DeleteAsset(ctx, p.serviceSID, sess.AssetSID); err != nil {
			log.Error("failed to delete asset", "error", err.Error())
		}
	}
}

// resolveSource loads the payload bytes and derives the declared MIME
// type and a file name: the original base name for local files, a
// generic name for inline payloads.
func resolveSource(src *domain.MediaSource) (content []byte, mimeType, fileName string, err error) {
	switch {
	case src.Path != "":
		content, err = os.ReadFile(src.Path)
		if err != nil {
			return nil, "", "", err
		}
		fileName = filepath.Base(src.Path)
		mimeType = src.MimeType
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(src.Path))
		}
	case len(src.Data) > 0:
		content = src.Data
		mimeType = src.MimeType
		fileName = "media-" + uuid.NewString()[:8] + extensionFor(mimeType)
	default:
		return nil, "", "", fmt.Errorf("media source has no content")
	}

	if mimeType == "" {
		mimeType = fallbackMimeType
	}
	return content, mimeType, fileName, nil
}

func extensionFor(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func domainSuffix(sessionID string) string {
	suffix := strings.ReplaceAll(sessionID, "-", "")
	if len(suffix) > maxDomainSuffixLen {
		suffix = suffix[:maxDomainSuffixLen]
	}
	return suffix
}
