package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aniladanir/retry"
	"github.com/robosms/twilio-sms-service/internal/domain"
	"github.com/robosms/twilio-sms-service/internal/twilio"
)

// fakeAPI records every serverless call in order and lets individual
// steps be failed.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	buildStatuses []string
	statusIdx     int

	failCreateAsset  error
	failUpload       error
	failCreateBuild  error
	failEnvironment  error
	failDeployment   error
	failTeardownStep string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) CreateAsset(ctx context.Context, serviceSID, friendlyName string) (string, error) {
	f.record("create asset " + friendlyName)
	if f.failCreateAsset != nil {
		return "", f.failCreateAsset
	}
	return "ZH1", nil
}

func (f *fakeAPI) DeleteAsset(ctx context.Context, serviceSID, assetSID string) error {
	f.record("delete asset " + assetSID)
	if f.failTeardownStep == "asset" {
		return errors.New("asset delete failed")
	}
	return nil
}

func (f *fakeAPI) UploadAssetVersion(ctx context.Context, serviceSID, assetSID, path, mimeType string, content []byte) (string, error) {
	f.record(fmt.Sprintf("upload %s %s %d", path, mimeType, len(content)))
	if f.failUpload != nil {
		return "", f.failUpload
	}
	return "ZN1", nil
}

func (f *fakeAPI) CreateBuild(ctx context.Context, serviceSID, versionSID string) (string, error) {
	f.record("create build " + versionSID)
	if f.failCreateBuild != nil {
		return "", f.failCreateBuild
	}
	return "ZB1", nil
}

func (f *fakeAPI) BuildStatus(ctx context.Context, serviceSID, buildSID string) (string, error) {
	f.record("poll build " + buildSID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusIdx < len(f.buildStatuses) {
		status := f.buildStatuses[f.statusIdx]
		f.statusIdx++
		return status, nil
	}
	return "building", nil
}

func (f *fakeAPI) DeleteBuild(ctx context.Context, serviceSID, buildSID string) error {
	f.record("delete build " + buildSID)
	return nil
}

func (f *fakeAPI) CreateEnvironment(ctx context.Context, serviceSID, uniqueName, domainSuffix string) (twilio.Environment, error) {
	f.record("create environment " + domainSuffix)
	if f.failEnvironment != nil {
		return twilio.Environment{}, f.failEnvironment
	}
	return twilio.Environment{SID: "ZE1", DomainName: "svc-" + domainSuffix + ".twil.io"}, nil
}

func (f *fakeAPI) DeleteEnvironment(ctx context.Context, serviceSID, environmentSID string) error {
	f.record("delete environment " + environmentSID)
	return nil
}

func (f *fakeAPI) CreateDeployment(ctx context.Context, serviceSID, environmentSID, buildSID string) (string, error) {
	if buildSID == "" {
		f.record("create empty deployment " + environmentSID)
	} else {
		f.record("create deployment " + buildSID)
	}
	if f.failDeployment != nil && buildSID != "" {
		return "", f.failDeployment
	}
	return "ZD1", nil
}

func newTestProvisioner(t *testing.T, api API) *Provisioner {
	t.Helper()

	p, err := NewProvisioner(api, "ZS1", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("NewProvisioner() error: %v", err)
	}
	p.pollInterval = time.Millisecond
	return p
}

func writeMediaFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write media file: %v", err)
	}
	return path
}

func TestProvision_TotalOrderAndURL(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{buildStatuses: []string{"building", "completed"}}
	p := newTestProvisioner(t, api)

	path := writeMediaFile(t, "photo.png", "png-bytes")

	sess, err := p.Provision(context.Background(), &domain.MediaSource{Path: path})
	if err != nil {
		t.Fatalf("Provision() error: %v", err)
	}

	if sess.AssetSID != "ZH1" || sess.BuildSID != "ZB1" || sess.EnvironmentSID != "ZE1" || sess.DeploymentSID != "ZD1" {
		t.Fatalf("unexpected session ids: %+v", sess)
	}
	if !strings.HasPrefix(sess.URL, "https://svc-") || !strings.HasSuffix(sess.URL, "/photo.png") {
		t.Fatalf("unexpected media url: %q", sess.URL)
	}
	if sess.MediaURL() != sess.URL {
		t.Fatalf("MediaURL() mismatch")
	}

	calls := api.recorded()
	want := []string{
		"create asset photo.png",
		"upload /photo.png image/png 9",
		"create build ZN1",
		"poll build ZB1",
		"poll build ZB1",
		"create environment",
		"create deployment ZB1",
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(calls), calls)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(calls[i], prefix) {
			t.Fatalf("call %d: expected prefix %q, got %q", i, prefix, calls[i])
		}
	}
}

func TestProvision_InlinePayloadGetsGenericName(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{buildStatuses: []string{"completed"}}
	p := newTestProvisioner(t, api)

	sess, err := p.Provision(context.Background(), &domain.MediaSource{
		Data:     []byte("inline"),
		MimeType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Provision() error: %v", err)
	}

	if !strings.HasPrefix(sess.FileName, "media-") {
		t.Fatalf("expected generic file name, got %q", sess.FileName)
	}
}

func TestProvision_EmptySourceFails(t *testing.T) {
	t.Parallel()

	p := newTestProvisioner(t, &fakeAPI{})

	_, err := p.Provision(context.Background(), &domain.MediaSource{})

	var provErr *domain.ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
}

func TestProvision_UploadFailureReturnsPartialSession(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{failUpload: &domain.UploadError{StatusCode: 502, Body: "bad gateway"}}
	p := newTestProvisioner(t, api)

	path := writeMediaFile(t, "doc.txt", "text")

	sess, err := p.Provision(context.Background(), &domain.MediaSource{Path: path})

	var provErr *domain.ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	var uploadErr *domain.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected wrapped UploadError, got %v", err)
	}

	if sess == nil || sess.AssetSID != "ZH1" {
		t.Fatalf("expected partial session with asset sid, got %+v", sess)
	}
	if sess.BuildSID != "" || sess.EnvironmentSID != "" {
		t.Fatalf("expected no build/environment on upload failure, got %+v", sess)
	}
}

func TestProvision_PollTimeout(t *testing.T) {
	t.Parallel()

	// Build never completes; a tiny attempt budget must surface the
	// timeout error kind instead of waiting forever.
	api := &fakeAPI{}
	p := newTestProvisioner(t, api)

	retrier, err := retry.New(retry.WithMaxAttemps(2))
	if err != nil {
		t.Fatalf("failed to create retrier: %v", err)
	}
	p.retrier = retrier

	path := writeMediaFile(t, "slow.png", "x")

	sess, err := p.Provision(context.Background(), &domain.MediaSource{Path: path})
	if !errors.Is(err, domain.ErrProvisionTimeout) {
		t.Fatalf("expected ErrProvisionTimeout, got %v", err)
	}
	if sess.BuildSID != "ZB1" {
		t.Fatalf("expected partial session with build sid, got %+v", sess)
	}
}

func TestTeardown_FullSessionReverseOrder(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	p := newTestProvisioner(t, api)

	sess := &Session{
		ID:             "sess",
		AssetSID:       "ZH1",
		BuildSID:       "ZB1",
		EnvironmentSID: "ZE1",
		DeploymentSID:  "ZD1",
	}

	p.Teardown(context.Background(), sess)

	want := []string{
		"create empty deployment ZE1",
		"delete environment ZE1",
		"delete build ZB1",
		"delete asset ZH1",
	}
	calls := api.recorded()
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: expected %q, got %q", i, want[i], calls[i])
		}
	}
}

func TestTeardown_SkipsResourcesNeverCreated(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	p := newTestProvisioner(t, api)

	// Only the asset came to exist before the pipeline failed.
	p.Teardown(context.Background(), &Session{ID: "sess", AssetSID: "ZH1"})

	calls := api.recorded()
	if len(calls) != 1 || calls[0] != "delete asset ZH1" {
		t.Fatalf("expected only the asset delete, got %v", calls)
	}
}

func TestTeardown_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{failTeardownStep: "asset"}
	p := newTestProvisioner(t, api)

	sess := &Session{ID: "sess", AssetSID: "ZH1", BuildSID: "ZB1", EnvironmentSID: "ZE1"}

	// Must not panic or abort; the failing delete is logged only.
	p.Teardown(context.Background(), sess)

	calls := api.recorded()
	if len(calls) != 4 {
		t.Fatalf("expected all teardown steps attempted, got %v", calls)
	}
}

func TestTeardown_NilSessionIsNoop(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	p := newTestProvisioner(t, api)

	p.Teardown(context.Background(), nil)

	if calls := api.recorded(); len(calls) != 0 {
		t.Fatalf("expected no calls, got %v", calls)
	}
}

func TestDomainSuffix_Truncated(t *testing.T) {
	t.Parallel()

	suffix := domainSuffix("123e4567-e89b-12d3-a456-426614174000")
	if len(suffix) > maxDomainSuffixLen {
		t.Fatalf("expected suffix capped at %d chars, got %q", maxDomainSuffixLen, suffix)
	}
	if strings.Contains(suffix, "-") {
		t.Fatalf("expected dashes stripped, got %q", suffix)
	}
}
