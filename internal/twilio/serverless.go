package twilio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/robosms/twilio-sms-service/internal/domain"
)

// Serverless sub-API: staged resources (asset, build, environment,
// deployment) used solely to host an uploaded media file at a
// temporary public URL. All calls are scoped to the configured
// serverless service SID.

// BuildStatusCompleted is the terminal state the build poll waits for.
const BuildStatusCompleted = "completed"

// VisibilityProtected marks an asset version as non-public.
const VisibilityProtected = "protected"

type sidResource struct {
	SID string `json:"sid"`
}

// Environment is a short-lived serverless environment with a vendor
// generated public domain.
type Environment struct {
	SID        string `json:"sid"`
	DomainName string `json:"domain_name"`
}

// CreateAsset creates an empty asset placeholder and returns its SID.
func (c *Client) CreateAsset(ctx context.Context, serviceSID, friendlyName string) (string, error) {
	form := url.Values{}
	form.Set("FriendlyName", friendlyName)

	endpoint := fmt.Sprintf("%s/v1/Services/%s/Assets", c.ServerlessBase, serviceSID)

	var asset sidResource
	if err := c.postForm(ctx, endpoint, form, &asset); err != nil {
		return "", err
	}
	return asset.SID, nil
}

func (c *Client) DeleteAsset(ctx context.Context, serviceSID, assetSID string) error {
	return c.delete(ctx, fmt.Sprintf("%s/v1/Services/%s/Assets/%s", c.ServerlessBase, serviceSID, assetSID))
}

// UploadAssetVersion uploads the actual file content as a new version
// of the asset. The vendor's asset-version API has no content upload
// support, so this goes to the dedicated upload host as a multipart
// POST. Any non-2xx or unparseable response is a hard failure.
func (c *Client) UploadAssetVersion(ctx context.Context, serviceSID, assetSID, path, mimeType string, content []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("Path", path); err != nil {
		return "", err
	}
	if err := w.WriteField("Visibility", VisibilityProtected); err != nil {
		return "", err
	}

	part, err := w.CreateFormFile("Content", path)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1/Services/%s/Assets/%s/Versions", c.UploadBase, serviceSID, assetSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var version sidResource
	if err := json.Unmarshal(body, &version); err != nil || version.SID == "" {
		return "", &domain.UploadError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return version.SID, nil
}

// CreateBuild compiles the uploaded asset version and returns the
// build SID. The build is asynchronous; poll BuildStatus afterwards.
func (c *Client) CreateBuild(ctx context.Context, serviceSID, versionSID string) (string, error) {
	form := url.Values{}
	form.Set("AssetVersions", versionSID)

	endpoint := fmt.Sprintf("%s/v1/Services/%s/Builds", c.ServerlessBase, serviceSID)

	var build sidResource
	if err := c.postForm(ctx, endpoint, form, &build); err != nil {
		return "", err
	}
	return build.SID, nil
}

func (c *Client) BuildStatus(ctx context.Context, serviceSID, buildSID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/Services/%s/Builds/%s/Status", c.ServerlessBase, serviceSID, buildSID)

	var status struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, endpoint, &status); err != nil {
		return "", err
	}
	return status.Status, nil
}

func (c *Client) DeleteBuild(ctx context.Context, serviceSID, buildSID string) error {
	return c.delete(ctx, fmt.Sprintf("%s/v1/Services/%s/Builds/%s", c.ServerlessBase, serviceSID, buildSID))
}

// CreateEnvironment creates a short-lived environment with a vendor
// generated domain. The domain suffix is subject to a vendor-imposed
// max length; callers truncate before passing it in.
func (c *Client) CreateEnvironment(ctx context.Context, serviceSID, uniqueName, domainSuffix string) (Environment, error) {
	form := url.Values{}
	form.Set("UniqueName", uniqueName)
	form.Set("DomainSuffix", domainSuffix)

	endpoint := fmt.Sprintf("%s/v1/Services/%s/Environments", c.ServerlessBase, serviceSID)

	var env Environment
	if err := c.postForm(ctx, endpoint, form, &env); err != nil {
		return Environment{}, err
	}
	return env, nil
}

func (c *Client) DeleteEnvironment(ctx context.Context, serviceSID, environmentSID string) error {
	return c.delete(ctx, fmt.Sprintf("%s/v1/Services/%s/Environments/%s", c.ServerlessBase, serviceSID, environmentSID))
}

// CreateDeployment deploys a build into an environment. An empty
// buildSID creates an empty deployment, which is the documented way to
// detach the active build so the environment can be deleted.
func (c *Client) CreateDeployment(ctx context.Context, serviceSID, environmentSID, buildSID string) (string, error) {
	form := url.Values{}
	if buildSID != "" {
		form.Set("BuildSid", buildSID)
	}

	endpoint := fmt.Sprintf("%s/v1/Services/%s/Environments/%s/Deployments", c.ServerlessBase, serviceSID, environmentSID)

	var deployment sidResource
	if err := c.postForm(ctx, endpoint, form, &deployment); err != nil {
		return "", err
	}
	return deployment.SID, nil
}
