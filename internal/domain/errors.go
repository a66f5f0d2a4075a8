package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandRequired signals a request without a discriminator.
	ErrCommandRequired = errors.New("command is required")

	// ErrPresetRequired signals a send attempted without a preset while
	// preset enforcement is active.
	ErrPresetRequired = errors.New("a preset must be provided when presets are enforced")

	// ErrProvisionTimeout signals that the vendor build never reached
	// the completed state within the polling budget.
	ErrProvisionTimeout = errors.New("media provisioning timed out")

	// ErrTelemetryMisconfigured signals that telemetry mirroring was
	// requested but the store credentials are incomplete.
	ErrTelemetryMisconfigured = errors.New("telemetry store is enabled but not fully configured")
)

// UnknownCommandError reports a discriminator value outside the known set.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// PresetNotFoundError reports a preset name with no mapping entry.
type PresetNotFoundError struct {
	Name string
}

func (e *PresetNotFoundError) Error() string {
	return fmt.Sprintf("preset %q is not defined", e.Name)
}

// ProvisionError wraps a failure of one step of the media provisioning
// pipeline. These are hard failures: the send is aborted before the
// message is dispatched.
type ProvisionError struct {
	Step string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("media provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// UploadError reports a failed or unparseable response from the direct
// content upload call, which runs outside the vendor's regular API.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("media upload rejected with status %d: %s", e.StatusCode, e.Body)
}
