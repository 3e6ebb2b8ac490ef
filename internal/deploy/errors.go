package deploy

import "fmt"

// Code is a stable error code returned to the caller.
type Code string

const (
	// CodeValidation covers malformed mode selection, missing companion
	// fields, and an empty resulting file set.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeNotFound means the referenced project or its stored source is
	// unavailable (changes mode only).
	CodeNotFound Code = "NOT_FOUND"

	// CodeSizeLimit means a pre- or post-bundle byte budget was exceeded.
	CodeSizeLimit Code = "SIZE_LIMIT"

	// CodeBundleFailed covers entry detection, specifier resolution,
	// remote fetch, and toolchain compilation failures.
	CodeBundleFailed Code = "BUNDLE_FAILED"

	// CodeDeployFailed means the control plane rejected the deployment
	// after a successful, valid bundle.
	CodeDeployFailed Code = "DEPLOY_FAILED"
)

// Error is the structured failure every deploy attempt resolves to;
// nothing escapes the orchestrator as an opaque fault.
type Error struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
