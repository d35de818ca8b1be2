package template

import "errors"

// Sentinel errors for the template service layer.
var (
	ErrNotFound    = errors.New("mapping template not found")
	ErrNameTaken   = errors.New("a template with this name already exists")
	ErrNameMissing = errors.New("template name is required")
)

// ValidationError reports a template that failed save-time rule validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid template: " + e.Reason }
