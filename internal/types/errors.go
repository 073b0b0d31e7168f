package types

import "fmt"

// DriverInitError means the browser could not be started
type DriverInitError struct {
	Profile string
	Err     error
}

func (e *DriverInitError) Error() string {
	return fmt.Sprintf("browser init failed for profile %s: %v", e.Profile, e.Err)
}

func (e *DriverInitError) Unwrap() error { return e.Err }

// AuthError means a logged-in session could not be confirmed
type AuthError struct {
	Stage string
	Err   error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed at %s", e.Stage)
	}
	return fmt.Sprintf("authentication failed at %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NavigationError is a single page load or wait that did not complete
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExportError is a failure of the spreadsheet sink
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("export failed: %v", e.Err)
	}
	return fmt.Sprintf("export to %s failed: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ExternalServiceError is a non-200 answer from the screenshot service
type ExternalServiceError struct {
	Status int
	Body   string
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("screenshot service error: %d - %s", e.Status, e.Body)
}
