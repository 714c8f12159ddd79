package service

import "errors"

// Validation errors are synchronous: they are returned to the caller before
// any job is created, unlike execution errors which land on the job record.
var (
	ErrUnsupportedSource   = errors.New("unsupported source")
	ErrUnknownOverlay      = errors.New("unknown overlay")
	ErrSourceNotReady      = errors.New("acquisition job is not completed")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
	ErrArtifactNotReady    = errors.New("artifact not available")
	ErrUnsupportedMimeType = errors.New("unsupported file type")
)
