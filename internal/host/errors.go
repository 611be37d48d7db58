package host

import "errors"

// Standard errors returned by the host.
var (
	// ErrAlreadyStarted indicates the analysis process is already running.
	ErrAlreadyStarted = errors.New("analysis process already started")

	// ErrNotStarted indicates the analysis process has not been started.
	ErrNotStarted = errors.New("analysis process not started")

	// ErrNoServerCommand indicates no lint server command is configured.
	ErrNoServerCommand = errors.New("no lint server command configured")

	// ErrUnknownConfigFormat indicates a config file with an unsupported
	// extension.
	ErrUnknownConfigFormat = errors.New("unknown config file format")

	// ErrDocumentNotOpen indicates a document lookup for a URI the
	// workspace does not have open.
	ErrDocumentNotOpen = errors.New("document not open")
)
