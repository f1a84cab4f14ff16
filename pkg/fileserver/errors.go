package fileserver

import "errors"

var (
	// ErrForbidden is returned by Resolver.Resolve when a requested path
	// would leave the root directory.
	ErrForbidden = errors.New("path escapes root directory")

	// ErrMalformedRequest is returned when the request line cannot be parsed.
	// Connections that produce it are closed without a response.
	ErrMalformedRequest = errors.New("malformed request")
)
