package errdefs

import "errors"

var (
	// ErrNotFound signals that the requested object doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter signals that the user input is invalid.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAlreadyExists signals that the resource already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnsupported indicates that the action was not supported.
	ErrUnsupported = errors.New("unsupported")

	// ErrTransport signals a network failure while talking to an update server.
	ErrTransport = errors.New("transport error")

	// ErrFormat signals malformed content: invalid JSON, a broken archive or a
	// signed stream without the expected framing.
	ErrFormat = errors.New("malformed content")

	// ErrTruncated signals that a stream ended before the declared content was read.
	ErrTruncated = errors.New("truncated stream")

	// ErrSignatureInvalid signals that a signed stream failed signature verification.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrIntegrityMismatch signals that a downloaded package does not match the
	// size or digests declared by its manifest.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrPathUnsafe signals an archive member whose path would escape the
	// extraction directory.
	ErrPathUnsafe = errors.New("unsafe path")

	// ErrVerificationFailed signals that an unpacked install tree does not match
	// its embedded manifest.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrFilesystem signals a local filesystem failure.
	ErrFilesystem = errors.New("filesystem error")

	// ErrLaunch signals that a child process could not be spawned or waited on.
	ErrLaunch = errors.New("launch error")
)
