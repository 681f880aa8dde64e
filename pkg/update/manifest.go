package update

import (
	"strings"
	"time"
)

const (
	// ManifestFilename is the name of the signed manifest file, both inside a
	// package archive and next to an unpacked install tree.
	ManifestFilename = "autoupdate.manifest"

	// PackageFilename is the name of the archive produced by the builder.
	PackageFilename = "package.zip"
)

// UpdateInfo describes one application version. A remote manifest (served by
// an update server) carries package digests and download URLs and a nil Files
// list; an embedded manifest (inside the package and next to an unpacked
// install) carries the per-file table and nil RemoteURLs.
type UpdateInfo struct {
	DisplayName      string      `json:"displayname"`
	Version          string      `json:"version"`
	ReleaseTime      time.Time   `json:"release_time"`
	ReleaseType      string      `json:"release_type"`
	CompressedSize   int64       `json:"compressed_size"`
	MD5              string      `json:"MD5,omitempty"`
	SHA256           string      `json:"SHA256,omitempty"`
	RemoteURLs       []string    `json:"remote_urls,omitempty"`
	UncompressedSize int64       `json:"uncompressed_size"`
	Files            []FileEntry `json:"files,omitempty"`
}

// FileEntry describes one member of an unpacked install tree. Paths are
// archive-relative and forward-slash separated; directory entries carry a
// trailing "/" and no digests. Entries with Ignore set may or may not exist
// on disk, and ignored directories exclude their whole subtree from
// verification.
type FileEntry struct {
	Path          string    `json:"path"`
	Ignore        bool      `json:"ignore,omitempty"`
	LastWriteTime time.Time `json:"last_write_time"`
	SHA256        string    `json:"SHA256,omitempty"`
	MD5           string    `json:"MD5,omitempty"`
}

// IsDirectory reports whether the entry describes a directory.
func (e FileEntry) IsDirectory() bool {
	return strings.HasSuffix(e.Path, "/")
}

// ParsedVersion returns the canonical parsed version.
func (u *UpdateInfo) ParsedVersion() Version {
	return ParseVersion(u.Version)
}

// ParsedReleaseType parses the release type name, case-insensitively.
func (u *UpdateInfo) ParsedReleaseType() ReleaseType {
	return ParseReleaseType(u.ReleaseType)
}

// IsRemote reports whether the manifest has the remote shape.
func (u *UpdateInfo) IsRemote() bool {
	return len(u.Files) == 0 && len(u.RemoteURLs) > 0
}

// IsEmbedded reports whether the manifest has the embedded shape.
func (u *UpdateInfo) IsEmbedded() bool {
	return len(u.Files) > 0
}
