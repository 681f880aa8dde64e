package update

import (
	"crypto/md5" //nolint:gosec // manifest compatibility requires the dual MD5+SHA-256 digests
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/wuxler/upshift/pkg/util/xio"
)

// digestPair holds the dual digests recorded for every file, base64 encoded
// with the standard alphabet.
type digestPair struct {
	SHA256 string
	MD5    string
}

// hashReader consumes the reader and returns both digests and the byte count.
func hashReader(r io.Reader) (digestPair, int64, error) {
	sha := sha256.New()
	md := md5.New() //nolint:gosec // see type note
	n, err := io.Copy(io.MultiWriter(sha, md), r)
	if err != nil {
		return digestPair{}, n, err
	}
	return digestPair{
		SHA256: base64.StdEncoding.EncodeToString(sha.Sum(nil)),
		MD5:    base64.StdEncoding.EncodeToString(md.Sum(nil)),
	}, n, nil
}

// hashBytes returns both digests of the given content.
func hashBytes(data []byte) digestPair {
	sha := sha256.Sum256(data)
	md := md5.Sum(data) //nolint:gosec // see type note
	return digestPair{
		SHA256: base64.StdEncoding.EncodeToString(sha[:]),
		MD5:    base64.StdEncoding.EncodeToString(md[:]),
	}
}

// hashFile returns both digests of the file at path.
func (u *Updater) hashFile(path string) (digestPair, error) {
	f, err := u.fs.Open(path)
	if err != nil {
		return digestPair{}, err
	}
	defer xio.CloseAndSkipError(f)
	pair, _, err := hashReader(f)
	return pair, err
}
