package update

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // dictated by compatibility with published manifests
	"encoding/binary"
	"encoding/json"
	"hash"
	"io"

	"github.com/wuxler/upshift/pkg/errdefs"
)

// maxSignatureBytes bounds the declared signature length so a corrupt header
// cannot trigger a huge allocation. A 16384-bit RSA key needs 2 KiB.
const maxSignatureBytes = 64 * 1024

// CreateSigned reads the whole payload from src and writes the signed framing
// to dst: a big-endian uint32 signature length, the RSA PKCS#1 v1.5 signature
// over the SHA-1 hash of the payload, then the payload itself. The framing is
// bit-exact with already published manifests and MUST NOT be changed.
func CreateSigned(dst io.Writer, src io.Reader, key *rsa.PrivateKey) error {
	payload, err := io.ReadAll(src)
	if err != nil {
		return errdefs.NewE(errdefs.ErrFilesystem, err)
	}
	digest := sha1.Sum(payload) //nolint:gosec // see package note on the signature algorithm
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(signature)))
	if _, err := dst.Write(header[:]); err != nil {
		return err
	}
	if _, err := dst.Write(signature); err != nil {
		return err
	}
	_, err = dst.Write(payload)
	return err
}

// OpenVerifying reads the signed framing from src and returns a reader that
// streams the payload while hashing it. The signature is checked once the
// payload is exhausted: a short read loop that hits EOF, or Close, both force
// the check. Until the check has passed no byte of the payload may be treated
// as trusted; callers that parse incrementally must re-validate at Close.
func OpenVerifying(src io.Reader, pub *rsa.PublicKey) (io.ReadCloser, error) {
	var header [4]byte
	if _, err := io.ReadFull(src, header[:]); err != nil {
		return nil, errdefs.Newf(errdefs.ErrFormat, "missing signature header: %v", err)
	}
	siglen := binary.BigEndian.Uint32(header[:])
	if siglen == 0 || siglen > maxSignatureBytes {
		return nil, errdefs.Newf(errdefs.ErrFormat, "implausible signature length %d", siglen)
	}
	signature := make([]byte, siglen)
	if _, err := io.ReadFull(src, signature); err != nil {
		return nil, errdefs.Newf(errdefs.ErrTruncated, "short signature: %v", err)
	}
	return &verifyingReader{
		src:       src,
		signature: signature,
		pub:       pub,
		digest:    sha1.New(), //nolint:gosec // see package note on the signature algorithm
	}, nil
}

type verifyingReader struct {
	src       io.Reader
	signature []byte
	pub       *rsa.PublicKey
	digest    hash.Hash
	verified  bool
	err       error
}

// Read streams the payload, accumulating the hash. When the underlying stream
// is exhausted the signature is verified; a failed check surfaces as the read
// error instead of io.EOF.
func (r *verifyingReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.src.Read(p)
	if n > 0 {
		r.digest.Write(p[:n])
	}
	if err == io.EOF {
		if verr := r.verify(); verr != nil {
			return n, verr
		}
	}
	return n, err
}

// Close drains the rest of the payload so the signature check always runs,
// and returns its result.
func (r *verifyingReader) Close() error {
	if r.err != nil {
		return r.err
	}
	if !r.verified {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return err
		}
		if !r.verified {
			if err := r.verify(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *verifyingReader) verify() error {
	if r.verified {
		return nil
	}
	if err := rsa.VerifyPKCS1v15(r.pub, crypto.SHA1, r.digest.Sum(nil), r.signature); err != nil {
		r.err = errdefs.NewE(errdefs.ErrSignatureInvalid, err)
		return r.err
	}
	r.verified = true
	return nil
}

// ReadSignedManifest reads, verifies and deserializes a signed manifest.
// The payload is fully consumed and verified before any JSON parsing happens,
// so an invalid signature is indistinguishable from no manifest at all.
func ReadSignedManifest(src io.Reader, pub *rsa.PublicKey) (*UpdateInfo, error) {
	reader, err := OpenVerifying(src, pub)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if err := reader.Close(); err != nil {
		return nil, err
	}
	info := &UpdateInfo{}
	if err := json.Unmarshal(payload, info); err != nil {
		return nil, errdefs.NewE(errdefs.ErrFormat, err)
	}
	return info, nil
}

// WriteSignedManifest serializes the manifest and writes it as a signed stream.
func WriteSignedManifest(dst io.Writer, info *UpdateInfo, key *rsa.PrivateKey) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return errdefs.NewE(errdefs.ErrFormat, err)
	}
	return CreateSigned(dst, bytes.NewReader(payload), key)
}
