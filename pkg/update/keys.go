package update

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/wuxler/upshift/pkg/errdefs"
)

const (
	pemTypePrivateKey = "RSA PRIVATE KEY"
	pemTypePublicKey  = "PUBLIC KEY"

	// DefaultKeyBits is the key size used by GenerateKey.
	DefaultKeyBits = 2048
)

// GenerateKey creates a new RSA signing key.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// ParsePrivateKeyPEM parses a PEM encoded RSA private key, accepting both
// PKCS#1 and PKCS#8 encodings.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errdefs.Newf(errdefs.ErrFormat, "no PEM block found in private key data")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrFormat, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errdefs.Newf(errdefs.ErrFormat, "private key is not an RSA key")
	}
	return key, nil
}

// ParsePublicKeyPEM parses a PEM encoded RSA public key, accepting both
// PKIX and PKCS#1 encodings.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errdefs.Newf(errdefs.ErrFormat, "no PEM block found in public key data")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errdefs.NewE(errdefs.ErrFormat, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errdefs.Newf(errdefs.ErrFormat, "public key is not an RSA key")
	}
	return key, nil
}

// MarshalPrivateKeyPEM encodes the key as a PKCS#1 PEM block.
func MarshalPrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePrivateKey,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// MarshalPublicKeyPEM encodes the public key as a PKIX PEM block.
func MarshalPublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	encoded, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePublicKey,
		Bytes: encoded,
	}), nil
}
