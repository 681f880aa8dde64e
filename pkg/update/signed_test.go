package update_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wuxler/upshift/pkg/errdefs"
	"github.com/wuxler/upshift/pkg/update"
)

func TestSignedStream_RoundTrip(t *testing.T) {
	payload := []byte(`{"hello":"world","padding":"0123456789abcdef"}`)

	signed := &bytes.Buffer{}
	require.NoError(t, update.CreateSigned(signed, bytes.NewReader(payload), testKey))

	reader, err := update.OpenVerifying(bytes.NewReader(signed.Bytes()), &testKey.PublicKey)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())

	assert.Equal(t, payload, got)
}

func TestSignedStream_CorruptedPayload(t *testing.T) {
	payload := []byte(`{"hello":"world"}`)
	signed := &bytes.Buffer{}
	require.NoError(t, update.CreateSigned(signed, bytes.NewReader(payload), testKey))

	// Flipping any single byte must make the stream unreadable.
	raw := signed.Bytes()
	for _, offset := range []int{0, 4, len(raw) - 1} {
		corrupted := bytes.Clone(raw)
		corrupted[offset] ^= 0x01

		reader, err := update.OpenVerifying(bytes.NewReader(corrupted), &testKey.PublicKey)
		if err != nil {
			continue // header corruption may already fail at open
		}
		_, err = io.ReadAll(reader)
		if err == nil {
			err = reader.Close()
		}
		assert.ErrorIs(t, err, errdefs.ErrSignatureInvalid, "offset %d", offset)
	}
}

func TestSignedStream_Truncated(t *testing.T) {
	payload := []byte("some payload")
	signed := &bytes.Buffer{}
	require.NoError(t, update.CreateSigned(signed, bytes.NewReader(payload), testKey))

	// Cut inside the signature block.
	_, err := update.OpenVerifying(bytes.NewReader(signed.Bytes()[:10]), &testKey.PublicKey)
	assert.ErrorIs(t, err, errdefs.ErrTruncated)
}

func TestSignedStream_MissingHeader(t *testing.T) {
	_, err := update.OpenVerifying(bytes.NewReader([]byte{0x01}), &testKey.PublicKey)
	assert.ErrorIs(t, err, errdefs.ErrFormat)
}

func TestSignedStream_ImplausibleLength(t *testing.T) {
	_, err := update.OpenVerifying(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}), &testKey.PublicKey)
	assert.ErrorIs(t, err, errdefs.ErrFormat)
}

func TestReadSignedManifest(t *testing.T) {
	info := &update.UpdateInfo{
		DisplayName: "Demo App",
		Version:     "2.1.0.0",
		ReleaseType: "Stable",
		ReleaseTime: testReleaseTime,
		RemoteURLs:  []string{"https://example.com/stable/package.zip"},
	}
	signed := signedManifestBytes(t, info)

	got, err := update.ReadSignedManifest(bytes.NewReader(signed), &testKey.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, info.DisplayName, got.DisplayName)
	assert.Equal(t, info.Version, got.Version)
	assert.True(t, got.IsRemote())
	assert.True(t, got.ReleaseTime.Equal(info.ReleaseTime))
}

func TestReadSignedManifest_WrongKey(t *testing.T) {
	other, err := update.GenerateKey(2048)
	require.NoError(t, err)

	signed := signedManifestBytes(t, &update.UpdateInfo{Version: "2.0"})
	_, err = update.ReadSignedManifest(bytes.NewReader(signed), &other.PublicKey)
	assert.ErrorIs(t, err, errdefs.ErrSignatureInvalid)
}

func TestSignedStream_BadJSONStillSigned(t *testing.T) {
	signed := &bytes.Buffer{}
	require.NoError(t, update.CreateSigned(signed, bytes.NewReader([]byte("not json")), testKey))

	_, err := update.ReadSignedManifest(bytes.NewReader(signed.Bytes()), &testKey.PublicKey)
	assert.ErrorIs(t, err, errdefs.ErrFormat)
}

func TestParseKeysPEM(t *testing.T) {
	pemPriv := update.MarshalPrivateKeyPEM(testKey)
	priv, err := update.ParsePrivateKeyPEM(pemPriv)
	require.NoError(t, err)
	assert.True(t, priv.Equal(testKey))

	pemPub := testPublicKeyPEM(t)
	pub, err := update.ParsePublicKeyPEM(pemPub)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&testKey.PublicKey))

	_, err = update.ParsePublicKeyPEM([]byte("garbage"))
	assert.ErrorIs(t, err, errdefs.ErrFormat)
}
