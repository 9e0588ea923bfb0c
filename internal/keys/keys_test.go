package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	keyA    *rsa.PrivateKey
	keyB    *rsa.PrivateKey
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		keyA, err = Generate(2048)
		require.NoError(t, err)
		keyB, err = Generate(2048)
		require.NoError(t, err)
	})
	return keyA, keyB
}

func TestProviderPrefersPEMOverPath(t *testing.T) {
	a, b := testKeys(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "priv.pem")
	require.NoError(t, os.WriteFile(path, EncodePrivatePEM(b), 0600))

	p := NewProvider(Source{PEM: string(EncodePrivatePEM(a)), Path: path}, Source{})

	priv, err := p.SigningKey()
	require.NoError(t, err)
	assert.True(t, priv.Equal(a))

	pub, err := p.VerificationKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(&a.PublicKey))
}

func TestProviderCachesAfterFirstLoad(t *testing.T) {
	a, _ := testKeys(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "priv.pem")
	require.NoError(t, os.WriteFile(path, EncodePrivatePEM(a), 0600))

	p := NewProvider(Source{Path: path}, Source{})

	var wg sync.WaitGroup
	results := make([]*rsa.PrivateKey, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := p.SigningKey()
			assert.NoError(t, err)
			results[i] = k
		}(i)
	}
	wg.Wait()
	for _, k := range results {
		assert.Same(t, results[0], k)
	}

	// 文件删除后仍从缓存读取
	require.NoError(t, os.Remove(path))
	k, err := p.SigningKey()
	require.NoError(t, err)
	assert.Same(t, results[0], k)
}

func TestProviderIndependentPublicKey(t *testing.T) {
	a, b := testKeys(t)
	pubA, err := EncodePublicPEM(&a.PublicKey)
	require.NoError(t, err)

	t.Run("matching", func(t *testing.T) {
		p := NewProvider(Source{PEM: string(EncodePrivatePEM(a))}, Source{PEM: string(pubA)})
		pub, err := p.VerificationKey()
		require.NoError(t, err)
		assert.True(t, pub.Equal(&a.PublicKey))
	})

	t.Run("mismatch", func(t *testing.T) {
		p := NewProvider(Source{PEM: string(EncodePrivatePEM(b))}, Source{PEM: string(pubA)})
		_, err := p.SigningKey()
		assert.ErrorIs(t, err, ErrKeyUnavailable)
		_, err = p.VerificationKey()
		assert.ErrorIs(t, err, ErrKeyUnavailable)
	})

	t.Run("verify_only", func(t *testing.T) {
		p := NewProvider(Source{Path: filepath.Join(t.TempDir(), "missing.pem")}, Source{PEM: string(pubA)})
		pub, err := p.VerificationKey()
		require.NoError(t, err)
		assert.True(t, pub.Equal(&a.PublicKey))

		_, err = p.SigningKey()
		assert.ErrorIs(t, err, ErrKeyUnavailable)
	})
}

func TestProviderKeyUnavailable(t *testing.T) {
	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	tests := []struct {
		name    string
		private Source
		public  Source
	}{
		{name: "no_source"},
		{name: "missing_file", private: Source{Path: filepath.Join(t.TempDir(), "nope.pem")}},
		{name: "garbage_pem", private: Source{PEM: "not a key"}},
		{name: "wrong_block", private: Source{PEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))}},
		{name: "too_small", private: Source{PEM: string(EncodePrivatePEM(small))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(tt.private, tt.public)
			_, err := p.SigningKey()
			assert.ErrorIs(t, err, ErrKeyUnavailable)
		})
	}
}

func TestParsePKCS8(t *testing.T) {
	a, _ := testKeys(t)
	der, err := x509.MarshalPKCS8PrivateKey(a)
	require.NoError(t, err)

	key, err := ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	require.NoError(t, err)
	assert.True(t, key.Equal(a))
}

func TestSignVerify(t *testing.T) {
	a, b := testKeys(t)
	signer := NewSigner(NewStaticProvider(a, nil))
	data := []byte(`{"subject":"user@example.com"}`)

	sig, err := signer.Sign(data)
	require.NoError(t, err)
	assert.NoError(t, signer.Verify(data, sig))
	assert.Equal(t, AlgPS256, signer.Alg())

	// PSS 随机盐：两次签名不同但都能通过校验
	sig2, err := signer.Sign(data)
	require.NoError(t, err)
	assert.NotEqual(t, sig, sig2)
	assert.NoError(t, signer.Verify(data, sig2))

	t.Run("single_bit_mutation", func(t *testing.T) {
		for i := 0; i < len(data)*8; i += 7 {
			mutated := append([]byte(nil), data...)
			mutated[i/8] ^= 1 << (i % 8)
			assert.ErrorIs(t, signer.Verify(mutated, sig), ErrInvalidSignature)
		}
	})

	t.Run("mutated_signature", func(t *testing.T) {
		bad := append([]byte(nil), sig...)
		bad[len(bad)-1] ^= 0x01
		assert.ErrorIs(t, signer.Verify(data, bad), ErrInvalidSignature)
	})

	t.Run("key_separation", func(t *testing.T) {
		other := NewSigner(NewStaticProvider(b, nil))
		assert.ErrorIs(t, other.Verify(data, sig), ErrInvalidSignature)
	})

	t.Run("max_salt_length", func(t *testing.T) {
		legacy := NewSigner(NewStaticProvider(a, nil))
		digest := sha256.Sum256(data)
		maxSalt, err := rsa.SignPSS(rand.Reader, a, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto})
		require.NoError(t, err)
		assert.NoError(t, legacy.Verify(data, maxSalt))
	})
}

func TestWritePair(t *testing.T) {
	a, _ := testKeys(t)
	dir := filepath.Join(t.TempDir(), "keys")

	privPath, pubPath, err := WritePair(dir, a)
	require.NoError(t, err)

	info, err := os.Stat(privPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	p := NewProvider(Source{Path: privPath}, Source{Path: pubPath})
	_, err = p.SigningKey()
	assert.NoError(t, err)

	_, _, err = WritePair(dir, a)
	assert.Error(t, err)
}
