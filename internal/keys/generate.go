package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// Generate 生成新的 RSA 密钥对
func Generate(bits int) (*rsa.PrivateKey, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("key size %d is below %d bits", bits, MinKeyBits)
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodePrivatePEM PKCS#1 格式
func EncodePrivatePEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// EncodePublicPEM PKIX 格式
func EncodePublicPEM(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// WritePair 写出 priv.pem（0600）与 pub.pem，已存在时拒绝覆盖
func WritePair(dir string, key *rsa.PrivateKey) (string, string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", "", err
	}

	privPath := filepath.Join(dir, "priv.pem")
	pubPath := filepath.Join(dir, "pub.pem")
	for _, p := range []string{privPath, pubPath} {
		if _, err := os.Stat(p); err == nil {
			return "", "", fmt.Errorf("%s already exists", p)
		}
	}

	pubPEM, err := EncodePublicPEM(&key.PublicKey)
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(privPath, EncodePrivatePEM(key), 0600); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(pubPath, pubPEM, 0644); err != nil {
		return "", "", err
	}
	return privPath, pubPath, nil
}
