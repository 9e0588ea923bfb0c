package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

// AlgPS256 RSASSA-PSS + SHA-256，写入令牌信封的 alg 标签
const AlgPS256 = "PS256"

var ErrInvalidSignature = errors.New("invalid signature")

// KeySource Signer 依赖的密钥提供者
type KeySource interface {
	SigningKey() (*rsa.PrivateKey, error)
	VerificationKey() (*rsa.PublicKey, error)
}

// Signer 对规范化字节签名并校验。PSS 带随机盐，同一输入两次签名结果不同
type Signer struct {
	keys KeySource
}

func NewSigner(keys KeySource) *Signer {
	return &Signer{keys: keys}
}

func (s *Signer) Alg() string {
	return AlgPS256
}

func (s *Signer) Sign(data []byte) ([]byte, error) {
	priv, err := s.keys.SigningKey()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify 盐长自动识别，兼容以最大盐长签发的旧令牌
func (s *Signer) Verify(data, sig []byte) error {
	pub, err := s.keys.VerificationKey()
	if err != nil {
		return err
	}
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
	}); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
