package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
)

// MinKeyBits 允许的最小 RSA 模长
const MinKeyBits = 2048

var ErrKeyUnavailable = errors.New("key unavailable")

// Source 一把密钥的来源；PEM 优先于文件路径，便于在临时部署环境中通过环境变量注入
type Source struct {
	PEM  string
	Path string
}

func (s Source) empty() bool {
	return s.PEM == "" && s.Path == ""
}

func (s Source) read() ([]byte, error) {
	if s.PEM != "" {
		return []byte(s.PEM), nil
	}
	if s.Path != "" {
		return os.ReadFile(s.Path)
	}
	return nil, errors.New("no key source configured")
}

// Provider 进程内唯一的密钥对，首次使用时加载并缓存到进程结束，更换密钥需要重启
type Provider struct {
	private Source
	public  Source

	mu       sync.Mutex
	loaded   bool
	signing  *rsa.PrivateKey
	verifier *rsa.PublicKey
	err      error
}

// NewProvider 私钥来源可以为空（仅校验的客户端部署），公钥来源为空时从私钥推导
func NewProvider(private, public Source) *Provider {
	return &Provider{private: private, public: public}
}

// NewStaticProvider 直接使用内存中的密钥，主要用于测试和离线工具
func NewStaticProvider(priv *rsa.PrivateKey, pub *rsa.PublicKey) *Provider {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	return &Provider{loaded: true, signing: priv, verifier: pub}
}

// SigningKey 返回签名私钥
func (p *Provider) SigningKey() (*rsa.PrivateKey, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	if p.signing == nil {
		return nil, fmt.Errorf("%w: no private key configured", ErrKeyUnavailable)
	}
	return p.signing, nil
}

// VerificationKey 返回校验公钥
func (p *Provider) VerificationKey() (*rsa.PublicKey, error) {
	if err := p.load(); err != nil {
		return nil, err
	}
	return p.verifier, nil
}

func (p *Provider) load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return p.err
	}
	p.loaded = true
	p.signing, p.verifier, p.err = loadPair(p.private, p.public)
	return p.err
}

func loadPair(private, public Source) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	var priv *rsa.PrivateKey
	if !private.empty() {
		data, err := private.read()
		if err != nil && public.empty() {
			return nil, nil, fmt.Errorf("%w: read private key: %v", ErrKeyUnavailable, err)
		}
		if err == nil {
			priv, err = ParsePrivateKey(data)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	var pub *rsa.PublicKey
	if !public.empty() {
		data, err := public.read()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read public key: %v", ErrKeyUnavailable, err)
		}
		pub, err = ParsePublicKey(data)
		if err != nil {
			return nil, nil, err
		}
	}

	switch {
	case priv == nil && pub == nil:
		return nil, nil, fmt.Errorf("%w: no key source yielded a key", ErrKeyUnavailable)
	case pub == nil:
		pub = &priv.PublicKey
	case priv != nil && !priv.PublicKey.Equal(pub):
		// 签名与校验必须是同一对密钥，否则已签发的令牌全部失效
		return nil, nil, fmt.Errorf("%w: public key does not match private key", ErrKeyUnavailable)
	}
	return priv, pub, nil
}

// ParsePrivateKey 支持 PKCS#1（RSA PRIVATE KEY）与 PKCS#8（PRIVATE KEY）
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: private key is not PEM", ErrKeyUnavailable)
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		key = k
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is not RSA", ErrKeyUnavailable)
		}
		key = rk
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", ErrKeyUnavailable, block.Type)
	}

	if key.N.BitLen() < MinKeyBits {
		return nil, fmt.Errorf("%w: key is %d bits, need at least %d", ErrKeyUnavailable, key.N.BitLen(), MinKeyBits)
	}
	return key, nil
}

// ParsePublicKey 支持 PKIX（PUBLIC KEY）与 PKCS#1（RSA PUBLIC KEY）
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: public key is not PEM", ErrKeyUnavailable)
	}

	var key *rsa.PublicKey
	switch block.Type {
	case "PUBLIC KEY":
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		rk, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is not RSA", ErrKeyUnavailable)
		}
		key = rk
	case "RSA PUBLIC KEY":
		k, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		key = k
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", ErrKeyUnavailable, block.Type)
	}

	if key.N.BitLen() < MinKeyBits {
		return nil, fmt.Errorf("%w: key is %d bits, need at least %d", ErrKeyUnavailable, key.N.BitLen(), MinKeyBits)
	}
	return key, nil
}
