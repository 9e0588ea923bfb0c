package token

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TypeLicense 信封中的 typ 标签
const TypeLicense = "LIC1"

var ErrMalformedToken = errors.New("malformed token")

// envelope 令牌的线上格式：base64url(canonical({alg, payload, sig, typ}))，
// payload 与 sig 均为无填充 base64url，保证签名字节在信封中原样保存
type envelope struct {
	Alg     string `json:"alg"`
	Payload string `json:"payload"`
	Sig     string `json:"sig"`
	Typ     string `json:"typ"`
}

// Pack 组装令牌字符串
func Pack(alg string, payload, signature []byte) (string, error) {
	env := envelope{
		Alg:     alg,
		Payload: encodeSegment(payload),
		Sig:     encodeSegment(signature),
		Typ:     TypeLicense,
	}
	b, err := Canonical(env)
	if err != nil {
		return "", err
	}
	return encodeSegment(b), nil
}

// Unpack 拆解令牌，返回载荷字节与签名；alg / typ 与期望不符时视为格式错误
func Unpack(tokenString, expectedAlg string) ([]byte, []byte, error) {
	env, payload, sig, err := decodeEnvelope(tokenString)
	if err != nil {
		return nil, nil, err
	}
	if env.Typ != TypeLicense {
		return nil, nil, fmt.Errorf("%w: unexpected typ %q", ErrMalformedToken, env.Typ)
	}
	if env.Alg != expectedAlg {
		return nil, nil, fmt.Errorf("%w: unexpected alg %q", ErrMalformedToken, env.Alg)
	}
	if len(payload) == 0 || len(sig) == 0 {
		return nil, nil, fmt.Errorf("%w: missing segment", ErrMalformedToken)
	}
	return payload, sig, nil
}

// Inspect 不校验签名，仅解出信封头与载荷，供排查工具使用
func Inspect(tokenString string) (alg, typ string, payload []byte, err error) {
	env, payload, _, err := decodeEnvelope(tokenString)
	if err != nil {
		return "", "", nil, err
	}
	return env.Alg, env.Typ, payload, nil
}

// decodeEnvelope 解出信封并要求其为规范编码：同一组 alg / payload / sig / typ 只有一种合法写法，
// 与 Fingerprint 一一对应
func decodeEnvelope(tokenString string) (envelope, []byte, []byte, error) {
	var env envelope
	tokenString = Normalize(tokenString)
	if tokenString == "" {
		return env, nil, nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	raw, err := decodeSegment(tokenString)
	if err != nil {
		return env, nil, nil, fmt.Errorf("%w: envelope is not base64url", ErrMalformedToken)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return env, nil, nil, fmt.Errorf("%w: envelope is not valid json", ErrMalformedToken)
	}

	payload, err := decodeSegment(env.Payload)
	if err != nil {
		return env, nil, nil, fmt.Errorf("%w: payload is not base64url", ErrMalformedToken)
	}
	sig, err := decodeSegment(env.Sig)
	if err != nil {
		return env, nil, nil, fmt.Errorf("%w: signature is not base64url", ErrMalformedToken)
	}

	canonical, err := Canonical(env)
	if err != nil || !bytes.Equal(canonical, raw) {
		return env, nil, nil, fmt.Errorf("%w: envelope is not canonical", ErrMalformedToken)
	}
	return env, payload, sig, nil
}

// Fingerprint 令牌字符串的 SHA-256 十六进制摘要，作为存储主键
func Fingerprint(tokenString string) string {
	sum := sha256.Sum256([]byte(Normalize(tokenString)))
	return hex.EncodeToString(sum[:])
}

// Normalize 去掉邮件复制带来的首尾空白和补齐的 '='。解码接受的每种写法都必须归一到同一个指纹
func Normalize(tokenString string) string {
	return strings.TrimRight(strings.TrimSpace(tokenString), "=")
}

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeSegment 只接受无填充 base64url，外层填充已由 Normalize 去掉
func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(s)
}
