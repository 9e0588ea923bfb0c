package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"license-token-service/internal/keys"
	"license-token-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeygenInspectVerify(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, keygen([]string{"-out", dir, "-bits", "2048"}, &out))
	assert.Contains(t, out.String(), "priv.pem")

	// 第二次不能覆盖已有密钥
	assert.Error(t, keygen([]string{"-out", dir, "-bits", "2048"}, &out))
	assert.Error(t, keygen([]string{"-out", t.TempDir(), "-bits", "1024"}, &out))

	provider := keys.NewProvider(keys.Source{Path: filepath.Join(dir, "priv.pem")}, keys.Source{})
	tok, _, err := service.NewIssuer(keys.NewSigner(provider), nil).Issue("user@example.com", 36, nil)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, inspect([]string{"-token", tok}, &out))
	var inspected map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &inspected))
	assert.Equal(t, true, inspected["untrusted"])
	assert.Equal(t, "PS256", inspected["alg"])

	out.Reset()
	require.NoError(t, verify([]string{"-token", tok, "-pub", filepath.Join(dir, "pub.pem")}, &out))
	var verified map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &verified))
	assert.Equal(t, "valid", verified["signature"])
	payload := verified["payload"].(map[string]any)
	assert.Equal(t, "user@example.com", payload["subject"])
	assert.Nil(t, payload["expires_at"])

	// 另一把公钥校验失败
	other := t.TempDir()
	require.NoError(t, keygen([]string{"-out", other, "-bits", "2048"}, &out))
	err = verify([]string{"-token", tok, "-pub", filepath.Join(other, "pub.pem")}, &out)
	assert.ErrorIs(t, err, service.ErrInvalidSignature)
}
