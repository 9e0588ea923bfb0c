package token

import (
	"encoding/base64"
	"strings"
	"testing"

	"license-token-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload() *model.LicensePayload {
	return &model.LicensePayload{
		Subject:       "user@example.com",
		IssuedAt:      1700000000,
		DurationHours: 36,
		Version:       model.CurrentPayloadVersion,
		LicenseID:     "0263cfe1-45d8-4851-be30-893a439aa581",
		Extra:         map[string]any{"plan": "basic", "source": "paypal", "gift": true},
	}
}

func TestCanonicalSortsKeys(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"z": "x", "c": []any{2, 1}}}
	b := map[string]any{"a": map[string]any{"c": []any{2, 1}, "z": "x"}, "b": 1}

	ca, err := Canonical(a)
	require.NoError(t, err)
	cb, err := Canonical(b)
	require.NoError(t, err)

	assert.Equal(t, `{"a":{"c":[2,1],"z":"x"},"b":1}`, string(ca))
	assert.Equal(t, ca, cb)
}

func TestCanonicalKeepsIntegersAndHTML(t *testing.T) {
	out, err := Canonical(map[string]any{"n": int64(9007199254740993), "s": "<a&b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993,"s":"<a&b>"}`, string(out))

	_, err = Canonical(map[string]any{"f": 1.5})
	assert.ErrorIs(t, err, ErrNonInteger)
}

func TestEncodePayloadShape(t *testing.T) {
	p := samplePayload()
	p.Extra = nil

	out, err := EncodePayload(p)
	require.NoError(t, err)
	assert.Equal(t,
		`{"activated_at":null,"duration_hours":36,"expires_at":null,"issued_at":1700000000,"license_id":"0263cfe1-45d8-4851-be30-893a439aa581","subject":"user@example.com","version":1}`,
		string(out))
}

func TestPayloadRoundTrip(t *testing.T) {
	activated := int64(1700000500)
	expires := activated + 36*3600

	tests := []struct {
		name    string
		payload *model.LicensePayload
	}{
		{name: "pending", payload: samplePayload()},
		{name: "no_extra", payload: func() *model.LicensePayload {
			p := samplePayload()
			p.Extra = nil
			return p
		}()},
		{name: "with_window", payload: func() *model.LicensePayload {
			p := samplePayload()
			p.ActivatedAt = &activated
			p.ExpiresAt = &expires
			return p
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodePayload(tt.payload)
			require.NoError(t, err)

			decoded, err := DecodePayload(b)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, decoded)

			again, err := EncodePayload(decoded)
			require.NoError(t, err)
			assert.Equal(t, b, again)
		})
	}
}

func TestPayloadEncodingIsStableWithNumericExtra(t *testing.T) {
	p := samplePayload()
	p.Extra = map[string]any{"seats": 3, "nested": map[string]any{"k": int64(7)}}

	b, err := EncodePayload(p)
	require.NoError(t, err)
	decoded, err := DecodePayload(b)
	require.NoError(t, err)
	again, err := EncodePayload(decoded)
	require.NoError(t, err)

	assert.Equal(t, string(b), string(again))
}

func TestDecodePayloadRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not_json", data: `not json`},
		{name: "null", data: `null`},
		{name: "missing_subject", data: `{"duration_hours":1,"issued_at":1,"license_id":"x","version":1}`},
		{name: "empty_subject", data: `{"duration_hours":1,"issued_at":1,"license_id":"x","subject":" ","version":1}`},
		{name: "missing_issued_at", data: `{"duration_hours":1,"license_id":"x","subject":"a@b.c","version":1}`},
		{name: "zero_duration", data: `{"duration_hours":0,"issued_at":1,"license_id":"x","subject":"a@b.c","version":1}`},
		{name: "float_duration", data: `{"duration_hours":1.5,"issued_at":1,"license_id":"x","subject":"a@b.c","version":1}`},
		{name: "missing_license_id", data: `{"duration_hours":1,"issued_at":1,"subject":"a@b.c","version":1}`},
		{name: "future_version", data: `{"duration_hours":1,"issued_at":1,"license_id":"x","subject":"a@b.c","version":99}`},
		{name: "extra_not_object", data: `{"duration_hours":1,"extra":"x","issued_at":1,"license_id":"x","subject":"a@b.c","version":1}`},
		{name: "trailing_data", data: `{"duration_hours":1,"issued_at":1,"license_id":"x","subject":"a@b.c","version":1} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestPackUnpack(t *testing.T) {
	payload := []byte(`{"subject":"user@example.com"}`)
	sig := []byte{0x01, 0x02, 0xfe, 0xff}

	tok, err := Pack("PS256", payload, sig)
	require.NoError(t, err)
	assert.NotContains(t, tok, "=")
	assert.NotContains(t, tok, ".")

	gotPayload, gotSig, err := Unpack(tok, "PS256")
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, sig, gotSig)

	// 复制粘贴带来的空白与补齐的填充都可以接受
	padded := tok + strings.Repeat("=", (4-len(tok)%4)%4)
	gotPayload, _, err = Unpack("  "+padded+"\n", "PS256")
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, Fingerprint(tok), Fingerprint("  "+padded+"\n"))
	assert.Equal(t, Fingerprint(tok), Fingerprint(tok+"=="))
}

func TestUnpackRejectsNonCanonicalEnvelope(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	// 规范写法可以通过
	canonical := enc(`{"alg":"PS256","payload":"e30","sig":"c2ln","typ":"LIC1"}`)
	_, _, err := Unpack(canonical, "PS256")
	require.NoError(t, err)

	tests := []struct {
		name     string
		envelope string
	}{
		{name: "key_order", envelope: `{"typ":"LIC1","alg":"PS256","payload":"e30","sig":"c2ln"}`},
		{name: "whitespace", envelope: `{"alg": "PS256", "payload": "e30", "sig": "c2ln", "typ": "LIC1"}`},
		{name: "trailing_newline", envelope: "{\"alg\":\"PS256\",\"payload\":\"e30\",\"sig\":\"c2ln\",\"typ\":\"LIC1\"}\n"},
		{name: "key_case", envelope: `{"ALG":"PS256","payload":"e30","sig":"c2ln","typ":"LIC1"}`},
		{name: "escaped_string", envelope: `{"alg":"PS\u0032\u0035\u0036","payload":"e30","sig":"c2ln","typ":"LIC1"}`},
		{name: "duplicate_key", envelope: `{"alg":"PS256","payload":"e30","sig":"c2ln","typ":"LIC1","sig":"c2ln"}`},
		{name: "padded_inner_sig", envelope: `{"alg":"PS256","payload":"e30","sig":"c2lnZw==","typ":"LIC1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Unpack(enc(tt.envelope), "PS256")
			assert.ErrorIs(t, err, ErrMalformedToken)
			_, _, _, err = Inspect(enc(tt.envelope))
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestUnpackRejects(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	good, err := Pack("PS256", []byte("{}"), []byte("sig"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not_base64", token: "!!!"},
		{name: "not_json", token: enc("hello")},
		{name: "two_segment_legacy", token: enc(`{"a":1}`) + "." + enc("sig")},
		{name: "wrong_typ", token: enc(`{"alg":"PS256","payload":"e30","sig":"c2ln","typ":"JWT"}`)},
		{name: "unknown_field", token: enc(`{"alg":"PS256","kid":"1","payload":"e30","sig":"c2ln","typ":"LIC1"}`)},
		{name: "missing_sig", token: enc(`{"alg":"PS256","payload":"e30","sig":"","typ":"LIC1"}`)},
		{name: "bad_payload_segment", token: enc(`{"alg":"PS256","payload":"*","sig":"c2ln","typ":"LIC1"}`)},
		{name: "wrong_alg", token: good},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := "PS256"
			if tt.name == "wrong_alg" {
				expected = "PS512"
			}
			_, _, err := Unpack(tt.token, expected)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestInspect(t *testing.T) {
	tok, err := Pack("PS256", []byte(`{"x":1}`), []byte("sig"))
	require.NoError(t, err)

	alg, typ, payload, err := Inspect(tok)
	require.NoError(t, err)
	assert.Equal(t, "PS256", alg)
	assert.Equal(t, TypeLicense, typ)
	assert.Equal(t, `{"x":1}`, string(payload))
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("abc")
	assert.Len(t, fp, 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", fp)
	assert.Equal(t, fp, Fingerprint(" abc\n"))
	assert.Equal(t, fp, Fingerprint("abc=="))
	assert.NotEqual(t, fp, Fingerprint("abd"))
}
