package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNonInteger 规范化编码只接受整数
var ErrNonInteger = errors.New("canonical: non-integer number")

// Canonical 生成确定性的 JSON 字节：任意层级的键排序、无多余空白、整数原样保留、不做 HTML 转义
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}

	generic, err := decodeGeneric(raw)
	if err != nil {
		return nil, err
	}
	if err := checkIntegers(generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// map 的键由 encoding/json 排序
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeGeneric(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return generic, nil
}

func checkIntegers(v any) error {
	switch t := v.(type) {
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return fmt.Errorf("%w: %s", ErrNonInteger, t)
		}
	case map[string]any:
		for _, item := range t {
			if err := checkIntegers(item); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range t {
			if err := checkIntegers(item); err != nil {
				return err
			}
		}
	}
	return nil
}
