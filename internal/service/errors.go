package service

import (
	"errors"
	"fmt"
	"net/http"

	"license-token-service/internal/keys"
	"license-token-service/internal/model"
	"license-token-service/internal/token"
)

// Kind 对外稳定的错误类别，客户端只依赖这个标签判断结果
type Kind string

const (
	KindMalformedToken   Kind = "malformed_token"
	KindInvalidSignature Kind = "invalid_signature"
	KindMalformedPayload Kind = "malformed_payload"
	KindNotActivated     Kind = "not_activated"
	KindExpired          Kind = "expired"
	KindAlreadyActivated Kind = "already_activated"
	KindUnknownToken     Kind = "unknown_token"
	KindKeyUnavailable   Kind = "key_unavailable"
	KindRevoked          Kind = "revoked"
	KindSubjectMismatch  Kind = "subject_mismatch"
	KindInvalidSubject   Kind = "invalid_subject"
	KindInvalidDuration  Kind = "invalid_duration"
	KindInvalidExtra     Kind = "invalid_extra"
	KindDuplicatePayment Kind = "duplicate_payment"
	KindStoreUnavailable Kind = "store_unavailable"
)

var kindInfo = map[Kind]struct {
	message string
	status  int
}{
	KindMalformedToken:   {"token is not a well-formed license token", http.StatusBadRequest},
	KindInvalidSignature: {"token signature is not valid", http.StatusUnauthorized},
	KindMalformedPayload: {"token payload could not be read", http.StatusBadRequest},
	KindNotActivated:     {"license has not been activated yet", http.StatusForbidden},
	KindExpired:          {"license has expired", http.StatusForbidden},
	KindAlreadyActivated: {"license has already been activated", http.StatusConflict},
	KindUnknownToken:     {"license is not known to this server", http.StatusNotFound},
	KindKeyUnavailable:   {"signing keys are not available", http.StatusServiceUnavailable},
	KindRevoked:          {"license has been revoked", http.StatusForbidden},
	KindSubjectMismatch:  {"license was issued to a different subject", http.StatusForbidden},
	KindInvalidSubject:   {"subject must be a valid email address", http.StatusBadRequest},
	KindInvalidDuration:  {"duration must be a positive number of hours", http.StatusBadRequest},
	KindInvalidExtra:     {"extra may only contain strings, booleans, integers, arrays and objects", http.StatusBadRequest},
	KindDuplicatePayment: {"payment has already been processed", http.StatusConflict},
	KindStoreUnavailable: {"license store is temporarily unavailable", http.StatusServiceUnavailable},
}

// Message 该类别的固定提示语，不包含内部错误文本
func (k Kind) Message() string {
	if info, ok := kindInfo[k]; ok {
		return info.message
	}
	return "internal error"
}

// HTTPStatus 该类别对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Retryable 只有存储层的瞬时故障值得调用方重试
func (k Kind) Retryable() bool {
	return k == KindStoreUnavailable
}

// Error 携带类别的业务错误；Detail 与 Err 仅用于日志诊断
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按类别匹配，errors.Is(err, ErrExpired) 即可判断
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// 各类别的哨兵值，用于 errors.Is
var (
	ErrMalformedToken   = &Error{Kind: KindMalformedToken}
	ErrInvalidSignature = &Error{Kind: KindInvalidSignature}
	ErrMalformedPayload = &Error{Kind: KindMalformedPayload}
	ErrNotActivated     = &Error{Kind: KindNotActivated}
	ErrExpired          = &Error{Kind: KindExpired}
	ErrAlreadyActivated = &Error{Kind: KindAlreadyActivated}
	ErrUnknownToken     = &Error{Kind: KindUnknownToken}
	ErrKeyUnavailable   = &Error{Kind: KindKeyUnavailable}
	ErrRevoked          = &Error{Kind: KindRevoked}
	ErrSubjectMismatch  = &Error{Kind: KindSubjectMismatch}
	ErrInvalidSubject   = &Error{Kind: KindInvalidSubject}
	ErrInvalidDuration  = &Error{Kind: KindInvalidDuration}
	ErrInvalidExtra     = &Error{Kind: KindInvalidExtra}
	ErrDuplicatePayment = &Error{Kind: KindDuplicatePayment}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
)

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf 取出错误类别；非业务错误返回空字符串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify 把下层包的错误归入对外类别，未识别的一律视为存储故障
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, token.ErrMalformedToken):
		return newError(KindMalformedToken, "", err)
	case errors.Is(err, keys.ErrInvalidSignature):
		return newError(KindInvalidSignature, "", err)
	case errors.Is(err, token.ErrMalformedPayload):
		return newError(KindMalformedPayload, "", err)
	case errors.Is(err, keys.ErrKeyUnavailable):
		return newError(KindKeyUnavailable, "", err)
	case errors.Is(err, model.ErrDuplicatePayment):
		return newError(KindDuplicatePayment, "", err)
	case errors.Is(err, model.ErrRecordNotFound):
		return newError(KindUnknownToken, "", err)
	default:
		return newError(KindStoreUnavailable, "", err)
	}
}
