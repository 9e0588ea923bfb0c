package model

import "errors"

// 存储层返回的错误，由业务层映射为对外的错误类别
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrRecordExists     = errors.New("record already exists")
	ErrDuplicatePayment = errors.New("payment reference already registered")
	ErrStateConflict    = errors.New("record state changed concurrently")
)
