package service

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNoDefaultModel   = errors.New("未设置默认模型")
	ErrProviderDisabled = errors.New("模型服务商未启用")
	ErrProviderNotReady = errors.New("模型服务商缺少 API 地址或密钥")
	ErrInvalidInput     = errors.New("invalid input")
)

var validate = validator.New()
