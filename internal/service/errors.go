package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("资源不存在")
	// ErrInvalidInput 参数不合法
	ErrInvalidInput = errors.New("参数不合法")
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
