//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// isEXDEV 判断 rename 是否因跨文件系统失败（*os.LinkError 会 Unwrap 到 errno）。
func isEXDEV(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
