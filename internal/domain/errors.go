package domain

import (
	"errors"
	"fmt"
)

const (
	// ErrCodeUnsupportedSurface：找不到题目容器，或容器既不是结果页也不是作答页（致命，整次运行中止）。
	ErrCodeUnsupportedSurface = "unsupported_surface"
	ErrCodeMissingIdentifier  = "missing_identifier"
	ErrCodeUnsupportedType    = "unsupported_type"
	ErrCodeNoInputs           = "no_inputs"
	ErrCodeMissingAnswerData  = "missing_answer_data"
	ErrCodeNoMatch            = "no_match"
	// ErrCodeSnapshotNotFound / ErrCodeSnapshotCorrupt 只在回放路径上致命。
	ErrCodeSnapshotNotFound = "snapshot_not_found"
	ErrCodeSnapshotCorrupt  = "snapshot_corrupt"
	// ErrCodeFormatMismatch：快照结构与当前版本不一致（通常是旧版本快照），建议重新提取。
	ErrCodeFormatMismatch = "format_mismatch"
	ErrCodeIOFailed       = "io_failed"
)

// Error 是带 error_code 的结构化错误（条目级与致命错误共用）。
type Error struct {
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s：%s：%v", e.Code, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s：%s", e.Code, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf 构造一个带 code 的错误。
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Message 返回不带 code 前缀的错误描述（用于 report 的 error_msg）。
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" && e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Msg, e.Err)
		}
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Code
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
