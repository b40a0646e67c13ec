package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/quizcarry/internal/infra/fsx"
)

// File 把每个 key 存为 <Root>/<key>.json。
type File struct {
	Root string
}

func NewFile(root string) *File {
	return &File{Root: filepath.Clean(strings.TrimSpace(root))}
}

// Path 返回 key 对应的文件路径。
func (f *File) Path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.Root, k+".json"), nil
}

func (f *File) Read(_ context.Context, key string) ([]byte, bool, error) {
	path, err := f.Path(key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (f *File) Write(_ context.Context, key string, b []byte) error {
	path, err := f.Path(key)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, b)
}

func (f *File) Close() error { return nil }

var keyRE = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func cleanKey(k string) (string, error) {
	k = strings.TrimSpace(k)
	if k == "" {
		return "", fmt.Errorf("key 不能为空")
	}
	// 避免路径穿越："." / ".." 单独出现也不允许。
	if !keyRE.MatchString(k) || k == "." || k == ".." {
		return "", fmt.Errorf("非法 key：%q", k)
	}
	return k, nil
}
