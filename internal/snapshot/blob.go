package snapshot

import (
	"context"
	"fmt"
	"strings"
)

// Blob 是快照的字节存储：按 key 读写一整块数据，写入即覆盖。
//
// 约束：
// - Read 在 key 不存在时返回 ok=false 且 err=nil（“不存在”不是错误）
// - Write 对读者而言是原子的：要么旧值，要么完整的新值
type Blob interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, b []byte) error
	Close() error
}

// Open 按 store 地址选择后端：
// - redis:// 或 rediss://：Redis
// - sqlite://<path>：SQLite 文件（sqlite://:memory: 为内存库）
// - file://<dir> 或裸路径：目录下的 <key>.json
func Open(ctx context.Context, store string) (Blob, error) {
	store = strings.TrimSpace(store)
	switch {
	case store == "":
		return nil, fmt.Errorf("store 不能为空")
	case strings.HasPrefix(store, "redis://"), strings.HasPrefix(store, "rediss://"):
		return OpenRedis(ctx, store)
	case strings.HasPrefix(store, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(store, "sqlite://"))
	case strings.HasPrefix(store, "file://"):
		return NewFile(strings.TrimPrefix(store, "file://")), nil
	case strings.Contains(store, "://"):
		return nil, fmt.Errorf("不支持的 store 协议：%q", store)
	default:
		return NewFile(store), nil
	}
}
