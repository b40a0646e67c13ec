package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/John-Robertt/quizcarry/internal/domain"
)

// Store 在固定 key 下保存/读取一份快照（记录数组）。
type Store struct {
	blob     Blob
	key      string
	validate *validator.Validate
}

func New(blob Blob, key string) *Store {
	return &Store{blob: blob, key: key, validate: validator.New()}
}

func (s *Store) Key() string { return s.key }

// Persist 把题目转换为纯数据记录并整体覆盖写入。
func (s *Store) Persist(ctx context.Context, questions []domain.Question) ([]domain.Record, error) {
	records := make([]domain.Record, 0, len(questions))
	for _, q := range questions {
		r := q.Record()
		if err := s.validate.Struct(r); err != nil {
			return nil, &domain.Error{Code: domain.ErrCodeFormatMismatch, Msg: fmt.Sprintf("题目 %d 的记录不合法", q.ID), Err: err}
		}
		records = append(records, r)
	}

	b, err := json.Marshal(records)
	if err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Msg: "编码快照失败", Err: err}
	}
	if err := s.blob.Write(ctx, s.key, b); err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Msg: fmt.Sprintf("写入快照 %q 失败", s.key), Err: err}
	}
	return records, nil
}

// Load 读取快照，原样返回记录（逐条校验留给回放阶段）。
//
// - 不存在：snapshot_not_found
// - 整体不是 JSON 数组：snapshot_corrupt
// - 单条记录解析失败：只设置该条的 DecodeErr，其它记录照常返回
func (s *Store) Load(ctx context.Context) ([]domain.Record, error) {
	b, ok, err := s.blob.Read(ctx, s.key)
	if err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeIOFailed, Msg: fmt.Sprintf("读取快照 %q 失败", s.key), Err: err}
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrCodeSnapshotNotFound, "没有找到快照 %q，请先在结果页提取答案", s.key)
	}

	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, domain.Errorf(domain.ErrCodeSnapshotCorrupt, "快照 %q 不是 JSON 数组", s.key)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeSnapshotCorrupt, Msg: fmt.Sprintf("快照 %q 无法解析", s.key), Err: err}
	}

	records := make([]domain.Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, decodeRecord(raw))
	}
	return records, nil
}

// decodeRecord 解析单条记录；失败时尽力保留 id 与 type，便于定位。
func decodeRecord(raw json.RawMessage) domain.Record {
	var r domain.Record
	err := json.Unmarshal(raw, &r)
	if err == nil {
		return r
	}

	r = domain.Record{DecodeErr: err}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) == nil {
		_ = json.Unmarshal(fields["id"], &r.ID)
		_ = json.Unmarshal(fields["type"], &r.Type)
	}
	return r
}
