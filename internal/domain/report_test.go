package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	id := int64(7)
	r := RunReport{
		Mode:       ModeReplay,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Stage: StageImport, Index: 2, Status: StatusFailed, ErrorCode: ErrCodeNoMatch},
			{Stage: StageExtract, Index: 2, Status: StatusFailed, ErrorCode: ErrCodeUnsupportedType},
			{Stage: StageImport, Index: 1, QuestionID: &id, Status: StatusImported},
			{Stage: StageExtract, Index: 1, QuestionID: &id, Status: StatusProcessed},
		},
	}

	r.Finalize()

	want := []struct {
		stage string
		index int
	}{{StageExtract, 1}, {StageExtract, 2}, {StageImport, 1}, {StageImport, 2}}
	for i, w := range want {
		if r.Items[i].Stage != w.stage || r.Items[i].Index != w.index {
			t.Fatalf("items[%d] 排序不符合契约：stage=%s index=%d", i, r.Items[i].Stage, r.Items[i].Index)
		}
	}

	s := r.Summary
	if s.Processed != 1 || s.Total != 2 || s.Imported != 1 || s.Records != 2 || s.Failed != 2 || s.Fatal {
		t.Fatalf("summary 统计不正确：%+v", s)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
	// warnings 必须输出为 []，而不是 null。
	if bytes.Contains(b, []byte("\"warnings\":null")) {
		t.Fatalf("warnings 不应为 null：%s", string(b))
	}
}

func TestRunReport_Finalize_FatalFromScanOrStore(t *testing.T) {
	r := RunReport{Items: []ItemResult{{Stage: StageStore, Index: 1, Status: StatusFailed, ErrorCode: ErrCodeSnapshotNotFound}}}
	r.Finalize()
	if !r.Summary.Fatal {
		t.Fatalf("store 阶段失败应标记为 fatal：%+v", r.Summary)
	}
}

func TestItemResult_Fail_UsesErrorCode(t *testing.T) {
	var it ItemResult
	it.Fail(Errorf(ErrCodeNoInputs, "题目中没有输入框"))
	if it.Status != StatusFailed || it.ErrorCode != ErrCodeNoInputs || it.ErrorMsg != "题目中没有输入框" {
		t.Fatalf("Fail 结果不符合预期：%+v", it)
	}
}
