package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusImported  = "imported"
	StatusFailed    = "failed"
)

const (
	// StageScan / StageStore 的失败条目是致命错误的载体；extract / import 是逐条结果。
	StageScan    = "scan"
	StageExtract = "extract"
	StageStore   = "store"
	StageImport  = "import"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Source string `json:"source"`
	Store  string `json:"store"`
	Mode   Mode   `json:"mode"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

// ReportSummary 对应最终摘要行 processed/total 与 imported/records。
type ReportSummary struct {
	Processed int  `json:"processed"`
	Total     int  `json:"total"`
	Imported  int  `json:"imported"`
	Records   int  `json:"records"`
	Failed    int  `json:"failed"`
	Fatal     bool `json:"fatal"`
}

type ItemResult struct {
	Stage string `json:"stage"`
	// Index 是条目在本阶段内的序号（从 1 开始）：extract 为页面上第几个候选，import 为快照中第几条。
	Index      int          `json:"index"`
	QuestionID *int64       `json:"question_id"`
	Type       QuestionType `json:"type,omitempty"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Warnings 是不影响本条成功与否的诊断（例如某个选项缺少 ID 被跳过）。
	Warnings []string `json:"warnings"`
}

// Fail 把条目标记为失败，并从 err 中提取 error_code。
func (it *ItemResult) Fail(err error) {
	it.Status = StatusFailed
	it.ErrorCode = Code(err)
	it.ErrorMsg = Message(err)
}

func (it *ItemResult) Warn(msg string) {
	it.Warnings = append(it.Warnings, msg)
}

var stageOrder = map[string]int{
	StageScan:    0,
	StageExtract: 1,
	StageStore:   2,
	StageImport:  3,
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按阶段顺序，再按阶段内序号
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if stageOrder[a.Stage] != stageOrder[b.Stage] {
			return stageOrder[a.Stage] < stageOrder[b.Stage]
		}
		return a.Index < b.Index
	})

	var s ReportSummary
	for i := range r.Items {
		it := &r.Items[i]
		if it.Warnings == nil {
			it.Warnings = []string{}
		}
		if it.Status == StatusFailed {
			s.Failed++
		}
		switch it.Stage {
		case StageScan, StageStore:
			if it.Status == StatusFailed {
				s.Fatal = true
			}
		case StageExtract:
			s.Total++
			if it.Status == StatusProcessed {
				s.Processed++
			}
		case StageImport:
			s.Records++
			if it.Status == StatusImported {
				s.Imported++
			}
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	return json.Marshal(Alias(r))
}
