package domain

// Record 是快照中一道题的纯数据形态（JSON 字段名与历史快照保持兼容）。
//
// 注意：Load 阶段只保证整体是 JSON 数组；单条记录解析失败时 DecodeErr 非空，由回放阶段按该条失败处理。
type Record struct {
	ID          int64          `json:"id" validate:"gte=0"`
	Type        QuestionType   `json:"type" validate:"oneof=blanks choices"`
	AnswerInfos []AnswerRecord `json:"answerInfos" validate:"dive"`
	ActualMarks *float64       `json:"actualMarks,omitempty" validate:"omitempty,gte=0"`
	MaxMarks    *float64       `json:"maxMarks,omitempty" validate:"omitempty,gte=0"`

	// DecodeErr 只在 Load 时设置：该条记录形状不符，ID/Type 为尽力解析的结果。
	DecodeErr error `json:"-" validate:"-"`
}

// AnswerRecord 是子答案的纯数据形态：blanks 只有 text；choices 只有 id + checked。
type AnswerRecord struct {
	Text    *string `json:"text,omitempty" validate:"required_without=ID"`
	ID      *int64  `json:"id,omitempty" validate:"required_without=Text,omitempty,gte=0"`
	Checked *bool   `json:"checked,omitempty" validate:"required_with=ID"`
}

// Score 返回记录中的评分信息。
// 历史快照用 -1 表示“没有分数”，这里同样视为缺失。
func (r Record) Score() (Score, bool) {
	if r.ActualMarks == nil || r.MaxMarks == nil {
		return Score{}, false
	}
	if *r.ActualMarks < 0 || *r.MaxMarks < 0 {
		return Score{}, false
	}
	return Score{Actual: *r.ActualMarks, Max: *r.MaxMarks}, true
}
