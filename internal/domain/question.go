package domain

import (
	"github.com/John-Robertt/quizcarry/internal/surface"
)

// QuestionType 是题目的答案类型标签（也是快照中 type 字段的取值）。
type QuestionType string

const (
	TypeBlanks  QuestionType = "blanks"
	TypeChoices QuestionType = "choices"
	TypeUnknown QuestionType = "unknown"
)

// Supported 判断该类型是否有提取/回放策略。
func (t QuestionType) Supported() bool {
	return t == TypeBlanks || t == TypeChoices
}

// Mode 是一次运行的模式，由文档容器的标记决定。
type Mode string

const (
	// ModeCapture：已评分的结果页，提取并保存答案。
	ModeCapture Mode = "capture"
	// ModeReplay：进行中的作答页，读取快照并回填答案。
	ModeReplay Mode = "replay"
)

// Question 是一次扫描得到的一道题（可作答单元）。
//
// 不变量：
// - ID 在一次扫描内唯一（重复时下游按“先匹配先得”处理，不做去重）
// - Type 只会是 blanks/choices；unknown 的题目不会进入结果集
// - Node 是 live handle，只在本次扫描内有效，禁止持久化
type Question struct {
	ID    int64
	Type  QuestionType
	Units []AnswerUnit
	Node  surface.Node `json:"-"`
	Score *Score
}

// AnswerUnit 是题目下的一个子答案，按 Kind 区分两种形态（tagged union）：
// - blanks：只用 Text，按位置匹配（没有独立 ID）
// - choices：用 ID + Checked，按 ID 匹配，与顺序无关
type AnswerUnit struct {
	Kind    QuestionType
	Text    string
	ID      int64
	Checked bool
	Node    surface.Node `json:"-"`
}

// Score 是可选的评分信息（只有结果页才有）。
type Score struct {
	Actual float64
	Max    float64
}

// FullMarks 判断是否满分。
func (s Score) FullMarks() bool { return s.Actual == s.Max }

// Record 把题目转换为快照中的纯数据形态（不含任何 live handle）。
func (q Question) Record() Record {
	r := Record{
		ID:          q.ID,
		Type:        q.Type,
		AnswerInfos: make([]AnswerRecord, 0, len(q.Units)),
	}
	for _, u := range q.Units {
		r.AnswerInfos = append(r.AnswerInfos, u.Record())
	}
	if q.Score != nil {
		actual, max := q.Score.Actual, q.Score.Max
		r.ActualMarks = &actual
		r.MaxMarks = &max
	}
	return r
}

func (u AnswerUnit) Record() AnswerRecord {
	switch u.Kind {
	case TypeBlanks:
		text := u.Text
		return AnswerRecord{Text: &text}
	case TypeChoices:
		id, checked := u.ID, u.Checked
		return AnswerRecord{ID: &id, Checked: &checked}
	default:
		return AnswerRecord{}
	}
}
