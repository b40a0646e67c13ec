package extract

import (
	"fmt"

	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/surface"
)

// Strategy 把某一题型的题目节点转换为答案单元。
//
// 约束：
// - 题目级失败（例如没有任何输入框）返回带 code 的 error，整题跳过
// - 单个输入的问题（例如选项缺少 ID）只记 warning 并跳过该输入，不让整题失败
type Strategy interface {
	Type() domain.QuestionType
	Units(question surface.Node, item *domain.ItemResult) ([]domain.AnswerUnit, error)
}

// Registry 是按题型索引的只读策略表。
type Registry struct {
	byType map[domain.QuestionType]Strategy
}

func NewRegistry(strategies ...Strategy) (Registry, error) {
	byType := make(map[domain.QuestionType]Strategy, len(strategies))
	for _, s := range strategies {
		if s == nil {
			return Registry{}, fmt.Errorf("strategy 不能为空")
		}
		t := s.Type()
		if !t.Supported() {
			return Registry{}, fmt.Errorf("不支持的题型：%q", t)
		}
		if _, ok := byType[t]; ok {
			return Registry{}, fmt.Errorf("重复的题型 strategy：%q", t)
		}
		byType[t] = s
	}
	return Registry{byType: byType}, nil
}

func (r Registry) Get(t domain.QuestionType) (Strategy, bool) {
	if r.byType == nil {
		return nil, false
	}
	s, ok := r.byType[t]
	return s, ok
}
