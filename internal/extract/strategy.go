package extract

import (
	"fmt"
	"regexp"

	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/surface"
)

// Blanks 处理填空/简答：每个文本输入框一个单元，按文档顺序，不需要 ID。
type Blanks struct {
	Input string
}

func (Blanks) Type() domain.QuestionType { return domain.TypeBlanks }

func (b Blanks) Units(q surface.Node, _ *domain.ItemResult) ([]domain.AnswerUnit, error) {
	inputs, err := q.FindAll(b.Input)
	if err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeNoInputs, Msg: "查询输入框失败", Err: err}
	}
	if len(inputs) == 0 {
		return nil, domain.Errorf(domain.ErrCodeNoInputs, "题目中没有输入框")
	}

	units := make([]domain.AnswerUnit, 0, len(inputs))
	for i, in := range inputs {
		text, err := in.Value()
		if err != nil {
			return nil, &domain.Error{Code: domain.ErrCodeMissingAnswerData, Msg: fmt.Sprintf("读取第 %d 个输入框失败", i+1), Err: err}
		}
		units = append(units, domain.AnswerUnit{Kind: domain.TypeBlanks, Text: text, Node: in})
	}
	return units, nil
}

// Choices 处理单选/多选/判断：每个选项按自身 ID 记录勾选状态。
type Choices struct {
	Input string
	ID    *regexp.Regexp
}

func (Choices) Type() domain.QuestionType { return domain.TypeChoices }

func (c Choices) Units(q surface.Node, item *domain.ItemResult) ([]domain.AnswerUnit, error) {
	inputs, err := q.FindAll(c.Input)
	if err != nil {
		return nil, &domain.Error{Code: domain.ErrCodeNoInputs, Msg: "查询选项失败", Err: err}
	}
	if len(inputs) == 0 {
		return nil, domain.Errorf(domain.ErrCodeNoInputs, "题目中没有输入框")
	}

	// 全部选项都缺 ID 时结果为空列表，题目本身仍视为成功（回放时该题只会逐个提示缺少数据）。
	units := make([]domain.AnswerUnit, 0, len(inputs))
	for i, in := range inputs {
		id, ok := ParseID(c.ID, in.ID())
		if !ok {
			item.Warn(fmt.Sprintf("%s：无法从第 %d 个选项（id=%q）提取答案 ID，已跳过", domain.ErrCodeMissingIdentifier, i+1, in.ID()))
			continue
		}
		checked, err := in.Checked()
		if err != nil {
			return nil, &domain.Error{Code: domain.ErrCodeMissingAnswerData, Msg: fmt.Sprintf("读取选项 %d 的勾选状态失败", id), Err: err}
		}
		units = append(units, domain.AnswerUnit{Kind: domain.TypeChoices, ID: id, Checked: checked, Node: in})
	}
	return units, nil
}
