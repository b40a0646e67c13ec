package extract

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/surface"
)

// Result 是一次批量提取的输出。
//
// 不变量：
// - Total 等于候选数（成功 + 失败 + unknown）
// - Success 等于 len(Questions)
// - Items 与候选一一对应，按候选顺序
type Result struct {
	Questions []domain.Question
	Success   int
	Total     int
	Items     []domain.ItemResult
}

// Extractor 把候选节点转换为规范化的题目模型。
type Extractor struct {
	m          config.Markers
	questionID *regexp.Regexp
	score      *regexp.Regexp
	registry   Registry
}

func New(m config.Markers) (*Extractor, error) {
	questionID, err := config.CompilePattern(m.QuestionIDPattern, "id")
	if err != nil {
		return nil, fmt.Errorf("question_id_pattern：%w", err)
	}
	answerID, err := config.CompilePattern(m.AnswerIDPattern, "id")
	if err != nil {
		return nil, fmt.Errorf("answer_id_pattern：%w", err)
	}
	score, err := config.CompilePattern(m.ScorePattern, "actual", "max")
	if err != nil {
		return nil, fmt.Errorf("score_pattern：%w", err)
	}
	reg, err := NewRegistry(
		Blanks{Input: m.BlankInput},
		Choices{Input: m.ChoiceInput, ID: answerID},
	)
	if err != nil {
		return nil, err
	}
	return &Extractor{m: m, questionID: questionID, score: score, registry: reg}, nil
}

// Extract 逐个处理候选；单个候选失败只影响自身，批次从不中止。
func (e *Extractor) Extract(candidates []surface.Node) Result {
	res := Result{
		Questions: make([]domain.Question, 0, len(candidates)),
		Items:     make([]domain.ItemResult, 0, len(candidates)),
	}
	for i, n := range candidates {
		res.Total++
		q, item := e.one(i+1, n)
		if item.Status == domain.StatusProcessed {
			res.Success++
			res.Questions = append(res.Questions, q)
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func (e *Extractor) one(index int, n surface.Node) (domain.Question, domain.ItemResult) {
	item := domain.ItemResult{Stage: domain.StageExtract, Index: index}

	id, ok := ParseID(e.questionID, n.ID())
	if !ok {
		item.Fail(domain.Errorf(domain.ErrCodeMissingIdentifier, "无法从题目节点（id=%q）提取题目 ID", n.ID()))
		return domain.Question{}, item
	}
	item.QuestionID = &id

	t := e.Classify(n)
	item.Type = t
	if t == domain.TypeUnknown {
		item.Fail(domain.Errorf(domain.ErrCodeUnsupportedType, "不支持的题型（class=%v）", n.Classes()))
		return domain.Question{}, item
	}

	strategy, ok := e.registry.Get(t)
	if !ok {
		item.Fail(domain.Errorf(domain.ErrCodeUnsupportedType, "题型 %q 没有提取策略", t))
		return domain.Question{}, item
	}
	units, err := strategy.Units(n, &item)
	if err != nil {
		item.Fail(err)
		return domain.Question{}, item
	}

	q := domain.Question{ID: id, Type: t, Units: units, Node: n}
	q.Score = e.readScore(n, &item)

	item.Status = domain.StatusProcessed
	return q, item
}

// Classify 按 markers 中的题型表顺序匹配 class，先命中者生效；都不命中时为 unknown。
func (e *Extractor) Classify(n surface.Node) domain.QuestionType {
	for _, tc := range e.m.TypeClasses {
		if surface.HasClass(n, tc.Class) {
			return tc.Type
		}
	}
	return domain.TypeUnknown
}

// readScore 读取可选的评分信息；缺失或格式不符都只是“没有分数”，不会让题目失败。
func (e *Extractor) readScore(n surface.Node, item *domain.ItemResult) *domain.Score {
	el, ok, err := surface.First(n, e.m.Score)
	if err != nil {
		item.Warn(fmt.Sprintf("查询分数节点失败：%v", err))
		return nil
	}
	if !ok {
		return nil
	}
	text, err := el.Text()
	if err != nil {
		item.Warn(fmt.Sprintf("读取分数文本失败：%v", err))
		return nil
	}
	s, ok := ParseScore(e.score, surface.NormSpace(text))
	if !ok {
		return nil
	}
	return &s
}

// ParseScore 用带 actual/max 命名分组的正则解析分数文本（例：“2.5 / 5 pts”）。
func ParseScore(re *regexp.Regexp, text string) (domain.Score, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return domain.Score{}, false
	}
	actual, err := strconv.ParseFloat(m[re.SubexpIndex("actual")], 64)
	if err != nil {
		return domain.Score{}, false
	}
	max, err := strconv.ParseFloat(m[re.SubexpIndex("max")], 64)
	if err != nil {
		return domain.Score{}, false
	}
	return domain.Score{Actual: actual, Max: max}, true
}
