package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/John-Robertt/quizcarry/internal/domain"
)

// Markers 是扫描/提取/回放所依赖的全部“页面标记”：选择器、class、ID 正则与题型表。
//
// 约束：
// - 构造后只读；扫描器/提取器/回放器在构造时拿到一份副本，不读任何全局状态
// - 正则必须带命名分组（question/answer 用 id；分数用 actual + max）
type Markers struct {
	Container    string `json:"container" yaml:"container"`
	CaptureClass string `json:"capture_class" yaml:"capture_class"`
	ReplayClass  string `json:"replay_class" yaml:"replay_class"`
	Question     string `json:"question" yaml:"question"`

	QuestionIDPattern string `json:"question_id_pattern" yaml:"question_id_pattern"`
	AnswerIDPattern   string `json:"answer_id_pattern" yaml:"answer_id_pattern"`

	// TypeClasses 按顺序匹配，先命中者生效。
	TypeClasses []TypeClass `json:"type_classes" yaml:"type_classes"`

	BlankInput  string `json:"blank_input" yaml:"blank_input"`
	ChoiceInput string `json:"choice_input" yaml:"choice_input"`

	Score        string `json:"score" yaml:"score"`
	ScorePattern string `json:"score_pattern" yaml:"score_pattern"`

	FeedbackHeader string `json:"feedback_header" yaml:"feedback_header"`
	FeedbackPoints string `json:"feedback_points" yaml:"feedback_points"`
}

type TypeClass struct {
	Class string              `json:"class" yaml:"class"`
	Type  domain.QuestionType `json:"type" yaml:"type"`
}

// DefaultMarkers 对应 Canvas 测验页面（结果页 assessment_results / 作答页 assessing）。
func DefaultMarkers() Markers {
	return Markers{
		Container:    "div#questions",
		CaptureClass: "assessment_results",
		ReplayClass:  "assessing",
		Question:     "div.question",

		// 例：question_26789
		QuestionIDPattern: `^question_(?P<id>\d+)$`,
		// 例：结果页 answer-7050；作答页 question_26789_answer_7050
		AnswerIDPattern: `^(?:question_\d+_)?answer[-_](?P<id>\d+)$`,

		TypeClasses: []TypeClass{
			{Class: "fill_in_multiple_blanks_question", Type: domain.TypeBlanks},
			{Class: "short_answer_question", Type: domain.TypeBlanks},
			{Class: "multiple_answers_question", Type: domain.TypeChoices},
			{Class: "multiple_choice_question", Type: domain.TypeChoices},
			{Class: "true_false_question", Type: domain.TypeChoices},
		},

		BlankInput:  "input[type=text]",
		ChoiceInput: "input[type=radio], input[type=checkbox]",

		Score:        "div.user_points",
		ScorePattern: `^(?P<actual>\d+(?:\.\d+)?) / (?P<max>\d+(?:\.\d+)?) pts$`,

		FeedbackHeader: "div.header",
		FeedbackPoints: "span.question_points_holder",
	}
}

// Overlay 用 o 中的非空字段覆盖 m（TypeClasses 非空时整表替换）。
func (m Markers) Overlay(o Markers) Markers {
	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	pick(&m.Container, o.Container)
	pick(&m.CaptureClass, o.CaptureClass)
	pick(&m.ReplayClass, o.ReplayClass)
	pick(&m.Question, o.Question)
	pick(&m.QuestionIDPattern, o.QuestionIDPattern)
	pick(&m.AnswerIDPattern, o.AnswerIDPattern)
	pick(&m.BlankInput, o.BlankInput)
	pick(&m.ChoiceInput, o.ChoiceInput)
	pick(&m.Score, o.Score)
	pick(&m.ScorePattern, o.ScorePattern)
	pick(&m.FeedbackHeader, o.FeedbackHeader)
	pick(&m.FeedbackPoints, o.FeedbackPoints)
	if len(o.TypeClasses) > 0 {
		m.TypeClasses = append([]TypeClass(nil), o.TypeClasses...)
	} else {
		m.TypeClasses = append([]TypeClass(nil), m.TypeClasses...)
	}
	return m
}

// Validate 检查选择器能否编译、正则是否合法且带所需命名分组、题型表是否只含受支持的类型。
func (m Markers) Validate() error {
	selectors := []struct{ name, sel string }{
		{"container", m.Container},
		{"question", m.Question},
		{"blank_input", m.BlankInput},
		{"choice_input", m.ChoiceInput},
		{"score", m.Score},
		{"feedback_header", m.FeedbackHeader},
		{"feedback_points", m.FeedbackPoints},
	}
	for _, s := range selectors {
		if strings.TrimSpace(s.sel) == "" {
			return fmt.Errorf("markers.%s 不能为空", s.name)
		}
		if _, err := cascadia.Compile(s.sel); err != nil {
			return fmt.Errorf("markers.%s 不是合法选择器 %q：%w", s.name, s.sel, err)
		}
	}

	if strings.TrimSpace(m.CaptureClass) == "" || strings.TrimSpace(m.ReplayClass) == "" {
		return fmt.Errorf("markers.capture_class / markers.replay_class 不能为空")
	}
	if m.CaptureClass == m.ReplayClass {
		return fmt.Errorf("markers.capture_class 与 markers.replay_class 不能相同：%q", m.CaptureClass)
	}

	patterns := []struct {
		name, pattern string
		groups        []string
	}{
		{"question_id_pattern", m.QuestionIDPattern, []string{"id"}},
		{"answer_id_pattern", m.AnswerIDPattern, []string{"id"}},
		{"score_pattern", m.ScorePattern, []string{"actual", "max"}},
	}
	for _, p := range patterns {
		if _, err := CompilePattern(p.pattern, p.groups...); err != nil {
			return fmt.Errorf("markers.%s 无效：%w", p.name, err)
		}
	}

	if len(m.TypeClasses) == 0 {
		return fmt.Errorf("markers.type_classes 不能为空")
	}
	for i, tc := range m.TypeClasses {
		if strings.TrimSpace(tc.Class) == "" {
			return fmt.Errorf("markers.type_classes[%d].class 不能为空", i)
		}
		if !tc.Type.Supported() {
			return fmt.Errorf("markers.type_classes[%d].type 只能是 blanks 或 choices，实际是 %q", i, tc.Type)
		}
	}
	return nil
}

// CompilePattern 编译正则，并要求其包含全部指定的命名分组。
func CompilePattern(pattern string, groups ...string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if re.SubexpIndex(g) < 0 {
			return nil, fmt.Errorf("正则 %q 缺少命名分组 (?P<%s>…)", pattern, g)
		}
	}
	return re, nil
}
