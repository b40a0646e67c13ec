package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/extract"
	"github.com/John-Robertt/quizcarry/internal/scan"
	"github.com/John-Robertt/quizcarry/internal/surface"
	"github.com/John-Robertt/quizcarry/internal/surface/htmldoc"
)

const resultsPage = `
<div id="questions" class="assessment_results">
  <div class="question fill_in_multiple_blanks_question" id="question_1">
    <div class="header"><span class="question_points_holder">2 pts</span></div>
    <input type="text" id="b1" value="red"><input type="text" id="b2" value="blue">
    <div class="user_points">2 / 2 pts</div>
  </div>
  <div class="question multiple_answers_question" id="question_2">
    <div class="header"><span class="question_points_holder">3 pts</span></div>
    <input type="checkbox" id="answer-21" checked>
    <input type="checkbox" id="answer-22">
    <input type="checkbox" id="answer-23" checked>
    <div class="user_points">1.5 / 3 pts</div>
  </div>
</div>`

// 作答页：选项顺序与结果页相反，ID 带题目前缀。
const attemptPage = `
<div id="questions" class="assessing">
  <div class="question fill_in_multiple_blanks_question" id="question_1">
    <div class="header"><span class="question_points_holder">2 pts</span></div>
    <input type="text" id="b1"><input type="text" id="b2">
  </div>
  <div class="question multiple_answers_question" id="question_2">
    <div class="header"><span class="question_points_holder">3 pts</span></div>
    <input type="checkbox" id="question_2_answer_23">
    <input type="checkbox" id="question_2_answer_22" checked>
    <input type="checkbox" id="question_2_answer_21">
  </div>
</div>`

func TestApply_RoundTripWithReversedChoices(t *testing.T) {
	_, captured := load(t, resultsPage)
	records := persisted(t, captured)

	doc, live := load(t, attemptPage)
	res := New(config.DefaultMarkers()).Apply(live, records)
	if res.Imported != 2 || res.Total != 2 {
		t.Fatalf("期望 2/2，实际 %d/%d：%+v", res.Imported, res.Total, res.Items)
	}

	_, replayed := load(t, render(t, doc))
	if !reflect.DeepEqual(unitsOf(captured), unitsOf(replayed)) {
		t.Fatalf("回放后应与提取时一致：\n提取=%v\n回放=%v", unitsOf(captured), unitsOf(replayed))
	}
}

func TestApply_ScoreHighlight(t *testing.T) {
	_, captured := load(t, resultsPage)
	doc, live := load(t, attemptPage)
	New(config.DefaultMarkers()).Apply(live, persisted(t, captured))

	out := render(t, doc)
	if !strings.Contains(out, "background-color: rgb(85 255 170 / 20%);") {
		t.Fatalf("满分题应为绿色高亮：%s", out)
	}
	if !strings.Contains(out, "background-color: rgb(255 170 0 / 20%);") {
		t.Fatalf("非满分题应为橙色高亮：%s", out)
	}
	if !strings.Contains(out, "☁️ 2 / 2 pts") || !strings.Contains(out, "☁️ 1.5 / 3 pts") {
		t.Fatalf("分数标签错误：%s", out)
	}
}

func TestApply_MissingHeaderOnlyWarns(t *testing.T) {
	_, live := load(t, `<div id="questions" class="assessing">
<div class="question short_answer_question" id="question_1"><input type="text"></div></div>`)
	recs := []domain.Record{blanksRecord(1, "x")}
	one, two := 1.0, 2.0
	recs[0].ActualMarks, recs[0].MaxMarks = &one, &two

	res := New(config.DefaultMarkers()).Apply(live, recs)
	if res.Imported != 1 {
		t.Fatalf("缺少标题栏不应导致失败：%+v", res.Items)
	}
	if len(res.Items[0].Warnings) != 1 {
		t.Fatalf("期望 1 条 warning，实际 %v", res.Items[0].Warnings)
	}
}

func TestApply_PositionalBlanks(t *testing.T) {
	doc, live := load(t, `<div id="questions" class="assessing">
<div class="question fill_in_multiple_blanks_question" id="question_7">
  <input type="text" id="x"><input type="text" id="y">
</div></div>`)

	res := New(config.DefaultMarkers()).Apply(live, []domain.Record{blanksRecord(7, "first", "second", "extra")})
	if res.Imported != 1 {
		t.Fatalf("期望成功：%+v", res.Items)
	}
	v0, _ := live[0].Units[0].Node.Value()
	v1, _ := live[0].Units[1].Node.Value()
	if v0 != "first" || v1 != "second" {
		t.Fatalf("填空应按位置写入，实际 %q %q", v0, v1)
	}
	if !reflect.DeepEqual(doc.Changes, []string{"x", "y"}) {
		t.Fatalf("每次写入后都应通知，实际 %v", doc.Changes)
	}
}

func TestApply_ConsumptionUniqueness(t *testing.T) {
	_, live := load(t, `<div id="questions" class="assessing">
<div class="question short_answer_question" id="question_3"><input type="text"></div></div>`)

	res := New(config.DefaultMarkers()).Apply(live, []domain.Record{
		blanksRecord(3, "first"),
		blanksRecord(3, "second"),
	})
	if res.Imported != 1 || res.Total != 2 {
		t.Fatalf("同一题目只能被消费一次，期望 1/2，实际 %d/%d", res.Imported, res.Total)
	}
	if res.Items[1].ErrorCode != domain.ErrCodeNoMatch {
		t.Fatalf("第二条记录应为 no_match：%+v", res.Items[1])
	}
	v, _ := live[0].Units[0].Node.Value()
	if v != "first" {
		t.Fatalf("已消费的题目不应再被覆盖，实际 %q", v)
	}
}

func TestApply_FailedRecordDoesNotConsume(t *testing.T) {
	_, live := load(t, `<div id="questions" class="assessing">
<div class="question short_answer_question" id="question_3"><input type="text"></div></div>`)

	res := New(config.DefaultMarkers()).Apply(live, []domain.Record{
		{ID: 3, Type: domain.TypeBlanks, AnswerInfos: nil},
		blanksRecord(3, "ok"),
	})
	if res.Imported != 1 {
		t.Fatalf("失败的记录不应消费题目：%+v", res.Items)
	}
	if res.Items[0].ErrorCode != domain.ErrCodeFormatMismatch {
		t.Fatalf("期望 format_mismatch：%+v", res.Items[0])
	}
}

func TestApply_PerRecordFailures(t *testing.T) {
	doc, live := load(t, `<div id="questions" class="assessing">
<div class="question short_answer_question" id="question_1"><input type="text" id="a"></div>
<div class="question multiple_choice_question" id="question_2"><input type="radio" id="answer-5"></div>
<div class="question short_answer_question" id="question_4"><input type="text" id="d"></div>
</div>`)

	id5 := int64(5)
	records := []domain.Record{
		{ID: 99, Type: domain.TypeBlanks},
		{ID: 1, Type: "essay"},
		{ID: 2, Type: domain.TypeChoices, AnswerInfos: []domain.AnswerRecord{{ID: &id5}}},
		blanksRecord(4, "ok"),
	}
	res := New(config.DefaultMarkers()).Apply(live, records)

	want := []string{domain.ErrCodeNoMatch, domain.ErrCodeUnsupportedType, domain.ErrCodeFormatMismatch, ""}
	for i, it := range res.Items {
		if it.ErrorCode != want[i] {
			t.Fatalf("items[%d] 期望 %q，实际 %+v", i, want[i], it)
		}
	}
	if res.Imported != 1 || res.Total != 4 {
		t.Fatalf("期望 1/4，实际 %d/%d", res.Imported, res.Total)
	}
	if !reflect.DeepEqual(doc.Changes, []string{"d"}) {
		t.Fatalf("失败记录不应写入任何输入：%v", doc.Changes)
	}
}

func TestApply_UndecodableRecordFailsAlone(t *testing.T) {
	doc, live := load(t, `<div id="questions" class="assessing">
<div class="question short_answer_question" id="question_1"><input type="text" id="a"></div>
<div class="question true_false_question" id="question_2"><input type="radio" id="answer-5"></div>
</div>`)

	records := []domain.Record{
		blanksRecord(1, "a"),
		{ID: 2, Type: domain.TypeChoices, DecodeErr: errors.New("cannot unmarshal string into bool")},
	}
	res := New(config.DefaultMarkers()).Apply(live, records)

	if res.Imported != 1 || res.Total != 2 {
		t.Fatalf("期望 1/2，实际 %d/%d：%+v", res.Imported, res.Total, res.Items)
	}
	if res.Items[0].Status != domain.StatusImported {
		t.Fatalf("合法记录应照常导入：%+v", res.Items[0])
	}
	if res.Items[1].ErrorCode != domain.ErrCodeFormatMismatch {
		t.Fatalf("解析失败的记录期望 format_mismatch，实际 %+v", res.Items[1])
	}
	if !reflect.DeepEqual(doc.Changes, []string{"a"}) {
		t.Fatalf("解析失败的记录不应写入任何输入：%v", doc.Changes)
	}
}

func TestApply_ChoiceWithoutRecordWarns(t *testing.T) {
	_, live := load(t, `<div id="questions" class="assessing">
<div class="question multiple_choice_question" id="question_2">
  <input type="radio" id="answer-5"><input type="radio" id="answer-6" checked>
</div></div>`)

	res := New(config.DefaultMarkers()).Apply(live, []domain.Record{choicesRecord(2, map[int64]bool{5: true})})
	if res.Imported != 1 {
		t.Fatalf("期望成功：%+v", res.Items)
	}
	if len(res.Items[0].Warnings) != 1 || !strings.Contains(res.Items[0].Warnings[0], "6") {
		t.Fatalf("缺少数据的选项应记 warning：%v", res.Items[0].Warnings)
	}
	c5, _ := live[0].Units[0].Node.Checked()
	c6, _ := live[0].Units[1].Node.Checked()
	if !c5 || !c6 {
		t.Fatalf("有数据的选项被写入，缺数据的选项保持原状：c5=%v c6=%v", c5, c6)
	}
}

func TestApply_DuplicateChoiceDataUsedOnce(t *testing.T) {
	_, live := load(t, `<div id="questions" class="assessing">
<div class="question multiple_choice_question" id="question_2">
  <input type="radio" id="question_2_answer_5"><input type="radio" id="answer-5">
</div></div>`)

	id := int64(5)
	yes := true
	rec := domain.Record{ID: 2, Type: domain.TypeChoices, AnswerInfos: []domain.AnswerRecord{{ID: &id, Checked: &yes}}}
	res := New(config.DefaultMarkers()).Apply(live, []domain.Record{rec})

	c0, _ := live[0].Units[0].Node.Checked()
	c1, _ := live[0].Units[1].Node.Checked()
	if !c0 || c1 {
		t.Fatalf("同一条子记录只能被使用一次：c0=%v c1=%v", c0, c1)
	}
	if len(res.Items[0].Warnings) != 1 {
		t.Fatalf("第二个选项应记 warning：%v", res.Items[0].Warnings)
	}
}

func TestApply_NotifierErrorsOnlyWarn(t *testing.T) {
	_, live := load(t, `<div id="questions" class="assessing">
<div class="question short_answer_question" id="question_1"><input type="text"></div></div>`)

	var seen []surface.Node
	r := New(config.DefaultMarkers(), WithNotifier(func(n surface.Node) error {
		seen = append(seen, n)
		return errors.New("detached")
	}))
	res := r.Apply(live, []domain.Record{blanksRecord(1, "v")})
	if res.Imported != 1 {
		t.Fatalf("通知失败不应影响成败：%+v", res.Items)
	}
	if len(seen) != 1 || len(res.Items[0].Warnings) != 1 {
		t.Fatalf("期望通知 1 次并记 1 条 warning：seen=%d warnings=%v", len(seen), res.Items[0].Warnings)
	}
}

func TestApply_TypeMismatch(t *testing.T) {
	_, live := load(t, `<div id="questions" class="assessing">
<div class="question multiple_choice_question" id="question_1"><input type="radio" id="answer-1"></div></div>`)

	res := New(config.DefaultMarkers()).Apply(live, []domain.Record{blanksRecord(1, "x")})
	if res.Items[0].ErrorCode != domain.ErrCodeFormatMismatch {
		t.Fatalf("题型不一致应为 format_mismatch：%+v", res.Items[0])
	}
}

func TestPointsLabel(t *testing.T) {
	cases := map[domain.Score]string{
		{Actual: 2, Max: 2}:    "☁️ 2 / 2 pts",
		{Actual: 1.5, Max: 3}:  "☁️ 1.5 / 3 pts",
		{Actual: 0, Max: 0.25}: "☁️ 0 / 0.25 pts",
	}
	for s, want := range cases {
		if got := PointsLabel(s); got != want {
			t.Fatalf("PointsLabel(%+v) 期望 %q，实际 %q", s, want, got)
		}
	}
}

func load(t *testing.T, page string) (*htmldoc.Document, []domain.Question) {
	t.Helper()
	doc, err := htmldoc.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("解析 HTML 失败：%v", err)
	}
	m := config.DefaultMarkers()
	sr, err := scan.New(m).Scan(doc)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	ex, err := extract.New(m)
	if err != nil {
		t.Fatalf("extract.New: %v", err)
	}
	return doc, ex.Extract(sr.Candidates).Questions
}

// persisted 模拟“写入快照再读出”：只保留纯数据。
func persisted(t *testing.T, qs []domain.Question) []domain.Record {
	t.Helper()
	records := make([]domain.Record, 0, len(qs))
	for _, q := range qs {
		records = append(records, q.Record())
	}
	b, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out []domain.Record
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return out
}

func render(t *testing.T, doc *htmldoc.Document) string {
	t.Helper()
	var sb strings.Builder
	if err := doc.Render(&sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return sb.String()
}

// unitsOf 把题目归一为可比较的形式：填空按位置，选项按 ID。
func unitsOf(qs []domain.Question) map[int64][]string {
	out := map[int64][]string{}
	for _, q := range qs {
		var vs []string
		for _, u := range q.Units {
			if q.Type == domain.TypeChoices {
				vs = append(vs, fmt.Sprintf("%d=%v", u.ID, u.Checked))
			} else {
				vs = append(vs, u.Text)
			}
		}
		if q.Type == domain.TypeChoices {
			sort.Strings(vs)
		}
		out[q.ID] = vs
	}
	return out
}

func blanksRecord(id int64, texts ...string) domain.Record {
	r := domain.Record{ID: id, Type: domain.TypeBlanks}
	for i := range texts {
		r.AnswerInfos = append(r.AnswerInfos, domain.AnswerRecord{Text: &texts[i]})
	}
	return r
}

func choicesRecord(id int64, checked map[int64]bool) domain.Record {
	r := domain.Record{ID: id, Type: domain.TypeChoices}
	for aid, c := range checked {
		aid, c := aid, c
		r.AnswerInfos = append(r.AnswerInfos, domain.AnswerRecord{ID: &aid, Checked: &c})
	}
	return r
}
