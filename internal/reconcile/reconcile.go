package reconcile

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/pool"
	"github.com/John-Robertt/quizcarry/internal/surface"
)

const (
	colorFullMarks    = "rgb(85 255 170 / 20%)"
	colorPartialMarks = "rgb(255 170 0 / 20%)"
)

// Notifier 在某个输入的值被写入后调用（先写值、再通知）。
// 返回的错误只会变成 warning，不影响该条记录的成败。
type Notifier func(n surface.Node) error

// NotifyNode 是默认 Notifier：交给表面自己派发变更通知。
func NotifyNode(n surface.Node) error { return n.Notify() }

// Result 是一次回放的输出：Imported / Total 与逐条结果（按快照顺序）。
type Result struct {
	Imported int
	Total    int
	Items    []domain.ItemResult
}

type Reconciler struct {
	m        config.Markers
	notify   Notifier
	validate *validator.Validate
	appliers map[domain.QuestionType]applier
}

type Option func(*Reconciler)

func WithNotifier(n Notifier) Option {
	return func(r *Reconciler) {
		if n != nil {
			r.notify = n
		}
	}
}

func New(m config.Markers, opts ...Option) *Reconciler {
	r := &Reconciler{m: m, notify: NotifyNode, validate: validator.New()}
	r.appliers = map[domain.QuestionType]applier{
		domain.TypeBlanks:  r.applyBlanks,
		domain.TypeChoices: r.applyChoices,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply 按快照顺序逐条回放到 live 题目上。
//
// 规则（硬约束）：
// - 匹配按题目 ID，“先匹配先得”；成功后该 live 题目被消费，不会再被后续记录匹配
// - 失败只影响当前记录；没有回滚（已写入的其他题目保持写入后的状态）
func (r *Reconciler) Apply(live []domain.Question, records []domain.Record) Result {
	pending := pool.New(live)
	res := Result{Items: make([]domain.ItemResult, 0, len(records))}

	for i, rec := range records {
		res.Total++
		id := rec.ID
		item := domain.ItemResult{Stage: domain.StageImport, Index: i + 1, QuestionID: &id, Type: rec.Type}

		if err := r.applyOne(pending, rec, &item); err != nil {
			item.Fail(err)
		} else {
			item.Status = domain.StatusImported
			res.Imported++
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func (r *Reconciler) applyOne(pending *pool.Pool[domain.Question], rec domain.Record, item *domain.ItemResult) error {
	if rec.DecodeErr != nil {
		return formatMismatch(rec.DecodeErr)
	}
	byID := func(q domain.Question) bool { return q.ID == rec.ID }
	q, ok := pending.Find(byID)
	if !ok {
		return domain.Errorf(domain.ErrCodeNoMatch, "记录 %d 没有匹配到本页已处理的题目", rec.ID)
	}

	apply, ok := r.appliers[rec.Type]
	if !ok {
		return domain.Errorf(domain.ErrCodeUnsupportedType, "记录中的题型 %q 不受支持", rec.Type)
	}
	if q.Type != rec.Type {
		return domain.Errorf(domain.ErrCodeFormatMismatch, "记录题型 %q 与页面题型 %q 不一致；快照可能来自不同格式，建议重新提取", rec.Type, q.Type)
	}
	if err := apply(q, rec, item); err != nil {
		return err
	}

	r.highlight(q, rec, item)
	pending.Remove(byID)
	return nil
}

type applier func(q domain.Question, rec domain.Record, item *domain.ItemResult) error

type blankData struct {
	Text *string `validate:"required"`
}

type choiceData struct {
	ID      *int64 `validate:"required"`
	Checked *bool  `validate:"required"`
}

func formatMismatch(err error) error {
	return &domain.Error{Code: domain.ErrCodeFormatMismatch, Msg: "快照可能来自不同格式，建议重新提取", Err: err}
}

// applyBlanks 按位置写入：第 i 个输入框写入第 i 条记录的 text。
// 写入前先检查整条记录的形状，形状不符时不写任何输入框。
func (r *Reconciler) applyBlanks(q domain.Question, rec domain.Record, item *domain.ItemResult) error {
	if len(rec.AnswerInfos) < len(q.Units) {
		return formatMismatch(fmt.Errorf("记录只有 %d 个填空，页面有 %d 个", len(rec.AnswerInfos), len(q.Units)))
	}
	for i := range q.Units {
		if err := r.validate.Struct(blankData{Text: rec.AnswerInfos[i].Text}); err != nil {
			return formatMismatch(fmt.Errorf("第 %d 个填空缺少 text", i+1))
		}
	}

	for i, u := range q.Units {
		if err := u.Node.SetValue(*rec.AnswerInfos[i].Text); err != nil {
			return &domain.Error{Code: domain.ErrCodeIOFailed, Msg: fmt.Sprintf("写入第 %d 个填空失败", i+1), Err: err}
		}
		r.changed(u.Node, item)
	}
	return nil
}

// applyChoices 按选项 ID 写入勾选状态，与选项顺序无关；每条子记录最多被使用一次。
func (r *Reconciler) applyChoices(q domain.Question, rec domain.Record, item *domain.ItemResult) error {
	for i, a := range rec.AnswerInfos {
		if err := r.validate.Struct(choiceData{ID: a.ID, Checked: a.Checked}); err != nil {
			return formatMismatch(fmt.Errorf("第 %d 个选项缺少 id 或 checked", i+1))
		}
	}

	remaining := pool.New(rec.AnswerInfos)
	for _, u := range q.Units {
		a, ok := remaining.Take(func(a domain.AnswerRecord) bool { return *a.ID == u.ID })
		if !ok {
			item.Warn(fmt.Sprintf("%s：选项 %d 在记录中没有对应的答案数据，已跳过", domain.ErrCodeMissingAnswerData, u.ID))
			continue
		}
		if err := u.Node.SetChecked(*a.Checked); err != nil {
			return &domain.Error{Code: domain.ErrCodeIOFailed, Msg: fmt.Sprintf("写入选项 %d 失败", u.ID), Err: err}
		}
		r.changed(u.Node, item)
	}
	return nil
}

func (r *Reconciler) changed(n surface.Node, item *domain.ItemResult) {
	if err := r.notify(n); err != nil {
		item.Warn(fmt.Sprintf("派发变更通知失败：%v", err))
	}
}

// highlight 用颜色与分数标签标记已回放的题目；找不到对应节点时只记 warning。
func (r *Reconciler) highlight(q domain.Question, rec domain.Record, item *domain.ItemResult) {
	score, ok := rec.Score()
	if !ok || q.Node == nil {
		return
	}

	header, ok, err := surface.First(q.Node, r.m.FeedbackHeader)
	if err != nil || !ok {
		item.Warn("题目中没有找到标题栏，跳过分数高亮")
		return
	}
	points, ok, err := surface.First(header, r.m.FeedbackPoints)
	if err != nil || !ok {
		item.Warn("标题栏中没有找到分数位置，跳过分数高亮")
		return
	}

	color := colorPartialMarks
	if score.FullMarks() {
		color = colorFullMarks
	}
	if err := header.SetStyle("background-color", color); err != nil {
		item.Warn(fmt.Sprintf("设置高亮失败：%v", err))
	}
	if err := points.SetText(PointsLabel(score)); err != nil {
		item.Warn(fmt.Sprintf("写入分数标签失败：%v", err))
	}
}

// PointsLabel 返回分数标签，例如 “☁️ 2.5 / 5 pts”。
func PointsLabel(s domain.Score) string {
	return fmt.Sprintf("☁️ %s / %s pts", formatMarks(s.Actual), formatMarks(s.Max))
}

func formatMarks(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
