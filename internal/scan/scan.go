package scan

import (
	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/pool"
	"github.com/John-Robertt/quizcarry/internal/surface"
)

// Result 是一次扫描的输出：模式 + 最外层候选题目（文档顺序）。
type Result struct {
	Mode       domain.Mode
	Candidates []surface.Node
}

// Scanner 根据 markers 判定模式并发现候选题目。
type Scanner struct {
	m config.Markers
}

func New(m config.Markers) Scanner {
	return Scanner{m: m}
}

// Scan 判定模式并返回最外层候选题目。
//
// 规则（硬约束）：
// - 容器不存在，或既不是结果页也不是作答页：返回 unsupported_surface，且不产生任何候选
// - 题目可能以文本形式嵌套在另一道题中：任何“是另一候选后代”的候选都要剔除，只保留最外层
func (s Scanner) Scan(doc surface.Document) (Result, error) {
	holders, err := doc.Query(s.m.Container)
	if err != nil {
		return Result{}, &domain.Error{Code: domain.ErrCodeUnsupportedSurface, Msg: "查询题目容器失败", Err: err}
	}
	if len(holders) == 0 {
		return Result{}, domain.Errorf(domain.ErrCodeUnsupportedSurface, "既不能提取也不能导入（页面中没有题目容器 %s）", s.m.Container)
	}
	holder := holders[0]

	var mode domain.Mode
	switch {
	case surface.HasClass(holder, s.m.CaptureClass):
		mode = domain.ModeCapture
	case surface.HasClass(holder, s.m.ReplayClass):
		mode = domain.ModeReplay
	default:
		return Result{}, domain.Errorf(domain.ErrCodeUnsupportedSurface, "既不能提取也不能导入（未知类型的题目容器，class=%v）", holder.Classes())
	}

	all, err := holder.FindAll(s.m.Question)
	if err != nil {
		return Result{}, &domain.Error{Code: domain.ErrCodeUnsupportedSurface, Msg: "查询题目失败", Err: err}
	}

	outer, err := s.outermost(all)
	if err != nil {
		return Result{}, err
	}
	return Result{Mode: mode, Candidates: outer}, nil
}

// outermost 剔除嵌套候选。
//
// 从外到内处理一个独立的待检查队列：某个候选被判定为嵌套后，同时从结果与队列中移除，
// 因此已被移除的候选不会再被展开检查（它内部的候选也必然是外层候选的后代，会在外层那一轮被移除）。
func (s Scanner) outermost(all []surface.Node) ([]surface.Node, error) {
	kept := pool.New(all)
	queue := pool.New(all)

	for {
		q, ok := queue.Shift()
		if !ok {
			break
		}
		nested, err := q.FindAll(s.m.Question)
		if err != nil {
			return nil, &domain.Error{Code: domain.ErrCodeUnsupportedSurface, Msg: "查询嵌套题目失败", Err: err}
		}
		for _, n := range nested {
			same := func(c surface.Node) bool { return c.Same(n) }
			kept.Remove(same)
			queue.Remove(same)
		}
	}
	return kept.Items(), nil
}
