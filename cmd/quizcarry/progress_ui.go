package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/John-Robertt/quizcarry/internal/app/run"
	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的过程输出。
//
// 约束：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 每条题目/记录一行；warning 缩进跟在该行之后，保持“按题分组”的诊断
type progressUI struct {
	w io.Writer
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()
	fmt.Fprintf(p.w, "[%s] quizcarry run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  source: %s\n", truncate(eff.Source(), 160))
	fmt.Fprintf(p.w, "  store: %s\n", eff.DisplayStore())
	fmt.Fprintf(p.w, "  key: %s\n", eff.Key)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	if eff.Out != "" {
		fmt.Fprintf(p.w, "  out: %s\n", eff.Out)
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: mode=%s candidates=%d (%s)\n",
			stringField(fields, "mode"), intField(fields, "candidates"), formatShortDuration(dur),
		)
	case "extract":
		fmt.Fprintf(p.w, "提取: processed=%d/%d (%s)\n",
			intField(fields, "processed"), intField(fields, "total"), formatShortDuration(dur),
		)
	case "store":
		fmt.Fprintf(p.w, "快照: key=%s records=%d (%s)\n",
			stringField(fields, "key"), intField(fields, "records"), formatShortDuration(dur),
		)
	case "import":
		fmt.Fprintf(p.w, "回填: imported=%d/%d (%s)\n",
			intField(fields, "imported"), intField(fields, "total"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult) {
	fmt.Fprintln(p.w, formatItemLine(idx, total, res))
	for _, w := range res.Warnings {
		fmt.Fprintf(p.w, "    ⚠ %s\n", truncate(w, 160))
	}
}

func formatItemLine(idx, total int, res domain.ItemResult) string {
	who := "question_?"
	if res.QuestionID != nil {
		who = fmt.Sprintf("question_%d", *res.QuestionID)
	}
	typ := ""
	if res.Type != "" {
		typ = " " + string(res.Type)
	}

	switch res.Status {
	case domain.StatusFailed:
		return fmt.Sprintf("[%s %d/%d] %s%s FAIL %s: %s", res.Stage, idx, total, who, typ, res.ErrorCode, truncate(res.ErrorMsg, 160))
	default:
		return fmt.Sprintf("[%s %d/%d] %s%s OK", res.Stage, idx, total, who, typ)
	}
}

// truncate 按字符（而不是字节）截断，避免切坏中文。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	s, _ := fields[key].(string)
	return s
}
