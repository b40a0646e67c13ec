package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/quizcarry/internal/app/run"
	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/export"
	"github.com/John-Robertt/quizcarry/internal/snapshot"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "export":
		if code := exportCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

// runCmd 的退出码：0 = 运行完成（允许有逐条失败）；1 = 致命错误；2 = 参数错误。
func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage(os.Stdout)
			return 0
		}
	}

	ra, err := parseArgs(args, "--browser", "--page", "--store", "--out", "--config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage(os.Stderr)
		return 2
	}
	if len(ra.Positional) > 1 {
		fmt.Fprintf(os.Stderr, "参数错误：重复的文档路径：%q\n\n", ra.Positional)
		printRunUsage(os.Stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	store, storeSet := ra.Flags["--store"]
	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Document:   ra.first(),
		Browser:    ra.Flags["--browser"],
		Page:       ra.Flags["--page"],
		Out:        ra.Flags["--out"],
		Store:      store,
		StoreSet:   storeSet,
		ConfigPath: ra.Flags["--config"],
	})
	if err != nil {
		emitReport(fatalReport(cwd, domain.StageScan, config.Code(err), err))
		return 1
	}
	if err := eff.RequireSource(); err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage(os.Stderr)
		return 2
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	blob, err := snapshot.Open(ctx, eff.Store)
	if err != nil {
		emitReport(fatalReport(eff.Source(), domain.StageStore, domain.ErrCodeIOFailed, err))
		return 1
	}
	defer blob.Close()

	src, err := openSource(ctx, eff, logger)
	if err != nil {
		emitReport(fatalReport(eff.Source(), domain.StageScan, domain.ErrCodeIOFailed, err))
		return 1
	}
	defer src.Close()

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{
		Doc:   src.Doc,
		Store: snapshot.New(blob, eff.Key),
	}, obs)

	// 保存的 HTML 文档：回放后的结果写到 out（原文件不动）。
	wroteOut := false
	if rr.Mode == domain.ModeReplay && !rr.Summary.Fatal && src.HTML != nil {
		if err := writeHTML(eff.Out, src.HTML); err != nil {
			fmt.Fprintf(os.Stderr, "写入回放结果失败：%v\n", err)
			emitReport(rr)
			return 1
		}
		wroteOut = true
	}

	emitReport(rr)
	if interactive {
		emitHints(progressW, rr, eff, wroteOut)
	}
	if rr.Summary.Fatal {
		return 1
	}
	return 0
}

func exportCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printExportUsage(os.Stdout)
			return 0
		}
	}

	ea, err := parseArgs(args, "--store", "--config")
	if err != nil || len(ea.Positional) != 1 {
		if err == nil {
			err = fmt.Errorf("需要且只需要一个输出文件路径")
		}
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printExportUsage(os.Stderr)
		return 2
	}
	out := ea.first()
	if !strings.EqualFold(filepath.Ext(out), ".xlsx") {
		fmt.Fprintf(os.Stderr, "参数错误：输出文件必须以 .xlsx 结尾：%q\n\n", out)
		printExportUsage(os.Stderr)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	store, storeSet := ea.Flags["--store"]
	eff, err := config.LoadEffective(cwd, config.CLIArgs{Store: store, StoreSet: storeSet, ConfigPath: ea.Flags["--config"]})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx := context.Background()
	blob, err := snapshot.Open(ctx, eff.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s：%v\n", domain.ErrCodeIOFailed, err)
		return 1
	}
	defer blob.Close()

	records, err := snapshot.New(blob, eff.Key).Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(cwd, out)
	}
	if err := export.WriteXLSX(out, records); err != nil {
		fmt.Fprintf(os.Stderr, "%s：导出失败：%v\n", domain.ErrCodeIOFailed, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "完成：records=%d -> %s\n", len(records), out)
	return 0
}

type cliArgs struct {
	Flags      map[string]string
	Positional []string
}

func (a cliArgs) first() string {
	if len(a.Positional) == 0 {
		return ""
	}
	return a.Positional[0]
}

// parseArgs 支持 --name value 与 --name=value 两种写法；只接受 known 中列出的参数。
func parseArgs(args []string, known ...string) (cliArgs, error) {
	out := cliArgs{Flags: map[string]string{}}
	isKnown := func(name string) bool {
		for _, k := range known {
			if k == name {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			out.Positional = append(out.Positional, a)
			continue
		}

		name, value, hasValue := strings.Cut(a, "=")
		if !isKnown(name) {
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		if _, dup := out.Flags[name]; dup {
			return cliArgs{}, fmt.Errorf("重复的参数 %s", name)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			value = args[i]
		}
		if strings.TrimSpace(value) == "" {
			return cliArgs{}, fmt.Errorf("%s 不能为空", name)
		}
		out.Flags[name] = value
	}
	return out, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  quizcarry run [document.html] [--browser ws://…] [--page substr] [--store url] [--out file] [--config file]
  quizcarry export <file.xlsx> [--store url] [--config file]

命令：
  run     在结果页提取答案并保存；在作答页读取快照并回填（按页面自动判定）
  export  把已保存的快照导出为 xlsx

使用 "quizcarry run --help" 查看详细说明。
`)
}

func printRunUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  quizcarry run [document.html] [--browser ws://…] [--page substr] [--store url] [--out file] [--config file]

参数：
  document.html  保存下来的测验页面（与 --browser 二选一，优先）
  --browser      已运行 Chrome 的 DevTools 地址（ws://127.0.0.1:9222/devtools/browser/…）
  --page         选择 URL 包含该子串的标签页（默认第一个标签页）
  --store        快照存储：目录 | file://dir | sqlite://file.db | redis://host:6379/0（默认 .quizcarry）
  --out          回放后的 HTML 输出路径（默认 <name>.replayed.html，仅对 document.html 有效）
  --config       配置文件（默认发现 quizcarry.json / quizcarry.yaml）
  -h, --help     显示帮助
`)
}

func printExportUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  quizcarry export <file.xlsx> [--store url] [--config file]

参数：
  --store    快照存储地址（同 run）
  --config   配置文件
  -h, --help 显示帮助
`)
}

func summaryLine(rr domain.RunReport) string {
	mode := string(rr.Mode)
	if mode == "" {
		mode = "-"
	}
	return fmt.Sprintf("完成：mode=%s processed=%d/%d imported=%d/%d",
		mode, rr.Summary.Processed, rr.Summary.Total, rr.Summary.Imported, rr.Summary.Records)
}

func emitReport(rr domain.RunReport) {
	writeReport(os.Stdout, os.Stderr, isTTY(os.Stdout), rr)
}

// writeReport：stdout 是 TTY 时只打印摘要与失败条目；否则 stdout 只输出一个 RunReport JSON，摘要走 stderr。
func writeReport(stdout, stderr io.Writer, tty bool, rr domain.RunReport) {
	if tty {
		fmt.Fprintln(stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", itemKey(it), it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func itemKey(it domain.ItemResult) string {
	switch {
	case it.QuestionID != nil:
		return fmt.Sprintf("%s#%d question_%d", it.Stage, it.Index, *it.QuestionID)
	case it.Index > 0:
		return fmt.Sprintf("%s#%d", it.Stage, it.Index)
	default:
		return it.Stage
	}
}

func fatalReport(source, stage, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	it := domain.ItemResult{Stage: stage}
	it.Fail(err)
	if it.ErrorCode == "" {
		it.ErrorCode = code
	}
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Source:     source,
		StartedAt:  now,
		FinishedAt: now,
		Items:      []domain.ItemResult{it},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

// emitHints 在结束后告诉用户下一步做什么。
func emitHints(w io.Writer, rr domain.RunReport, eff config.EffectiveConfig, wroteOut bool) {
	if w == nil || rr.Summary.Fatal {
		return
	}
	switch rr.Mode {
	case domain.ModeCapture:
		fmt.Fprintln(w, "✅ 答案已提取并保存。请在进行中的作答页上再次运行，以回填这些答案")
	case domain.ModeReplay:
		fmt.Fprintln(w, "✅ 答案已读取并回填，匹配到的题目已被覆盖")
		if wroteOut {
			fmt.Fprintf(w, "out: %s\n", eff.Out)
		}
	}
	fmt.Fprintf(w, "store: %s (key=%s)\n", eff.DisplayStore(), eff.Key)
}
