package run

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/snapshot"
)

type recordObserver struct {
	startCalls int
	phases     []string
	items      []string
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) { o.startCalls++ }

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnItemDone(idx, total int, res domain.ItemResult) {
	o.items = append(o.items, res.Stage+":"+res.Status)
}

func TestExecuteWithObserver_EmitsPhaseAndItemEvents(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := snapshot.New(snapshot.NewFile(dir), config.DefaultKey)

	capture := &recordObserver{}
	_ = ExecuteWithObserver(ctx, testConfig(dir), Deps{Doc: parseDoc(t, resultsPage), Store: store}, capture)
	if capture.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", capture.startCalls)
	}
	if want := []string{"scan", "extract", "store"}; !reflect.DeepEqual(capture.phases, want) {
		t.Fatalf("提取阶段事件不符合预期：got=%v want=%v", capture.phases, want)
	}
	if want := []string{"extract:processed", "extract:processed", "extract:failed"}; !reflect.DeepEqual(capture.items, want) {
		t.Fatalf("提取条目事件不符合预期：got=%v want=%v", capture.items, want)
	}

	replay := &recordObserver{}
	_ = ExecuteWithObserver(ctx, testConfig(dir), Deps{Doc: parseDoc(t, attemptPage), Store: store}, replay)
	if want := []string{"scan", "extract", "store", "import"}; !reflect.DeepEqual(replay.phases, want) {
		t.Fatalf("回放阶段事件不符合预期：got=%v want=%v", replay.phases, want)
	}
	if n := len(replay.items); n != 5 || replay.items[3] != "import:imported" {
		t.Fatalf("回放条目事件不符合预期：%v", replay.items)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	dir := t.TempDir()
	store := snapshot.New(snapshot.NewFile(dir), config.DefaultKey)

	a := Execute(context.Background(), testConfig(dir), Deps{Doc: parseDoc(t, resultsPage), Store: store})
	b := ExecuteWithObserver(context.Background(), testConfig(dir), Deps{Doc: parseDoc(t, resultsPage), Store: store}, nil)

	// 时间与 run_id 每次都不同；对比时归零。
	a.StartedAt, a.FinishedAt, a.RunID = time.Time{}, time.Time{}, ""
	b.StartedAt, b.FinishedAt, b.RunID = time.Time{}, time.Time{}, ""

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
