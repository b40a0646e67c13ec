package run

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/domain"
	"github.com/John-Robertt/quizcarry/internal/extract"
	"github.com/John-Robertt/quizcarry/internal/reconcile"
	"github.com/John-Robertt/quizcarry/internal/scan"
	"github.com/John-Robertt/quizcarry/internal/snapshot"
	"github.com/John-Robertt/quizcarry/internal/surface"
)

// Deps 是一次运行用到的外部资源，由上层打开并负责关闭。
type Deps struct {
	Doc   surface.Document
	Store *snapshot.Store
	// Notifier 为空时使用 reconcile.NotifyNode。
	Notifier reconcile.Notifier
}

// Execute 执行一次 run（按页面自动判定 capture/replay），并返回对外稳定的 RunReport。
// 单条题目/记录的失败降级为 item 级失败；只有页面不受支持、快照缺失/损坏等才会中止。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Source:    eff.Source(),
		Store:     eff.DisplayStore(),
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 64),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	if deps.Doc == nil || deps.Store == nil {
		rr.Items = append(rr.Items, fatalItem(domain.StageScan, errors.New("文档或快照存储未打开")))
		return finish()
	}

	scanStarted := time.Now()
	sr, err := scan.New(eff.Markers).Scan(deps.Doc)
	if err != nil {
		rr.Items = append(rr.Items, fatalItem(domain.StageScan, err))
		return finish()
	}
	rr.Mode = sr.Mode
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"mode":       string(sr.Mode),
			"candidates": len(sr.Candidates),
		}, time.Since(scanStarted))
	}

	extractStarted := time.Now()
	ex, err := extract.New(eff.Markers)
	if err != nil {
		rr.Items = append(rr.Items, fatalItem(domain.StageScan, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: err}))
		return finish()
	}
	er := ex.Extract(sr.Candidates)
	for i, it := range er.Items {
		rr.Items = append(rr.Items, it)
		if obs != nil {
			obs.OnItemDone(i+1, er.Total, it)
		}
	}
	if obs != nil {
		obs.OnPhaseDone("extract", map[string]any{
			"processed": er.Success,
			"total":     er.Total,
		}, time.Since(extractStarted))
	}

	switch sr.Mode {
	case domain.ModeCapture:
		capture(ctx, &rr, deps, er, obs)
	case domain.ModeReplay:
		replay(ctx, &rr, eff, deps, er, obs)
	}
	return finish()
}

func capture(ctx context.Context, rr *domain.RunReport, deps Deps, er extract.Result, obs Observer) {
	started := time.Now()
	records, err := deps.Store.Persist(ctx, er.Questions)
	if err != nil {
		rr.Items = append(rr.Items, fatalItem(domain.StageStore, err))
		return
	}
	if obs != nil {
		obs.OnPhaseDone("store", map[string]any{
			"key":     deps.Store.Key(),
			"records": len(records),
		}, time.Since(started))
	}
}

// replay 在快照缺失/损坏时直接返回：此时尚未改写任何输入。
func replay(ctx context.Context, rr *domain.RunReport, eff config.EffectiveConfig, deps Deps, er extract.Result, obs Observer) {
	loadStarted := time.Now()
	records, err := deps.Store.Load(ctx)
	if err != nil {
		rr.Items = append(rr.Items, fatalItem(domain.StageStore, err))
		return
	}
	if obs != nil {
		obs.OnPhaseDone("store", map[string]any{
			"key":     deps.Store.Key(),
			"records": len(records),
		}, time.Since(loadStarted))
	}

	importStarted := time.Now()
	res := reconcile.New(eff.Markers, reconcile.WithNotifier(deps.Notifier)).Apply(er.Questions, records)
	for i, it := range res.Items {
		rr.Items = append(rr.Items, it)
		if obs != nil {
			obs.OnItemDone(i+1, res.Total, it)
		}
	}
	if obs != nil {
		obs.OnPhaseDone("import", map[string]any{
			"imported": res.Imported,
			"total":    res.Total,
		}, time.Since(importStarted))
	}
}

func fatalItem(stage string, err error) domain.ItemResult {
	it := domain.ItemResult{Stage: stage}
	it.Fail(err)
	if it.ErrorCode == "" {
		it.ErrorCode = config.Code(err)
	}
	if it.ErrorCode == "" {
		it.ErrorCode = domain.ErrCodeIOFailed
	}
	return it
}
