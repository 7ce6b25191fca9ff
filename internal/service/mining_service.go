package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuqie6/TimeLoom/internal/eventbus"
	"github.com/yuqie6/TimeLoom/internal/mining"
	"github.com/yuqie6/TimeLoom/internal/repository"
)

// MiningService 行为挖掘入口：完成记录写入、历史重放、频次对账
type MiningService struct {
	writer      *mining.HistoryWriter
	analyzer    *mining.HistoryAnalyzer
	historyRepo *repository.HistoryRepository
	markovRepo  *repository.MarkovRepository
	hnetRepo    *repository.HNetRepository
	hub         *eventbus.Hub
	timeZone    string
}

// NewMiningService 创建挖掘服务
func NewMiningService(
	writer *mining.HistoryWriter,
	analyzer *mining.HistoryAnalyzer,
	historyRepo *repository.HistoryRepository,
	markovRepo *repository.MarkovRepository,
	hnetRepo *repository.HNetRepository,
	hub *eventbus.Hub,
	timeZone string,
) *MiningService {
	if timeZone == "" {
		timeZone = "UTC"
	}
	return &MiningService{
		writer:      writer,
		analyzer:    analyzer,
		historyRepo: historyRepo,
		markovRepo:  markovRepo,
		hnetRepo:    hnetRepo,
		hub:         hub,
		timeZone:    timeZone,
	}
}

// RecordCompletion 记录一次活动完成并增量维护 EMA 状态
func (s *MiningService) RecordCompletion(ctx context.Context, input mining.RecordCompletionInput) (string, error) {
	id, err := s.writer.RecordCompletion(ctx, input)
	if err != nil {
		return "", err
	}
	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeCompletionRecorded,
		Data: map[string]any{"activity_id": input.ActivityID, "history_id": id},
	})
	return id, nil
}

// ReplayHistory 清空计数表并从完整历史重建 Markov 与启发式网计数。
// 重放是幂等修复手段，任何时候跑结果都一致。
func (s *MiningService) ReplayHistory(ctx context.Context) (mining.AnalyzerResult, error) {
	rows, err := s.historyRepo.GetCompleted(ctx)
	if err != nil {
		return mining.AnalyzerResult{}, fmt.Errorf("加载完成历史失败: %w", err)
	}

	if err := s.markovRepo.Reset(ctx); err != nil {
		return mining.AnalyzerResult{}, fmt.Errorf("清空转移计数失败: %w", err)
	}
	if err := s.hnetRepo.Reset(ctx); err != nil {
		return mining.AnalyzerResult{}, fmt.Errorf("清空启发式网计数失败: %w", err)
	}

	result, err := s.analyzer.Replay(ctx, rows, s.markovRepo, s.hnetRepo)
	if err != nil {
		return mining.AnalyzerResult{}, err
	}

	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeMiningReplayed,
		Data: map[string]any{
			"events":      result.CompletedEvents,
			"transitions": result.MarkovUpdates,
			"arcs":        result.HNetArcUpdates,
			"pairs":       result.HNetPairUpdates,
		},
	})
	return result, nil
}

// Reconcile 对脏或过期活动重建学习频次
func (s *MiningService) Reconcile(ctx context.Context, staleActivities []string) (mining.ReconcileResult, error) {
	result, err := s.writer.ReconcileLearnedFrequency(ctx, s.timeZone, staleActivities)
	if err != nil {
		return mining.ReconcileResult{}, err
	}

	slog.Info("频次对账完成", "activities", result.Activities, "rebuilt_scopes", result.RebuiltScopes)
	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeFrequencyReconcile,
		Data: map[string]any{"activities": result.Activities},
	})
	return result, nil
}
