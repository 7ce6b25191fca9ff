package mining

import (
	"context"
	"log/slog"
	"sort"

	"github.com/yuqie6/TimeLoom/internal/schema"
)

// AnalyzerResult 一次全量重放的统计
type AnalyzerResult struct {
	CompletedEvents int
	MarkovUpdates   int
	HNetArcUpdates  int
	HNetPairUpdates int
}

// MinedBatch 不触库的挖掘结果（stats 命令与测试用）
type MinedBatch struct {
	Markov []MarkovUpdate
	HNet   HeuristicBatch
}

// HistoryAnalyzer 历史重放编排器：过滤已完成行、按时间排序、
// 依次喂给转移与启发式网挖掘器
type HistoryAnalyzer struct {
	markov *MarkovMiner
	hnet   *HNetMiner
}

// NewHistoryAnalyzer 创建编排器
func NewHistoryAnalyzer(markov *MarkovMiner, hnet *HNetMiner) *HistoryAnalyzer {
	if markov == nil {
		markov = NewMarkovMiner(-1)
	}
	if hnet == nil {
		hnet = NewHNetMiner(0)
	}
	return &HistoryAnalyzer{markov: markov, hnet: hnet}
}

func toSortedEvents(rows []schema.ActivityHistory) []CompletedActivityEvent {
	events := make([]CompletedActivityEvent, 0, len(rows))
	for _, row := range rows {
		if e, ok := EventFromHistory(row); ok {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events
}

// Replay 重放历史并持久化全部计数增量
func (a *HistoryAnalyzer) Replay(ctx context.Context, rows []schema.ActivityHistory, markovStore MarkovStore, hnetStore HNetStore) (AnalyzerResult, error) {
	events := toSortedEvents(rows)

	markovUpdates, err := a.markov.Persist(ctx, events, markovStore)
	if err != nil {
		return AnalyzerResult{}, err
	}
	hnetBatch, err := a.hnet.Persist(ctx, events, hnetStore)
	if err != nil {
		return AnalyzerResult{}, err
	}

	result := AnalyzerResult{
		CompletedEvents: len(events),
		MarkovUpdates:   len(markovUpdates),
		HNetArcUpdates:  len(hnetBatch.Arcs),
		HNetPairUpdates: len(hnetBatch.Pairs),
	}
	slog.Info("历史重放完成",
		"events", result.CompletedEvents,
		"markov", result.MarkovUpdates,
		"arcs", result.HNetArcUpdates,
		"pairs", result.HNetPairUpdates)
	return result, nil
}

// MineBatch 只计算不落库
func (a *HistoryAnalyzer) MineBatch(rows []schema.ActivityHistory) (MinedBatch, error) {
	events := toSortedEvents(rows)

	markovUpdates, err := a.markov.MineCounts(events)
	if err != nil {
		return MinedBatch{}, err
	}
	hnetBatch, err := a.hnet.MineCounts(events)
	if err != nil {
		return MinedBatch{}, err
	}
	return MinedBatch{Markov: markovUpdates, HNet: hnetBatch}, nil
}
