package eventbus

import (
	"context"
	"sync"
	"time"
)

// 排期流水线各阶段的事件类型
const (
	TypeCompletionRecorded = "completion_recorded" // 新的完成记录入库
	TypeMiningReplayed     = "mining_replayed"     // 历史重放刷新了计数表
	TypeFrequencyReconcile = "frequency_reconcile" // EMA 频次对账完成
	TypeProblemBuilt       = "problem_built"       // 求解问题组装完成
	TypeScheduleSolved     = "schedule_solved"     // 求解结果已解析
	TypeConfigReloaded     = "config_reloaded"     // 配置热更新生效
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，避免阻塞排期链路
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}
