package solver

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/yuqie6/TimeLoom/internal/schema"
)

// HeuristicOptions 软绑定合成的调参项，零值字段取默认
type HeuristicOptions struct {
	MinimumSupport       int     // 弧计数低于此值不参与合成
	DependencyThreshold  float64 // 依赖分低于此值的弧被丢弃
	PairMinimumSupport   int     // 共现对计数下限
	MaxClausesPerBinding int     // 单个绑定最多携带的子句数
	SoftBindingScale     float64 // 置信度到权重的放大系数
	MarkovSmoothingAlpha float64 // 拉普拉斯平滑系数
	FrequencyWeight      float64 // 学习频次目标的权重
}

// DefaultHeuristicOptions 默认调参
func DefaultHeuristicOptions() HeuristicOptions {
	return HeuristicOptions{
		MinimumSupport:       2,
		DependencyThreshold:  0.1,
		PairMinimumSupport:   2,
		MaxClausesPerBinding: 4,
		SoftBindingScale:     250,
		MarkovSmoothingAlpha: 1,
		FrequencyWeight:      2,
	}
}

// BindingDirection 绑定挂在活动的哪一侧
type BindingDirection string

const (
	BindingInput  BindingDirection = "input"  // 前驱条件
	BindingOutput BindingDirection = "output" // 后继条件
)

// ArcIR 保留下来的依赖弧（诊断中间表示）
type ArcIR struct {
	PredecessorID   string
	SuccessorID     string
	TimeScope       schema.TimeScope
	WeekdayMask     int
	ForwardCount    int
	ReverseCount    int
	DependencyScore float64
}

// BindingIR 合成出的绑定（诊断中间表示）
type BindingIR struct {
	ActivityNumericID int
	Direction         BindingDirection
	TimeScope         schema.TimeScope
	WeekdayMask       int
	RequiredSets      [][]int
	Weight            float64
	Confidence        float64
}

// HeuristicIR 一次注入的全部中间表示
type HeuristicIR struct {
	Arcs     []ArcIR
	Bindings []BindingIR
}

// HeuristicInput 注入器的输入：挖掘计数加已构建的活动表
type HeuristicInput struct {
	ActivitiesByNumericID map[int]*Activity
	ActivityIDs           DenseIDMaps
	ArcCounts             []schema.HNetArcCount
	PairCounts            []schema.HNetPairCount
	MarkovTransitions     []schema.MarkovTransitionCount
	UserBehavior          []schema.UserBehavior
}

// HeuristicResult 注入产物。绑定与频次目标已就地写入活动，
// 矩阵与热力图由调用方挂到问题上。
type HeuristicResult struct {
	MarkovMatrix []MarkovEntry
	Heatmap      []HeatmapEntry
	IR           HeuristicIR
	Warnings     []string
}

// HeuristicInjector 把挖掘层的计数事实翻译为求解器的软启发。
// 挖掘数据只是建议，任何一行的失败都降级为告警。
type HeuristicInjector struct {
	options HeuristicOptions
}

// NewHeuristicInjector 创建注入器，opts 为 nil 取默认调参
func NewHeuristicInjector(opts *HeuristicOptions) *HeuristicInjector {
	options := DefaultHeuristicOptions()
	if opts != nil {
		options = *opts
	}
	return &HeuristicInjector{options: options}
}

// Inject 执行注入
func (h *HeuristicInjector) Inject(input HeuristicInput) HeuristicResult {
	var warnings []string
	markov := h.buildMarkovMatrix(input, &warnings)
	heatmap := h.buildHeatmap(input, &warnings)
	h.injectFrequencyTargets(input, &warnings)
	ir := h.injectBindings(input, &warnings)

	return HeuristicResult{
		MarkovMatrix: markov,
		Heatmap:      heatmap,
		IR:           ir,
		Warnings:     warnings,
	}
}

type markovRow struct {
	to    int
	count int
}

// buildMarkovMatrix 把转移计数按 from 分组并做拉普拉斯平滑，
// 保证单个 from 的概率和严格小于等于 1。
func (h *HeuristicInjector) buildMarkovMatrix(input HeuristicInput, warnings *[]string) []MarkovEntry {
	grouped := make(map[int][]markovRow)
	var fromOrder []int

	for _, row := range input.MarkovTransitions {
		from, okFrom := input.ActivityIDs.Forward[row.FromActivityID]
		to, okTo := input.ActivityIDs.Forward[row.ToActivityID]
		if !okFrom || !okTo {
			*warnings = append(*warnings, fmt.Sprintf("跳过含未知活动的转移: %s -> %s", row.FromActivityID, row.ToActivityID))
			continue
		}
		if _, seen := grouped[from]; !seen {
			fromOrder = append(fromOrder, from)
		}
		grouped[from] = append(grouped[from], markovRow{to: to, count: row.Count})
	}

	alpha := h.options.MarkovSmoothingAlpha
	var entries []MarkovEntry
	for _, from := range fromOrder {
		rows := grouped[from]
		total := 0
		for _, r := range rows {
			total += r.count
		}
		k := float64(len(rows))
		for _, r := range rows {
			probability := (float64(r.count) + alpha) / (float64(total) + alpha*k)
			entries = append(entries, MarkovEntry{From: from, To: r.to, Probability: probability})
		}
	}
	return entries
}

// buildHeatmap 把 HEATMAP_PROBABILITY 行为行原样透传为 (活动, 槽位, 概率)
func (h *HeuristicInjector) buildHeatmap(input HeuristicInput, warnings *[]string) []HeatmapEntry {
	var entries []HeatmapEntry
	for _, row := range input.UserBehavior {
		if row.Metric != schema.MetricHeatmapProbability {
			continue
		}
		if row.ActivityID == "" {
			*warnings = append(*warnings, fmt.Sprintf("跳过缺少 activity_id 的热力图行: %d", row.ID))
			continue
		}
		num, ok := input.ActivityIDs.Forward[row.ActivityID]
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("跳过未知活动的热力图行: %s", row.ActivityID))
			continue
		}
		slot, err := strconv.Atoi(row.KeyParam)
		if err != nil || slot < 0 {
			*warnings = append(*warnings, fmt.Sprintf("跳过槽位非法的热力图行: %q", row.KeyParam))
			continue
		}
		entries = append(entries, HeatmapEntry{Activity: num, Slot: slot, Probability: row.Value})
	}
	return entries
}

func frequencyScope(period schema.BehaviorPeriod) (schema.TimeScope, bool) {
	switch period {
	case schema.PeriodDaily:
		return schema.ScopeSameDay, true
	case schema.PeriodWeekly:
		return schema.ScopeSameWeek, true
	case schema.PeriodMonthly:
		return schema.ScopeSameMonth, true
	default:
		return "", false
	}
}

// injectFrequencyTargets 把 OBSERVED_FREQUENCY 行为行写成活动的软频次目标
func (h *HeuristicInjector) injectFrequencyTargets(input HeuristicInput, warnings *[]string) {
	for _, row := range input.UserBehavior {
		if row.Metric != schema.MetricObservedFrequency {
			continue
		}
		if row.ActivityID == "" {
			*warnings = append(*warnings, fmt.Sprintf("跳过缺少 activity_id 的频次行: %d", row.ID))
			continue
		}
		num, ok := input.ActivityIDs.Forward[row.ActivityID]
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("跳过未知活动的频次行: %s", row.ActivityID))
			continue
		}
		activity, ok := input.ActivitiesByNumericID[num]
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("跳过未构建活动的频次行: %s", row.ActivityID))
			continue
		}
		scope, ok := frequencyScope(schema.BehaviorPeriod(row.KeyParam))
		if !ok {
			// 周几粒度的频次目标求解器暂不支持
			*warnings = append(*warnings, fmt.Sprintf("跳过按周几统计的频次行: %s", row.KeyParam))
			continue
		}
		activity.FrequencyTargets = append(activity.FrequencyTargets, FrequencyTarget{
			Scope:       scope,
			TargetCount: maxInt(0, int(math.Round(row.Value))),
			Weight:      h.options.FrequencyWeight,
		})
	}
}

type arcCandidate struct {
	relatedNumericID int
	dependencyScore  float64
	support          int
}

type clauseCandidate struct {
	requiredSet []int
	score       float64
}

type pairLookupRow struct {
	firstNumericID  int
	secondNumericID int
	support         int
}

// candidateBuckets 按上下文键分桶并保持首次出现顺序，
// 使绑定产出与输入行序一一对应。
type candidateBuckets struct {
	byKey map[string][]arcCandidate
	order []string
}

func newCandidateBuckets() *candidateBuckets {
	return &candidateBuckets{byKey: make(map[string][]arcCandidate)}
}

func (b *candidateBuckets) add(key string, c arcCandidate) {
	if _, ok := b.byKey[key]; !ok {
		b.order = append(b.order, key)
	}
	b.byKey[key] = append(b.byKey[key], c)
}

func contextKey(activityNumericID int, scope schema.TimeScope, weekdayMask int) string {
	return fmt.Sprintf("%d|%s|%d", activityNumericID, scope, weekdayMask)
}

func arcKeyOf(predecessor, successor int, scope schema.TimeScope, weekdayMask int) string {
	return fmt.Sprintf("%d|%d|%s|%d", predecessor, successor, scope, weekdayMask)
}

// injectBindings 从弧计数合成 CNF 式软绑定并写入活动
func (h *HeuristicInjector) injectBindings(input HeuristicInput, warnings *[]string) HeuristicIR {
	// 反向弧查表用于计算依赖分的方向性
	reverseCount := make(map[string]int, len(input.ArcCounts))
	for _, row := range input.ArcCounts {
		predecessor, okPred := input.ActivityIDs.Forward[row.PredecessorActivityID]
		successor, okSucc := input.ActivityIDs.Forward[row.SuccessorActivityID]
		if !okPred || !okSucc {
			continue
		}
		reverseCount[arcKeyOf(predecessor, successor, row.TimeScope, row.WeekdayMask)] = row.Count
	}

	inputCandidates := newCandidateBuckets()
	outputCandidates := newCandidateBuckets()
	var arcs []ArcIR

	for _, row := range input.ArcCounts {
		predecessor, okPred := input.ActivityIDs.Forward[row.PredecessorActivityID]
		successor, okSucc := input.ActivityIDs.Forward[row.SuccessorActivityID]
		if !okPred || !okSucc {
			*warnings = append(*warnings, fmt.Sprintf("跳过含未知活动的依赖弧: %s -> %s", row.PredecessorActivityID, row.SuccessorActivityID))
			continue
		}
		if row.Count < h.options.MinimumSupport {
			continue
		}

		reverse := reverseCount[arcKeyOf(successor, predecessor, row.TimeScope, row.WeekdayMask)]
		dependencyScore := float64(row.Count-reverse) / float64(row.Count+reverse+1)
		if dependencyScore < h.options.DependencyThreshold {
			continue
		}

		arcs = append(arcs, ArcIR{
			PredecessorID:   row.PredecessorActivityID,
			SuccessorID:     row.SuccessorActivityID,
			TimeScope:       row.TimeScope,
			WeekdayMask:     row.WeekdayMask,
			ForwardCount:    row.Count,
			ReverseCount:    reverse,
			DependencyScore: dependencyScore,
		})

		inputCandidates.add(contextKey(successor, row.TimeScope, row.WeekdayMask), arcCandidate{
			relatedNumericID: predecessor,
			dependencyScore:  dependencyScore,
			support:          row.Count,
		})
		outputCandidates.add(contextKey(predecessor, row.TimeScope, row.WeekdayMask), arcCandidate{
			relatedNumericID: successor,
			dependencyScore:  dependencyScore,
			support:          row.Count,
		})
	}

	predecessorPairs := h.buildPairLookup(input, schema.PairPredecessor)
	successorPairs := h.buildPairLookup(input, schema.PairSuccessor)

	var bindings []BindingIR
	h.emitBindings(input, inputCandidates, predecessorPairs, BindingInput, &bindings)
	h.emitBindings(input, outputCandidates, successorPairs, BindingOutput, &bindings)

	return HeuristicIR{Arcs: arcs, Bindings: bindings}
}

func (h *HeuristicInjector) emitBindings(
	input HeuristicInput,
	buckets *candidateBuckets,
	pairs map[string][]pairLookupRow,
	direction BindingDirection,
	bindings *[]BindingIR,
) {
	for _, key := range buckets.order {
		parts := strings.SplitN(key, "|", 3)
		if len(parts) != 3 {
			continue
		}
		activityNumeric, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		weekdayMask, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		activity, ok := input.ActivitiesByNumericID[activityNumeric]
		if !ok {
			continue
		}

		binding := h.buildBinding(activityNumeric, direction, schema.TimeScope(parts[1]), weekdayMask, buckets.byKey[key], pairs[key])
		if binding == nil {
			continue
		}

		wire := Binding{
			RequiredSets:  binding.RequiredSets,
			TimeScope:     binding.TimeScope,
			ValidWeekdays: binding.WeekdayMask,
			Weight:        binding.Weight,
		}
		if direction == BindingInput {
			activity.InputBindings = append(activity.InputBindings, wire)
		} else {
			activity.OutputBindings = append(activity.OutputBindings, wire)
		}
		*bindings = append(*bindings, *binding)
	}
}

func (h *HeuristicInjector) buildPairLookup(input HeuristicInput, pairType schema.HNetPairType) map[string][]pairLookupRow {
	lookup := make(map[string][]pairLookupRow)
	for _, row := range input.PairCounts {
		if row.PairType != pairType {
			continue
		}
		if row.CoOccurrenceCount < h.options.PairMinimumSupport {
			continue
		}
		anchor, okAnchor := input.ActivityIDs.Forward[row.AnchorActivityID]
		first, okFirst := input.ActivityIDs.Forward[row.FirstActivityID]
		second, okSecond := input.ActivityIDs.Forward[row.SecondActivityID]
		if !okAnchor || !okFirst || !okSecond {
			continue
		}
		key := contextKey(anchor, row.TimeScope, row.WeekdayMask)
		lookup[key] = append(lookup[key], pairLookupRow{
			firstNumericID:  first,
			secondNumericID: second,
			support:         row.CoOccurrenceCount,
		})
	}
	return lookup
}

// buildBinding 在单个 (活动, 方向, 范围, 周几) 上下文内合成一条绑定：
// 单元素子句来自弧候选，双元素子句来自共现对，按分数贪心选取，
// 去重并剔除被已选子句蕴含的候选。
func (h *HeuristicInjector) buildBinding(
	activityNumericID int,
	direction BindingDirection,
	timeScope schema.TimeScope,
	weekdayMask int,
	candidates []arcCandidate,
	pairRows []pairLookupRow,
) *BindingIR {
	if len(candidates) == 0 {
		return nil
	}

	// 同一相关活动保留依赖分最高的一条
	candidateMap := make(map[int]arcCandidate, len(candidates))
	var candidateOrder []int
	for _, c := range candidates {
		existing, ok := candidateMap[c.relatedNumericID]
		if !ok {
			candidateOrder = append(candidateOrder, c.relatedNumericID)
			candidateMap[c.relatedNumericID] = c
			continue
		}
		if existing.dependencyScore < c.dependencyScore {
			candidateMap[c.relatedNumericID] = c
		}
	}

	clauses := make([]clauseCandidate, 0, len(candidateOrder)+len(pairRows))
	for _, id := range candidateOrder {
		clauses = append(clauses, clauseCandidate{
			requiredSet: []int{id},
			score:       candidateMap[id].dependencyScore,
		})
	}

	for _, pair := range pairRows {
		first, okFirst := candidateMap[pair.firstNumericID]
		second, okSecond := candidateMap[pair.secondNumericID]
		if !okFirst || !okSecond {
			continue
		}
		score := (first.dependencyScore+second.dependencyScore)/2 +
			float64(pair.support)/float64(maxInt(1, first.support+second.support))
		clauses = append(clauses, clauseCandidate{
			requiredSet: []int{pair.firstNumericID, pair.secondNumericID},
			score:       score,
		})
	}

	sort.SliceStable(clauses, func(i, j int) bool {
		if clauses[i].score != clauses[j].score {
			return clauses[i].score > clauses[j].score
		}
		return len(clauses[i].requiredSet) < len(clauses[j].requiredSet)
	})

	var selected []clauseCandidate
	seen := make(map[string]struct{})

	for _, clause := range clauses {
		if len(selected) >= h.options.MaxClausesPerBinding {
			break
		}
		sortedClause := append([]int(nil), clause.requiredSet...)
		sort.Ints(sortedClause)
		key := hashClause(sortedClause)
		if _, dup := seen[key]; dup {
			continue
		}

		redundant := false
		for _, prev := range selected {
			if isClauseSubset(prev.requiredSet, sortedClause) {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}

		seen[key] = struct{}{}
		selected = append(selected, clauseCandidate{requiredSet: sortedClause, score: clause.score})
	}

	if len(selected) == 0 {
		return nil
	}

	var confidence float64
	requiredSets := make([][]int, 0, len(selected))
	for _, clause := range selected {
		confidence += clause.score
		requiredSets = append(requiredSets, clause.requiredSet)
	}
	confidence /= float64(len(selected))
	weight := math.Max(10, confidence*h.options.SoftBindingScale)

	return &BindingIR{
		ActivityNumericID: activityNumericID,
		Direction:         direction,
		TimeScope:         timeScope,
		WeekdayMask:       weekdayMask,
		RequiredSets:      requiredSets,
		Weight:            weight,
		Confidence:        confidence,
	}
}

// isClauseSubset 判断 subset 的每个元素是否都包含于 superset。
// 已选子句是候选的子集时，候选不提供新信息。
func isClauseSubset(subset, superset []int) bool {
	set := make(map[int]struct{}, len(superset))
	for _, v := range superset {
		set[v] = struct{}{}
	}
	for _, v := range subset {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

func hashClause(sortedSet []int) string {
	parts := make([]string, len(sortedSet))
	for i, v := range sortedSet {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "&")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
