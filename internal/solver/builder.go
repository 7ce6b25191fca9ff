package solver

import (
	"fmt"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/timeslot"
)

// syntheticFixedID 固定事件进入问题时的合成 ID，带前缀避免与模板 ID 冲突
func syntheticFixedID(eventID string) string {
	return "scheduled:" + eventID
}

// BuildInput 问题构建所需的全部数据快照
type BuildInput struct {
	Activities        []schema.Activity
	Constraints       []schema.Constraint
	UserBehavior      []schema.UserBehavior
	MarkovTransitions []schema.MarkovTransitionCount
	HNetArcCounts     []schema.HNetArcCount
	HNetPairCounts    []schema.HNetPairCount
	ScheduledEvents   []schema.ScheduledEvent
	HorizonStart      time.Time
	TotalSlots        int
}

// ProblemBuilder 把数据层快照组装成求解器问题。
// 数据问题（未解析的 ID、非法约束、脏挖掘行）一律降级为告警，
// 只有内部不变量被破坏（稠密表缺键）才返回错误。
type ProblemBuilder struct {
	injector *HeuristicInjector
}

// NewProblemBuilder 创建构建器，opts 为 nil 取默认启发式调参
func NewProblemBuilder(opts *HeuristicOptions) *ProblemBuilder {
	return &ProblemBuilder{injector: NewHeuristicInjector(opts)}
}

// Build 组装问题
func (b *ProblemBuilder) Build(input BuildInput) (*BuiltProblem, error) {
	var warnings []string

	fixedEvents := make([]schema.ScheduledEvent, 0, len(input.ScheduledEvents))
	fixedEventBySyntheticID := make(map[string]schema.ScheduledEvent)
	for _, event := range input.ScheduledEvents {
		if !event.IsFixed() {
			continue
		}
		fixedEvents = append(fixedEvents, event)
		fixedEventBySyntheticID[syntheticFixedID(event.ID)] = event
	}

	allActivityIDs := make([]string, 0, len(input.Activities)+len(fixedEvents))
	for _, a := range input.Activities {
		allActivityIDs = append(allActivityIDs, a.ID)
	}
	for _, e := range fixedEvents {
		allActivityIDs = append(allActivityIDs, syntheticFixedID(e.ID))
	}
	activityIDs := CreateDenseIDMaps(allActivityIDs)

	allCategoryIDs := make([]string, 0, len(input.Activities)+len(fixedEvents)+len(input.Constraints))
	for _, a := range input.Activities {
		allCategoryIDs = append(allCategoryIDs, a.CategoryID)
	}
	for _, e := range fixedEvents {
		allCategoryIDs = append(allCategoryIDs, e.CategoryID)
	}
	for _, c := range input.Constraints {
		if c.CategoryID != "" {
			allCategoryIDs = append(allCategoryIDs, c.CategoryID)
		}
	}
	categoryIDs := CreateDenseIDMaps(allCategoryIDs)

	baseActivitiesByID := make(map[string]schema.Activity, len(input.Activities))
	for _, a := range input.Activities {
		baseActivitiesByID[a.ID] = a
	}

	activities := make([]Activity, 0, len(allActivityIDs))
	var floatingIndices, fixedIndices []int
	activitiesByNumericID := make(map[int]*Activity, len(allActivityIDs))

	for numericID := 0; numericID < len(activityIDs.Reverse); numericID++ {
		externalID := activityIDs.Reverse[numericID]

		if base, ok := baseActivitiesByID[externalID]; ok {
			built, err := b.buildFloating(base, activityIDs, categoryIDs)
			if err != nil {
				return nil, err
			}
			activities = append(activities, built)
			floatingIndices = append(floatingIndices, len(activities)-1)
			activitiesByNumericID[numericID] = &activities[len(activities)-1]
			continue
		}

		event, ok := fixedEventBySyntheticID[externalID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("丢弃来源不明的活动 ID: %s", externalID))
			continue
		}
		built, err := b.buildFixed(event, input.HorizonStart, activityIDs, categoryIDs)
		if err != nil {
			return nil, err
		}
		activities = append(activities, built)
		fixedIndices = append(fixedIndices, len(activities)-1)
		activitiesByNumericID[numericID] = &activities[len(activities)-1]
	}

	mapper := NewConstraintMapper(activityIDs, categoryIDs)
	globals, constraintWarnings := mapper.Map(input.Constraints, activitiesByNumericID)
	warnings = append(warnings, constraintWarnings...)

	injected := b.injector.Inject(HeuristicInput{
		ActivitiesByNumericID: activitiesByNumericID,
		ActivityIDs:           activityIDs,
		ArcCounts:             input.HNetArcCounts,
		PairCounts:            input.HNetPairCounts,
		MarkovTransitions:     input.MarkovTransitions,
		UserBehavior:          input.UserBehavior,
	})
	warnings = append(warnings, injected.Warnings...)

	return &BuiltProblem{
		Problem: Problem{
			Activities:        activities,
			FloatingIndices:   floatingIndices,
			FixedIndices:      fixedIndices,
			GlobalConstraints: globals,
			Heatmap:           injected.Heatmap,
			MarkovMatrix:      injected.MarkovMatrix,
			TotalSlots:        input.TotalSlots,
		},
		ActivityIDToNumeric: activityIDs,
		CategoryIDToNumeric: categoryIDs,
		HorizonStart:        input.HorizonStart,
		Warnings:            warnings,
	}, nil
}

func (b *ProblemBuilder) buildFloating(base schema.Activity, activityIDs, categoryIDs DenseIDMaps) (Activity, error) {
	numericID, err := activityIDs.GetOrThrow(base.ID)
	if err != nil {
		return Activity{}, err
	}
	numericCategory, err := categoryIDs.GetOrThrow(base.CategoryID)
	if err != nil {
		return Activity{}, err
	}
	return Activity{
		ID:                       numericID,
		ActivityType:             ActivityFloating,
		DurationSlots:            timeslot.MinutesToSlots(base.DefaultDuration),
		Priority:                 base.Priority,
		AssignedStart:            nil,
		CategoryID:               numericCategory,
		InputBindings:            []Binding{},
		OutputBindings:           []Binding{},
		FrequencyTargets:         []FrequencyTarget{},
		UserFrequencyConstraints: []UserFrequencyConstraint{},
	}, nil
}

func (b *ProblemBuilder) buildFixed(event schema.ScheduledEvent, horizonStart time.Time, activityIDs, categoryIDs DenseIDMaps) (Activity, error) {
	numericID, err := activityIDs.GetOrThrow(syntheticFixedID(event.ID))
	if err != nil {
		return Activity{}, err
	}
	numericCategory, err := categoryIDs.GetOrThrow(event.CategoryID)
	if err != nil {
		return Activity{}, err
	}
	start := timeslot.DateToSlot(event.StartTime, horizonStart)
	return Activity{
		ID:                       numericID,
		ActivityType:             ActivityFixed,
		DurationSlots:            timeslot.MinutesToSlots(event.Duration),
		Priority:                 event.Priority,
		AssignedStart:            &start,
		CategoryID:               numericCategory,
		InputBindings:            []Binding{},
		OutputBindings:           []Binding{},
		FrequencyTargets:         []FrequencyTarget{},
		UserFrequencyConstraints: []UserFrequencyConstraint{},
	}, nil
}
