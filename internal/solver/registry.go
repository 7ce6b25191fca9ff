package solver

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissingDenseID 稠密 ID 表缺失键（调用方契约违规，硬失败）
var ErrMissingDenseID = errors.New("稠密 ID 缺失")

// DenseIDMaps 字符串 ID 与稠密数值 ID 的双向映射。
// 数值按去重后字典序分配 0..n-1，因此对同一集合（任意顺序）结果确定。
type DenseIDMaps struct {
	Forward map[string]int
	Reverse map[int]string
}

// CreateDenseIDMaps 构建稠密 ID 映射
func CreateDenseIDMaps(ids []string) DenseIDMaps {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)

	m := DenseIDMaps{
		Forward: make(map[string]int, len(unique)),
		Reverse: make(map[int]string, len(unique)),
	}
	for i, id := range unique {
		m.Forward[id] = i
		m.Reverse[i] = id
	}
	return m
}

// GetOrThrow 取键的稠密 ID，缺失返回 ErrMissingDenseID
func (m DenseIDMaps) GetOrThrow(key string) (int, error) {
	id, ok := m.Forward[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingDenseID, key)
	}
	return id, nil
}
