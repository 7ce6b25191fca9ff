package solver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedResultTuple 求解结果不是合法的 [非负整数, 非负整数] 元组数组。
// 这是与外部求解器唯一的对账边界，必须严格失败。
var ErrMalformedResultTuple = errors.New("求解结果元组非法")

// 问题结构固定、字段已知，因此编码器按显式 schema 逐字段写出
// MessagePack，不走反射。键名与求解器线上格式一一对应。

type msgpackWriter struct {
	buf []byte
}

func (w *msgpackWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *msgpackWriter) writeNil() {
	w.writeByte(0xc0)
}

func (w *msgpackWriter) writeMapHeader(n int) {
	switch {
	case n <= 15:
		w.writeByte(0x80 | byte(n))
	case n <= math.MaxUint16:
		w.writeByte(0xde)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.writeByte(0xdf)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
}

func (w *msgpackWriter) writeArrayHeader(n int) {
	switch {
	case n <= 15:
		w.writeByte(0x90 | byte(n))
	case n <= math.MaxUint16:
		w.writeByte(0xdc)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.writeByte(0xdd)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
}

func (w *msgpackWriter) writeString(s string) {
	n := len(s)
	switch {
	case n <= 31:
		w.writeByte(0xa0 | byte(n))
	case n <= math.MaxUint8:
		w.writeByte(0xd9)
		w.writeByte(byte(n))
	default:
		w.writeByte(0xda)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	}
	w.buf = append(w.buf, s...)
}

func (w *msgpackWriter) writeInt(v int) {
	if v >= 0 {
		switch {
		case v < 128:
			w.writeByte(byte(v))
		case v <= math.MaxUint8:
			w.writeByte(0xcc)
			w.writeByte(byte(v))
		case v <= math.MaxUint16:
			w.writeByte(0xcd)
			w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
		case v <= math.MaxUint32:
			w.writeByte(0xce)
			w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
		default:
			w.writeByte(0xcf)
			w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
		}
		return
	}
	switch {
	case v >= -32:
		w.writeByte(byte(v))
	case v >= math.MinInt8:
		w.writeByte(0xd0)
		w.writeByte(byte(int8(v)))
	case v >= math.MinInt16:
		w.writeByte(0xd1)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(int16(v)))
	case v >= math.MinInt32:
		w.writeByte(0xd2)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(int32(v)))
	default:
		w.writeByte(0xd3)
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
	}
}

func (w *msgpackWriter) writeFloat64(v float64) {
	w.writeByte(0xcb)
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// SerializeProblem 把问题编码为求解器消费的 MessagePack 字节流
func SerializeProblem(p Problem) []byte {
	w := &msgpackWriter{buf: make([]byte, 0, 256)}

	w.writeMapHeader(7)

	w.writeString("activities")
	w.writeArrayHeader(len(p.Activities))
	for i := range p.Activities {
		writeActivity(w, &p.Activities[i])
	}

	w.writeString("floating_indices")
	writeIntSlice(w, p.FloatingIndices)

	w.writeString("fixed_indices")
	writeIntSlice(w, p.FixedIndices)

	w.writeString("global_constraints")
	w.writeArrayHeader(len(p.GlobalConstraints))
	for i := range p.GlobalConstraints {
		writeGlobalConstraint(w, &p.GlobalConstraints[i])
	}

	w.writeString("heatmap")
	w.writeArrayHeader(len(p.Heatmap))
	for _, e := range p.Heatmap {
		w.writeArrayHeader(3)
		w.writeInt(e.Activity)
		w.writeInt(e.Slot)
		w.writeFloat64(e.Probability)
	}

	w.writeString("markov_matrix")
	w.writeArrayHeader(len(p.MarkovMatrix))
	for _, e := range p.MarkovMatrix {
		w.writeArrayHeader(3)
		w.writeInt(e.From)
		w.writeInt(e.To)
		w.writeFloat64(e.Probability)
	}

	w.writeString("total_slots")
	w.writeInt(p.TotalSlots)

	return w.buf
}

func writeIntSlice(w *msgpackWriter, values []int) {
	w.writeArrayHeader(len(values))
	for _, v := range values {
		w.writeInt(v)
	}
}

func writeActivity(w *msgpackWriter, a *Activity) {
	w.writeMapHeader(10)

	w.writeString("id")
	w.writeInt(a.ID)

	w.writeString("activity_type")
	w.writeString(string(a.ActivityType))

	w.writeString("duration_slots")
	w.writeInt(a.DurationSlots)

	w.writeString("priority")
	w.writeInt(a.Priority)

	w.writeString("assigned_start")
	if a.AssignedStart == nil {
		w.writeNil()
	} else {
		w.writeInt(*a.AssignedStart)
	}

	w.writeString("category_id")
	w.writeInt(a.CategoryID)

	w.writeString("input_bindings")
	writeBindings(w, a.InputBindings)

	w.writeString("output_bindings")
	writeBindings(w, a.OutputBindings)

	w.writeString("frequency_targets")
	w.writeArrayHeader(len(a.FrequencyTargets))
	for _, t := range a.FrequencyTargets {
		w.writeMapHeader(3)
		w.writeString("scope")
		w.writeString(string(t.Scope))
		w.writeString("target_count")
		w.writeInt(t.TargetCount)
		w.writeString("weight")
		w.writeFloat64(t.Weight)
	}

	w.writeString("user_frequency_constraints")
	w.writeArrayHeader(len(a.UserFrequencyConstraints))
	for _, c := range a.UserFrequencyConstraints {
		w.writeMapHeader(4)
		w.writeString("scope")
		w.writeString(string(c.Scope))
		w.writeString("min_count")
		if c.MinCount == nil {
			w.writeNil()
		} else {
			w.writeInt(*c.MinCount)
		}
		w.writeString("max_count")
		if c.MaxCount == nil {
			w.writeNil()
		} else {
			w.writeInt(*c.MaxCount)
		}
		w.writeString("penalty_weight")
		w.writeFloat64(c.PenaltyWeight)
	}
}

func writeBindings(w *msgpackWriter, bindings []Binding) {
	w.writeArrayHeader(len(bindings))
	for _, b := range bindings {
		w.writeMapHeader(4)
		w.writeString("required_sets")
		w.writeArrayHeader(len(b.RequiredSets))
		for _, set := range b.RequiredSets {
			writeIntSlice(w, set)
		}
		w.writeString("time_scope")
		w.writeString(string(b.TimeScope))
		w.writeString("valid_weekdays")
		w.writeInt(b.ValidWeekdays)
		w.writeString("weight")
		w.writeFloat64(b.Weight)
	}
}

func writeGlobalConstraint(w *msgpackWriter, c *GlobalConstraint) {
	// 外部标签式枚举：{"变体名": {字段...}}
	w.writeMapHeader(1)
	if c.ForbiddenZone != nil {
		w.writeString("ForbiddenZone")
		w.writeMapHeader(2)
		w.writeString("start")
		w.writeInt(c.ForbiddenZone.Start)
		w.writeString("end")
		w.writeInt(c.ForbiddenZone.End)
		return
	}
	w.writeString("CumulativeTime")
	w.writeMapHeader(4)
	w.writeString("category_id")
	if c.CumulativeTime.CategoryID == nil {
		w.writeNil()
	} else {
		w.writeInt(*c.CumulativeTime.CategoryID)
	}
	w.writeString("period_slots")
	w.writeInt(c.CumulativeTime.PeriodSlots)
	w.writeString("min_duration")
	w.writeInt(c.CumulativeTime.MinDuration)
	w.writeString("max_duration")
	w.writeInt(c.CumulativeTime.MaxDuration)
}

// SerializeResultTuples 把结果元组编码为 MessagePack（测试与假求解器用）
func SerializeResultTuples(tuples []ResultTuple) []byte {
	w := &msgpackWriter{buf: make([]byte, 0, 8+4*len(tuples))}
	w.writeArrayHeader(len(tuples))
	for _, t := range tuples {
		w.writeArrayHeader(2)
		w.writeInt(t[0])
		w.writeInt(t[1])
	}
	return w.buf
}

type msgpackReader struct {
	buf []byte
	pos int
}

func (r *msgpackReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("%w: 数据意外截断", ErrMalformedResultTuple)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *msgpackReader) readN(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: 数据意外截断", ErrMalformedResultTuple)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *msgpackReader) readArrayHeader() (int, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b >= 0x90 && b <= 0x9f:
		return int(b & 0x0f), nil
	case b == 0xdc:
		raw, err := r.readN(2)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(raw)), nil
	case b == 0xdd:
		raw, err := r.readN(4)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(raw)), nil
	default:
		return 0, fmt.Errorf("%w: 期望数组，得到 0x%02x", ErrMalformedResultTuple, b)
	}
}

// readNonNegativeInt 读取一个非负整数，其余类型（含负数）一律拒绝
func (r *msgpackReader) readNonNegativeInt() (int, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b <= 0x7f: // positive fixint
		return int(b), nil
	case b == 0xcc:
		v, err := r.readByte()
		if err != nil {
			return 0, err
		}
		return int(v), nil
	case b == 0xcd:
		raw, err := r.readN(2)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(raw)), nil
	case b == 0xce:
		raw, err := r.readN(4)
		if err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(raw)), nil
	case b == 0xcf:
		raw, err := r.readN(8)
		if err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint64(raw)
		if v > math.MaxInt {
			return 0, fmt.Errorf("%w: 整数越界", ErrMalformedResultTuple)
		}
		return int(v), nil
	case b >= 0xd0 && b <= 0xd3:
		return 0, fmt.Errorf("%w: 元组值必须为非负整数", ErrMalformedResultTuple)
	case b >= 0xe0: // negative fixint
		return 0, fmt.Errorf("%w: 元组值必须为非负整数", ErrMalformedResultTuple)
	default:
		return 0, fmt.Errorf("%w: 期望整数，得到 0x%02x", ErrMalformedResultTuple, b)
	}
}

// DeserializeSolveResult 解码求解器输出。
// 空缓冲视为空结果；任何不是恰好两个非负整数的行都是硬错误。
func DeserializeSolveResult(payload []byte) ([]ResultTuple, error) {
	if len(payload) == 0 {
		return []ResultTuple{}, nil
	}

	r := &msgpackReader{buf: payload}
	count, err := r.readArrayHeader()
	if err != nil {
		return nil, err
	}

	tuples := make([]ResultTuple, 0, count)
	for i := 0; i < count; i++ {
		rowLen, err := r.readArrayHeader()
		if err != nil {
			return nil, err
		}
		if rowLen != 2 {
			return nil, fmt.Errorf("%w: 第 %d 行长度为 %d", ErrMalformedResultTuple, i, rowLen)
		}
		activityID, err := r.readNonNegativeInt()
		if err != nil {
			return nil, err
		}
		startSlot, err := r.readNonNegativeInt()
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, ResultTuple{activityID, startSlot})
	}
	return tuples, nil
}
