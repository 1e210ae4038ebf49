package stream

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/kochabx/cardiac/errors"
)

// Sink 接收解析后的样本，调用顺序与消息到达顺序一致
type Sink interface {
	Push(v float64)
}

// SinkFunc 适配普通函数
type SinkFunc func(float64)

func (f SinkFunc) Push(v float64) { f(v) }

type multi []Sink

func (m multi) Push(v float64) {
	for _, s := range m {
		s.Push(v)
	}
}

// Multi 将样本依次写入多个 Sink，nil 会被忽略
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type objectSample struct {
	Value *json.Number `json:"value"`
}

// ParseSample 解析一帧数据：十进制数字或 {"value": n}。NaN 与 Inf 视为无效
func ParseSample(payload []byte) (float64, error) {
	p := bytes.TrimSpace(payload)
	var v float64
	var err error
	if len(p) > 0 && p[0] == '{' {
		var obj objectSample
		if err = json.Unmarshal(p, &obj); err == nil {
			if obj.Value == nil {
				return 0, errors.StreamParseError(string(p), nil)
			}
			v, err = obj.Value.Float64()
		}
	} else {
		v, err = strconv.ParseFloat(string(p), 64)
	}
	if err != nil {
		return 0, errors.StreamParseError(string(p), err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.StreamParseError(string(p), nil)
	}
	return v, nil
}
