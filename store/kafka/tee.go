package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Sample 写入 Kafka 的消息体
type Sample struct {
	DeviceID  string    `json:"device_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Message 以设备编号为键编码样本
func (s Sample) Message() kafka.Message {
	b, _ := json.Marshal(s)
	return kafka.Message{Key: []byte(s.DeviceID), Value: b, Time: s.Timestamp}
}

// Tee 将样本异步写入 Kafka，写入失败只记录日志
type Tee struct {
	deviceID string
	writer   *kafka.Writer
	now      func() time.Time
}

func (t *Tee) Push(v float64) {
	if t == nil || t.writer == nil {
		return
	}
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	s := Sample{DeviceID: t.deviceID, Value: v, Timestamp: now().UTC()}
	// 异步 writer 的 WriteMessages 只入队，错误由 Completion 回调上报
	_ = t.writer.WriteMessages(context.Background(), s.Message())
}
