package kafka

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"localhost:9092"}, c.config.Brokers)
	assert.Equal(t, "cardiac.samples", c.config.Topic)
	assert.IsType(t, &kafka.Hash{}, c.config.balancer())
}

func TestBalancer(t *testing.T) {
	c := Config{Balancer: "least_bytes"}
	assert.IsType(t, &kafka.LeastBytes{}, c.balancer())
}

func TestProducerCached(t *testing.T) {
	c, err := New(Config{Brokers: []string{"127.0.0.1:1"}})
	require.NoError(t, err)

	w1 := c.Producer("a")
	w2 := c.Producer("a")
	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, c.Producer("b"))
	assert.True(t, w1.Async)

	require.NoError(t, c.Close())
	assert.Nil(t, c.Producer("a"), "关闭后不再创建生产者")
	require.NoError(t, c.Close())
}

func TestSampleMessage(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	m := Sample{DeviceID: "dev-1", Value: 0.25, Timestamp: ts}.Message()
	assert.Equal(t, "dev-1", string(m.Key))

	var got Sample
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, 0.25, got.Value)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestNilTee(t *testing.T) {
	var tee *Tee
	assert.NotPanics(t, func() { tee.Push(1) })
}

func TestTeeLive(t *testing.T) {
	brokers := os.Getenv("CARDIAC_TEST_KAFKA_BROKERS")
	if brokers == "" || testing.Short() {
		t.Skip("CARDIAC_TEST_KAFKA_BROKERS not set")
	}
	c, err := New(Config{Brokers: strings.Split(brokers, ","), AllowAutoTopicCreation: true})
	require.NoError(t, err)
	tee := c.Tee("dev-live")
	for i := 0; i < 10; i++ {
		tee.Push(float64(i) / 10)
	}
	require.NoError(t, c.Close())
}
