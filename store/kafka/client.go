// Package kafka 将解析后的心电样本异步旁路写入 Kafka。
package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"golang.org/x/sync/errgroup"

	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
)

// Client 按主题缓存异步生产者
type Client struct {
	config    Config
	transport kafka.RoundTripper
	logger    *log.Logger

	mu        sync.RWMutex
	producers map[string]*kafka.Writer
	closed    bool
}

// New 创建客户端，不会立即连接 Broker
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(400, "kafka: empty brokers")
	}

	c := &Client{
		config:    cfg,
		logger:    log.G,
		producers: make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = c.createTransport()
	}
	return c, nil
}

func (c *Client) createTransport() *kafka.Transport {
	t := &kafka.Transport{DialTimeout: c.config.Timeout}
	if c.config.Username != "" && c.config.Password != "" {
		t.SASL = plain.Mechanism{Username: c.config.Username, Password: c.config.Password}
	}
	return t
}

func (c *Client) createWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               c.config.balancer(),
		Transport:              c.transport,
		AllowAutoTopicCreation: c.config.AllowAutoTopicCreation,
		BatchTimeout:           c.config.BatchTimeout,
		WriteTimeout:           c.config.Timeout,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				c.logger.Warn().Err(err).Str("topic", topic).Int("messages", len(messages)).Msg("kafka write failed")
			}
		},
	}
}

// Producer 获取指定主题的异步生产者，不存在则创建。客户端关闭后返回 nil
func (c *Client) Producer(topic string) *kafka.Writer {
	c.mu.RLock()
	w, ok := c.producers[topic]
	closed := c.closed
	c.mu.RUnlock()
	if ok || closed {
		return w
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if w, ok := c.producers[topic]; ok {
		return w
	}
	w = c.createWriter(topic)
	c.producers[topic] = w
	return w
}

// Tee 返回写入配置主题的样本旁路
func (c *Client) Tee(deviceID string) *Tee {
	return &Tee{deviceID: deviceID, writer: c.Producer(c.config.Topic)}
}

// Close 刷新并关闭所有生产者
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	producers := c.producers
	c.producers = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CloseTimeout)
	defer cancel()

	eg, _ := errgroup.WithContext(ctx)
	for _, w := range producers {
		eg.Go(w.Close)
	}
	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), 504, "kafka: close timed out")
	}
}
