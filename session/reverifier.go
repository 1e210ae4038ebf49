package session

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/kochabx/cardiac/errors"
)

// Config 会话配置
type Config struct {
	// Reverify 周期性重新校验令牌的 cron 表达式，为空时不启用
	Reverify string `json:"reverify" mapstructure:"reverify" default:"@every 5m"`
}

// Reverifier 按计划重新校验令牌，令牌被吊销后订阅者会收到未认证的快照
type Reverifier struct {
	store *Store
	cron  *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewReverifier(s *Store, schedule string) (*Reverifier, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	r := &Reverifier{store: s, cron: c}
	if _, err := c.AddFunc(schedule, r.run); err != nil {
		return nil, errors.Wrap(err, 400, "invalid reverify schedule %q", schedule)
	}
	return r, nil
}

func (r *Reverifier) run() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	// 未登录时不会发起网络请求
	sess := r.store.VerifyToken(ctx)
	r.store.logger.Debug().Bool("authenticated", sess.Authenticated).Msg("scheduled token verification")
}

// Start 启动调度，ctx 取消后不再发起校验
func (r *Reverifier) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()
	r.cron.Start()
}

// Stop 停止调度并等待正在执行的校验结束
func (r *Reverifier) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	<-r.cron.Stop().Done()
}
