package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"leadwatch/logger"
	"leadwatch/utils"
)

// Scheduler 按桶边界定时触发采集
type Scheduler struct {
	collector  *Collector
	interval   time.Duration
	offset     time.Duration
	runOnStart bool
	now        func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler 创建调度器，interval 为采集间隔，offset 为桶边界之后的延迟
func NewScheduler(c *Collector, interval, offset time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		collector:  c,
		interval:   interval,
		offset:     offset,
		runOnStart: runOnStart,
		now:        time.Now,
	}
}

// Start 启动调度循环
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
	logger.Info("⏰ 采集调度已启动，间隔 %v，偏移 %v", s.interval, s.offset)
}

// Stop 停止调度；正在执行的周期不会被取消，Stop 等待其完成后返回
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	logger.Info("⏹️ 采集调度已停止")
}

// RunNow 手动触发一次采集，与定时任务共用周期锁
// 调用方断开不会中断周期，避免写入只完成一部分批次
func (s *Scheduler) RunNow(ctx context.Context) (*Result, error) {
	return s.collector.Run(context.WithoutCancel(ctx))
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.runOnStart {
		s.tick(ctx)
	}

	for {
		next := s.nextRun(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

// tick 运行一个完整周期，只在两个周期之间响应停止
func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.collector.Run(context.WithoutCancel(ctx))
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleInProgress):
		logger.Info("⏭️ 上一轮采集仍在运行，跳过")
	default:
		// Run 内部已记录错误
	}
}

// nextRun 下一个桶边界加偏移的时刻
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.UnixMilli(utils.FloorBucket(now.UnixMilli(), s.interval.Milliseconds())).Add(s.offset)
	if !next.After(now) {
		next = next.Add(s.interval)
	}
	return next
}
