package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 延迟执行首轮抓取，避免与启动后的首批页面请求争抢资源
const defaultStartupDelay = 15 * time.Second

// Scheduler 定时触发与 /api/update 相同的抓取流程，结果只写日志
type Scheduler struct {
	cron         *cron.Cron
	updater      *Updater
	log          *zap.SugaredLogger
	startupDelay time.Duration
	startup      *time.Timer
}

func New(spec string, u *Updater, log *zap.SugaredLogger) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:         c,
		updater:      u,
		log:          log,
		startupDelay: defaultStartupDelay,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.startup = time.AfterFunc(s.startupDelay, s.runOnce)
}

// Stop 停止调度并取消尚未触发的首轮抓取，返回的 context 在正在执行的定时任务结束后关闭
func (s *Scheduler) Stop() context.Context {
	if s.startup != nil {
		s.startup.Stop()
	}
	return s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	res, err := s.updater.Run(context.Background())
	if err != nil {
		s.log.Errorf("scheduled update failed: %v", err)
		return
	}
	s.log.Infof("scheduled update done: total=%d errors=%d", res.TotalArticles, len(res.Errors))
}
