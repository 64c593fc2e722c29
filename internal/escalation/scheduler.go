package escalation

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSchedulerStopped 调度器已停止，拒绝新任务
var ErrSchedulerStopped = errors.New("escalation scheduler is stopped")

// escalationTask 一条待触发的自动升级任务
type escalationTask struct {
	alertID  string
	deadline time.Time
	callback func()
	index    int // 在堆中的位置
}

// taskHeap 按截止时间排序的最小堆
type taskHeap []*escalationTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	n := len(*h)
	task := x.(*escalationTask)
	task.index = n
	*h = append(*h, task)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[0 : n-1]
	return task
}

// Scheduler 升级调度器
// 每条告警至多一个待触发任务；到期后回调只执行一次，不重试。
// 截止时间随告警记录持久化，进程重启后由服务层重新注册未到期任务。
type Scheduler struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*escalationTask // alertID -> 任务
	wakeup  chan struct{}
	stopCh  chan struct{}
	stopped bool
	logger  *zap.Logger
}

// NewScheduler 创建升级调度器
func NewScheduler(logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		heap:   make(taskHeap, 0),
		tasks:  make(map[string]*escalationTask),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	heap.Init(&s.heap)
	return s
}

// Start 启动调度循环
func (s *Scheduler) Start() {
	go s.run()
}

// Stop 停止调度器，未触发的任务被丢弃
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// Schedule 注册或替换一条升级任务
// 同一告警重复注册时以新的截止时间为准
func (s *Scheduler) Schedule(alertID string, deadline time.Time, callback func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.tasks[alertID]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.tasks, alertID)
	}

	task := &escalationTask{
		alertID:  alertID,
		deadline: deadline,
		callback: callback,
	}
	heap.Push(&s.heap, task)
	s.tasks[alertID] = task

	// 新任务成为最早到期项时唤醒调度循环
	if s.heap[0] == task {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel 取消一条升级任务（告警退出 active 状态时调用）
func (s *Scheduler) Cancel(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[alertID]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, task.index)
	delete(s.tasks, alertID)
	return true
}

// Pending 当前未触发的任务数
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()

		if s.stopped {
			s.mu.Unlock()
			return
		}

		var wait time.Duration
		if s.heap.Len() == 0 {
			wait = 24 * time.Hour
		} else {
			next := s.heap[0]
			wait = time.Until(next.deadline)

			if wait <= 0 {
				task := heap.Pop(&s.heap).(*escalationTask)
				delete(s.tasks, task.alertID)
				s.mu.Unlock()

				s.logger.Debug("Escalation deadline reached",
					zap.String("alert_id", task.alertID),
				)
				go task.callback()
				continue
			}
		}

		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}
