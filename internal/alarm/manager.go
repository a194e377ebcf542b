// Package alarm is the in-process alarm service: exact one-shot alarms keyed
// by a request code, delivered to the receiver registered for their action.
package alarm

import (
	"context"
	"sync"
	"time"

	pkglog "github.com/lifeleveling/lifeleveling/pkg/log"
)

const tag = "AlarmManager"

type Alarm struct {
	RequestCode int32
	Action      string
	At          time.Time
	Extras      map[string]string
}

// Receiver handles a fired alarm. ctx expires after the receiver deadline.
type Receiver func(ctx context.Context, a Alarm)

type Options struct {
	// Deadline bounds one receiver invocation.
	Deadline time.Duration
	// SweepInterval is how often pending alarms are checked against the wall
	// clock, so alarms still fire on time after the host was suspended.
	SweepInterval time.Duration
	Now           func() time.Time
}

type job struct {
	alarm Alarm
	timer *time.Timer
	seq   uint64
}

type Manager struct {
	logger    pkglog.Logger
	opts      Options
	mu        sync.Mutex
	pending   map[int32]*job
	receivers map[string]Receiver
	seq       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewManager(logger pkglog.Logger, opts Options) *Manager {
	if opts.Deadline <= 0 {
		opts.Deadline = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:    logger,
		opts:      opts,
		pending:   make(map[int32]*job),
		receivers: make(map[string]Receiver),
		ctx:       ctx,
		cancel:    cancel,
	}
	if opts.SweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop()
	}
	return m
}

// RegisterReceiver sets the receiver invoked for alarms with action.
func (m *Manager) RegisterReceiver(action string, r Receiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivers[action] = r
}

// SetExactAndAllowWhileIdle registers a to fire at a.At. A pending alarm with
// the same request code is replaced.
func (m *Manager) SetExactAndAllowWhileIdle(a Alarm) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.pending[a.RequestCode]; ok {
		existing.timer.Stop()
	}
	m.seq++
	seq := m.seq
	code := a.RequestCode
	j := &job{alarm: a, seq: seq}
	j.timer = time.AfterFunc(a.At.Sub(m.opts.Now()), func() { m.trigger(code, seq) })
	m.pending[code] = j

	m.logger.Debug(tag, "alarm set", pkglog.Fields{"request_code": code, "action": a.Action, "at": a.At})
}

// Cancel removes the pending alarm for code. It reports whether one existed.
func (m *Manager) Cancel(code int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.pending[code]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(m.pending, code)
	m.logger.Debug(tag, "alarm cancelled", pkglog.Fields{"request_code": code})
	return true
}

func (m *Manager) Pending(code int32) (Alarm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.pending[code]
	if !ok {
		return Alarm{}, false
	}
	return j.alarm, true
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Stop drops every pending alarm and waits for running receivers.
func (m *Manager) Stop() {
	m.cancel()
	m.mu.Lock()
	for code, j := range m.pending {
		j.timer.Stop()
		delete(m.pending, code)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) trigger(code int32, seq uint64) {
	m.mu.Lock()
	j, ok := m.pending[code]
	if !ok || j.seq != seq || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	j.timer.Stop()
	delete(m.pending, code)
	receiver := m.receivers[j.alarm.Action]
	m.wg.Add(1)
	m.mu.Unlock()

	go func(a Alarm) {
		defer m.wg.Done()
		if receiver == nil {
			m.logger.Error(tag, "no receiver registered for alarm", nil, pkglog.Fields{"request_code": a.RequestCode, "action": a.Action})
			return
		}
		ctx, cancel := context.WithTimeout(m.ctx, m.opts.Deadline)
		defer cancel()
		receiver(ctx, a)
	}(j.alarm)
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := m.opts.Now()
	m.mu.Lock()
	due := make(map[int32]uint64)
	for code, j := range m.pending {
		if !j.alarm.At.After(now) {
			due[code] = j.seq
		}
	}
	m.mu.Unlock()
	for code, seq := range due {
		m.trigger(code, seq)
	}
}
