package control

import (
	"errors"
	"time"

	"github.com/crystal-mush/localchat/pkg/chat"
	"go.uber.org/zap"
)

// ErrClosed is returned when scheduling on a closed plane.
var ErrClosed = errors.New("control: plane closed")

const warningColor = "gold"

// WarningMinutes returns the active warning interval, 0 when disabled.
func (p *Plane) WarningMinutes() int {
	p.warnMu.Lock()
	defer p.warnMu.Unlock()
	return p.warnMinutes
}

// WarningText returns the text of the periodic warning.
func (p *Plane) WarningText() string {
	p.textMu.RLock()
	defer p.textMu.RUnlock()
	return p.warnText
}

// SetWarningText replaces the warning text. A running schedule picks it up
// on its next tick.
func (p *Plane) SetWarningText(text string) {
	if text == "" {
		text = DefaultWarningText
	}
	p.textMu.Lock()
	p.warnText = text
	p.textMu.Unlock()
}

// ScheduleWarnings sets the warning interval. Zero cancels the broadcast; a
// positive value cancels any running schedule and starts a new one.
func (p *Plane) ScheduleWarnings(minutes int) error {
	if minutes < 0 {
		return ErrInvalidInput
	}
	p.warnMu.Lock()
	defer p.warnMu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.stopWarningsLocked()
	p.warnMinutes = minutes
	if minutes == 0 {
		p.log.Info("chat warning disabled")
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	p.warnStop, p.warnDone = stop, done
	interval := time.Duration(minutes) * p.warnUnit
	go p.runWarnings(interval, stop, done)
	p.log.Info("chat warning scheduled", zap.Int("minutes", minutes))
	return nil
}

// stopWarningsLocked cancels the running schedule and waits for its
// goroutine to exit. warnMu must be held.
func (p *Plane) stopWarningsLocked() {
	if p.warnStop == nil {
		return
	}
	close(p.warnStop)
	<-p.warnDone
	p.warnStop, p.warnDone = nil, nil
}

func (p *Plane) runWarnings(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// A tick racing with stop must not broadcast.
			select {
			case <-stop:
				return
			default:
			}
			n := p.Broadcast(chat.System(p.host, warningColor, p.WarningText()))
			p.log.Debug("chat warning sent", zap.Int("players", n))
		}
	}
}
