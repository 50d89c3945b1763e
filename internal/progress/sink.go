package progress

import (
	"math"
	"time"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
)

// Event is one progress notification
type Event struct {
	RunID       string          `json:"run_id"`
	Phase       contracts.Phase `json:"phase"`
	Description string          `json:"description"`
	Done        int             `json:"done"`
	Total       int             `json:"total"`
	Percent     float64         `json:"percent"`
	Time        time.Time       `json:"time"`
}

// NewEvent builds an event; Percent is done/total rounded to one decimal
func NewEvent(runID string, phase contracts.Phase, done, total int) Event {
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(done)/float64(total)*1000) / 10
	}
	return Event{
		RunID:       runID,
		Phase:       phase,
		Description: phase.Description(),
		Done:        done,
		Total:       total,
		Percent:     pct,
		Time:        time.Now().UTC(),
	}
}

// LogSink writes progress to the structured log
type LogSink struct {
	logger *logger.Logger
	every  int
}

// NewLogSink creates a log sink; progress is logged every `every` items (<=0: 10% steps)
func NewLogSink(log *logger.Logger, every int) *LogSink {
	return &LogSink{logger: log, every: every}
}

// OnPhase logs a phase change
func (s *LogSink) OnPhase(runID string, phase contracts.Phase) {
	s.logger.WithRun(runID).WithFields(map[string]interface{}{
		"phase":       string(phase),
		"description": phase.Description(),
	}).Info("Phase started")
}

// OnProgress logs throttled progress
func (s *LogSink) OnProgress(runID string, phase contracts.Phase, done, total int) {
	step := s.every
	if step <= 0 {
		step = total / 10
		if step < 1 {
			step = 1
		}
	}
	if done != total && done%step != 0 {
		return
	}
	e := NewEvent(runID, phase, done, total)
	s.logger.WithRun(runID).WithFields(map[string]interface{}{
		"phase":   string(phase),
		"done":    done,
		"total":   total,
		"percent": e.Percent,
	}).Debug("Progress")
}

// Fanout forwards every event to each sink
type Fanout []contracts.ProgressSink

// OnPhase forwards a phase change
func (f Fanout) OnPhase(runID string, phase contracts.Phase) {
	for _, s := range f {
		if s != nil {
			s.OnPhase(runID, phase)
		}
	}
}

// OnProgress forwards progress
func (f Fanout) OnProgress(runID string, phase contracts.Phase, done, total int) {
	for _, s := range f {
		if s != nil {
			s.OnProgress(runID, phase, done, total)
		}
	}
}

// Nop discards everything
type Nop struct{}

func (Nop) OnPhase(string, contracts.Phase) {}
func (Nop) OnProgress(string, contracts.Phase, int, int) {}

var (
	_ contracts.ProgressSink = (*LogSink)(nil)
	_ contracts.ProgressSink = Fanout(nil)
	_ contracts.ProgressSink = Nop{}
)
