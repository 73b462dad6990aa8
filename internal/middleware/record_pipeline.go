package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockForecaster/internal/domain/models"
	"StockForecaster/pkg/logger"
)

// Recorder is the minimal downstream interface the pipeline needs.
type Recorder interface {
	Record(ctx context.Context, run *models.ForecastRun) error
}

// RecordPipeline sits between the forecaster and the recording backend.
// It validates runs, forwards them, and buffers them for retry with
// exponential backoff while the backend is unavailable.
type RecordPipeline struct {
	rec        Recorder
	log        *logger.Logger
	bufSize    int
	bufCh      chan *models.ForecastRun
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	mu         sync.Mutex
	minBackoff time.Duration
	maxBackoff time.Duration
	timeout    time.Duration
	sleep      func(time.Duration, <-chan struct{}) bool
	dropped    func(*models.ForecastRun)
}

type PipelineOption func(*RecordPipeline)

// WithBufferSize sets how many runs are held while the backend is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RecordPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff sets the retry delay bounds.
func WithBackoff(lo, hi time.Duration) PipelineOption {
	return func(p *RecordPipeline) {
		if lo > 0 {
			p.minBackoff = lo
		}
		if hi >= p.minBackoff {
			p.maxBackoff = hi
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *RecordPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithDropHook is called for every run that could not be buffered.
func WithDropHook(fn func(*models.ForecastRun)) PipelineOption {
	return func(p *RecordPipeline) { p.dropped = fn }
}

// NewRecordPipeline creates a new pipeline.
func NewRecordPipeline(rec Recorder, opts ...PipelineOption) *RecordPipeline {
	p := &RecordPipeline{
		rec:        rec,
		log:        logger.Nop(),
		bufSize:    256,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 5 * time.Second,
		timeout:    10 * time.Second,
		sleep:      sleepOrStop,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.ForecastRun, p.bufSize)
	return p
}

// Start launches background retry of buffered runs.
func (p *RecordPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flush(context.WithoutCancel(ctx))
}

func (p *RecordPipeline) flush(ctx context.Context) {
	defer close(p.doneCh)
	backoff := p.minBackoff
	for {
		select {
		case <-p.stopCh:
			return
		case r := <-p.bufCh:
			if r == nil {
				continue
			}
			if err := p.forward(ctx, r); err != nil {
				if backoff < p.maxBackoff {
					backoff *= 2
					if backoff > p.maxBackoff {
						backoff = p.maxBackoff
					}
				}
				p.log.Warn("record retry failed",
					logger.String("run_id", r.RunID),
					logger.Duration("backoff", backoff),
					logger.Error(err),
				)
				// requeue if space; drop otherwise
				select {
				case p.bufCh <- r:
				default:
					p.drop(r)
				}
				if !p.sleep(backoff, p.stopCh) {
					return
				}
				continue
			}
			backoff = p.minBackoff
		}
	}
}

// Stop stops background retry. Runs still buffered are logged and dropped.
func (p *RecordPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh

	if n := len(p.bufCh); n > 0 {
		p.log.Warn("record pipeline stopped with buffered runs", logger.Int("buffered", n))
	}
}

// Record validates and forwards a run, buffering it when the backend fails.
func (p *RecordPipeline) Record(ctx context.Context, r *models.ForecastRun) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := p.forward(ctx, r); err != nil {
		select {
		case p.bufCh <- r:
		default:
			p.drop(r)
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

// Buffered reports how many runs wait for retry.
func (p *RecordPipeline) Buffered() int { return len(p.bufCh) }

func (p *RecordPipeline) forward(ctx context.Context, r *models.ForecastRun) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.rec.Record(ctx, r)
}

func (p *RecordPipeline) drop(r *models.ForecastRun) {
	p.log.Error("record buffer full, dropping run", logger.String("run_id", r.RunID), logger.String("ticker", r.Ticker))
	if p.dropped != nil {
		p.dropped(r)
	}
}

func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	}
}
