package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wavely/converse/pkg/logging"
)

// ErrDispatcherClosed indicates the dispatcher is no longer accepting
// turns.
var ErrDispatcherClosed = errors.New("conversation: dispatcher closed")

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Dispatcher routes turns through a queue before they reach the
// engine, so the HTTP surface stays identical whether the queue is
// in-memory (development) or SQS (production). History and EndSession
// are synchronous reads and bypass the queue.
type Dispatcher struct {
	engine Service
	queue  queueClient
	logger *logging.Logger

	workers      int
	receiveWait  int
	receiveBatch int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // turnID -> chan turnResult
}

var _ Service = (*Dispatcher)(nil)

const (
	defaultWorkers     = 2
	defaultReceiveWait = 2 // seconds
	defaultBatchSize   = 5
	maxReceiveWait     = 20 // SQS ceiling
)

// DispatcherOption tunes the queue consumers.
type DispatcherOption func(*Dispatcher)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait for Receive calls.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(d *Dispatcher) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWait {
			seconds = maxReceiveWait
		}
		d.receiveWait = seconds
	}
}

// NewDispatcher wires queue consumers around the supplied engine and
// starts them.
func NewDispatcher(engine Service, queue queueClient, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		engine:       engine,
		queue:        queue,
		logger:       logger,
		workers:      defaultWorkers,
		receiveWait:  defaultReceiveWait,
		receiveBatch: defaultBatchSize,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}
	return d
}

// ProcessMessage enqueues the turn and blocks until a worker has run
// it through the engine.
func (d *Dispatcher) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	turnID := uuid.NewString()
	body, err := json.Marshal(turnEnvelope{ID: turnID, Message: req})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to encode turn: %w", err)
	}

	resultCh := make(chan turnResult, 1)
	d.pending.Store(turnID, resultCh)
	defer d.pending.Delete(turnID)

	if err := d.queue.Send(ctx, string(body)); err != nil {
		return nil, fmt.Errorf("conversation: failed to enqueue turn: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.response, res.err
	}
}

// History is a pass-through read; no queueing involved.
func (d *Dispatcher) History(ctx context.Context, sessionID string) ([]TranscriptMessage, error) {
	return d.engine.History(ctx, sessionID)
}

// EndSession is a pass-through; session lifecycle is synchronous.
func (d *Dispatcher) EndSession(ctx context.Context, sessionID string) error {
	return d.engine.EndSession(ctx, sessionID)
}

// Shutdown stops the workers and unblocks pending callers.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	d.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan turnResult); ok {
			select {
			case ch <- turnResult{err: ErrDispatcherClosed}:
			default:
			}
		}
		d.pending.Delete(key)
		return true
	})
	return nil
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("dispatcher worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("dispatcher worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(d.ctx, d.receiveBatch, d.receiveWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive turns", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleMessage(msg)
		}
	}
}

func (d *Dispatcher) handleMessage(msg queueMessage) {
	var envelope turnEnvelope
	if err := json.Unmarshal([]byte(msg.Body), &envelope); err != nil {
		d.logger.Error("failed to decode turn", "error", err)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	resp, err := d.engine.ProcessMessage(d.ctx, envelope.Message)
	d.deleteMessage(msg.ReceiptHandle)
	d.deliver(envelope.ID, resp, err)
}

func (d *Dispatcher) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.queue.Delete(ctx, receiptHandle); err != nil {
		d.logger.Error("failed to delete turn", "error", err)
	}
}

func (d *Dispatcher) deliver(turnID string, resp *Response, err error) {
	value, ok := d.pending.Load(turnID)
	if !ok {
		d.logger.Debug("no waiting caller for turn", "turn_id", turnID)
		return
	}
	ch, ok := value.(chan turnResult)
	if !ok {
		d.pending.Delete(turnID)
		return
	}
	select {
	case ch <- turnResult{response: resp, err: err}:
	default:
	}
}

type turnEnvelope struct {
	ID      string         `json:"id"`
	Message MessageRequest `json:"message"`
}

type turnResult struct {
	response *Response
	err      error
}
