package nonce

import (
	"context"

	"go.uber.org/zap"
)

// Func is the pipeline run with an assigned nonce: sign, then submit
type Func func(ctx context.Context, nonce uint64) error

type doOptions struct {
	skipQueue bool
	nonce     *uint64
}

// Option configures a single Do call
type Option func(*doOptions)

// WithoutQueue skips the identity's queue. The caller must already
// guarantee ordering, as a sub-call of a queued operation does.
func WithoutQueue() Option {
	return func(o *doOptions) { o.skipQueue = true }
}

// WithNonce uses n instead of drawing from the sequencer
func WithNonce(n uint64) Option {
	return func(o *doOptions) { o.nonce = &n }
}

// Manager pairs one Sequencer with per-identity queues. It is the only
// writer of either.
type Manager struct {
	seq    *Sequencer
	queues *Queues
	logger *zap.Logger
}

func NewManager(seq *Sequencer, logger *zap.Logger) *Manager {
	if seq == nil {
		seq = NewSequencer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{seq: seq, queues: NewQueues(), logger: logger}
}

// Do waits for identity's turn, assigns a nonce and runs fn. The turn is
// held until fn returns, so calls for one identity reach the venue in
// nonce order. Cancelling ctx before the turn arrives gives up the
// position without consuming a nonce; once fn has started, a consumed
// nonce stays consumed.
func (m *Manager) Do(ctx context.Context, identity string, fn Func, opts ...Option) error {
	var o doOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.skipQueue {
		release, err := m.queues.Acquire(ctx, identity)
		if err != nil {
			m.logger.Debug("Gave up queue position", zap.String("identity", identity), zap.Error(err))
			return err
		}
		defer release()
	}

	var n uint64
	if o.nonce != nil {
		n = *o.nonce
	} else {
		n = m.seq.Next()
	}
	m.logger.Debug("Assigned nonce",
		zap.String("identity", identity),
		zap.Uint64("nonce", n),
		zap.Bool("queued", !o.skipQueue))
	return fn(ctx, n)
}

// Sequencer returns the underlying sequencer
func (m *Manager) Sequencer() *Sequencer { return m.seq }

// Queues returns the underlying queues
func (m *Manager) Queues() *Queues { return m.queues }
