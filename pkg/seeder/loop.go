package seeder

import (
    "context"
    "errors"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-meshseed/pkg/observability/metrics"
)

// Start launches the control goroutine. Values of ctx reach every cycle but
// its cancellation, like Stop, is only observed between cycles.
func (s *Seeder) Start(ctx context.Context) error {
    s.run.mu.Lock(); defer s.run.mu.Unlock()
    if s.run.closed { return ErrStopped }
    if s.run.started { return nil }
    s.run.started = true
    obsmetrics.Register()
    obsmetrics.DNSSeeds.Set(float64(s.seeds.Len()))
    s.run.done = make(chan struct{})
    s.run.stopped = make(chan struct{})
    go s.loop(ctx, s.run.done, s.run.stopped)
    logutil.Infof(s.log, "seeder started with %d dns seeds", s.seeds.Len())
    return nil
}

// Stop signals the control goroutine and waits for it to exit or for ctx to
// end. A cycle in flight is allowed to finish first.
func (s *Seeder) Stop(ctx context.Context) error {
    s.run.mu.Lock()
    if s.run.closed || !s.run.started {
        s.run.closed = true
        s.run.mu.Unlock()
        return nil
    }
    s.run.closed = true
    close(s.run.done)
    stopped := s.run.stopped
    s.run.mu.Unlock()
    select {
    case <-stopped:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

// Close is a convenience alias for Stop with a background context.
func (s *Seeder) Close() error { return s.Stop(context.Background()) }

// CoreMessages is the channel of messages for the routing core: census
// requests and connect commands.
func (s *Seeder) CoreMessages() <-chan []byte { return s.outbox }

// DeliverCoreMessage queues a message from the routing core without
// blocking. It fails with ErrInboxFull when the queue is at capacity.
func (s *Seeder) DeliverCoreMessage(msg []byte) error {
    select {
    case s.inbox <- append([]byte(nil), msg...):
        return nil
    default:
        obsmetrics.CoreMessages.WithLabelValues("dropped").Inc()
        return ErrInboxFull
    }
}

func (s *Seeder) loop(ctx context.Context, done <-chan struct{}, stopped chan<- struct{}) {
    defer close(stopped)
    for {
        s.runCycle(ctx)
        if !s.idle(ctx, done) {
            logutil.Infof(s.log, "seeder shutdown")
            return
        }
    }
}

// runCycle runs one cycle bounded by the cycle timeout. Errors are not
// fatal: they delay the loop by the error backoff.
func (s *Seeder) runCycle(ctx context.Context) {
    cctx, cancel := s.clk.WithTimeout(context.WithoutCancel(ctx), s.opts.CycleTimeout)
    err := s.cycle(cctx)
    timedOut := errors.Is(cctx.Err(), context.DeadlineExceeded)
    cancel()
    s.recordCycle(err, timedOut)
    switch {
    case timedOut:
        obsmetrics.Cycles.WithLabelValues("timeout").Inc()
        logutil.Warnf(s.log, "seeder cycle timed out after %s", s.opts.CycleTimeout)
    case err != nil:
        obsmetrics.Cycles.WithLabelValues("error").Inc()
        logutil.Infof(s.log, "seeder cycle error: %v, delay %s", err, s.opts.ErrorBackoff)
        s.clk.Sleep(s.opts.ErrorBackoff)
    default:
        obsmetrics.Cycles.WithLabelValues("ok").Inc()
    }
}

// idle handles inbound core messages for up to the idle window. It returns
// false on shutdown. A message that fails to parse ends the window early.
func (s *Seeder) idle(ctx context.Context, done <-chan struct{}) bool {
    t := s.clk.Timer(s.opts.IdleWindow)
    defer t.Stop()
    for {
        select {
        case <-done:
            return false
        case <-ctx.Done():
            return false
        case msg := <-s.inbox:
            if err := s.handleCoreMessage(msg); err != nil {
                logutil.Warnf(s.log, "discarding core message: %v", err)
                return true
            }
        case <-t.C:
            return true
        }
    }
}

// handleCoreMessage applies a peer present/gone notification. Any other
// message type is rejected.
func (s *Seeder) handleCoreMessage(msg []byte) error {
    ev, err := coremsg.ParsePeerEvent(msg)
    if err != nil {
        obsmetrics.CoreMessages.WithLabelValues("rejected").Inc()
        return err
    }
    obsmetrics.CoreMessages.WithLabelValues("ok").Inc()
    s.pool.peerEvent(ev, s.clk.Now())
    s.publishPool()
    return nil
}
