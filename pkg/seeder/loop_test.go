package seeder

import (
    "context"
    "testing"
    "time"

    "github.com/benbjohnson/clock"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "go.uber.org/zap/zaptest/observer"

    "github.com/amirimatin/go-meshseed/pkg/coremsg"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

func fastOptions(o *Options) {
    o.Clock = clock.New()
    o.IdleWindow = 20 * time.Millisecond
    o.ErrorBackoff = 10 * time.Millisecond
}

func TestDeliverCoreMessageInboxFull(t *testing.T) {
    s, _ := newTestSeeder(t, newRecordingResolver(), func(o *Options) { o.InboxSize = 1 })
    msg := coremsg.MarshalPeerEvent(coremsg.Node{PublicKey: testKey(1)}, false)
    require.NoError(t, s.DeliverCoreMessage(msg))
    require.ErrorIs(t, s.DeliverCoreMessage(msg), ErrInboxFull)
}

func TestLoopHandlesCoreEvents(t *testing.T) {
    s, _ := newTestSeeder(t, newRecordingResolver(), fastOptions)
    require.NoError(t, s.Start(context.Background()))
    t.Cleanup(func() { _ = s.Close() })

    // An unknown message is rejected without stopping the loop.
    require.NoError(t, s.DeliverCoreMessage([]byte{0, 0, 0, 9, 1, 2, 3}))
    require.NoError(t, s.DeliverCoreMessage(coremsg.MarshalPeerEvent(coremsg.Node{PublicKey: testKey(1)}, false)))
    require.NoError(t, s.DeliverCoreMessage(coremsg.MarshalPeerEvent(coremsg.Node{PublicKey: testKey(2)}, false)))
    require.Eventually(t, func() bool { return s.Status().Connected == 2 }, 2*time.Second, 5*time.Millisecond)

    require.NoError(t, s.DeliverCoreMessage(coremsg.MarshalPeerEvent(coremsg.Node{PublicKey: testKey(1)}, true)))
    require.Eventually(t, func() bool { return s.Status().Connected == 1 }, 2*time.Second, 5*time.Millisecond)

    // The first cycle asked the core for its peers.
    select {
    case m := <-s.CoreMessages():
        typ, _, err := coremsg.Split(m)
        require.NoError(t, err)
        require.Equal(t, coremsg.TypePeersRequest, typ)
    case <-time.After(2 * time.Second):
        t.Fatal("no census request")
    }
    require.Eventually(t, func() bool { return s.Status().Cycles >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRejectedCoreMessageWarns(t *testing.T) {
    core, logs := observer.New(zapcore.DebugLevel)
    s, _ := newTestSeeder(t, newRecordingResolver(), fastOptions, func(o *Options) { o.Logger = zap.New(core) })
    require.NoError(t, s.Start(context.Background()))
    t.Cleanup(func() { _ = s.Close() })

    require.NoError(t, s.DeliverCoreMessage([]byte{0, 0, 0, 9}))
    require.Eventually(t, func() bool {
        return logs.FilterMessageSnippet("discarding core message").FilterLevelExact(zapcore.WarnLevel).Len() == 1
    }, 2*time.Second, 5*time.Millisecond)
}

func TestStopEndsLoop(t *testing.T) {
    s, _ := newTestSeeder(t, newRecordingResolver(), fastOptions)
    require.NoError(t, s.Start(context.Background()))
    require.NoError(t, s.Start(context.Background()), "second start is a no-op")

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    require.NoError(t, s.Stop(ctx))
    require.NoError(t, s.Stop(ctx))
    require.ErrorIs(t, s.Start(context.Background()), ErrStopped)
}

func TestCycleTimeout(t *testing.T) {
    s, mock := newTestSeeder(t, newRecordingResolver(), func(o *Options) { o.OutboxSize = 1 })
    s.outbox <- []byte("full")

    done := make(chan struct{})
    go func() {
        s.runCycle(context.Background())
        close(done)
    }()
    require.Eventually(t, func() bool {
        mock.Add(5 * time.Second)
        select {
        case <-done:
            return true
        default:
            return false
        }
    }, 5*time.Second, time.Millisecond)
    require.Equal(t, "cycle timed out", s.Status().LastError)
}

// hungResolver blocks until released, ignoring ctx.
type hungResolver struct{ release chan struct{} }

func (r hungResolver) LookupTXT(context.Context, string) ([]string, error) {
    <-r.release
    return nil, nil
}

func TestCycleTimeoutBoundsHungResolver(t *testing.T) {
    res := hungResolver{release: make(chan struct{})}
    defer close(res.release)
    s, _ := newTestSeeder(t, res, fastOptions, func(o *Options) {
        o.CycleTimeout = 100 * time.Millisecond
        o.Seeds = []state.SeedEntry{{Name: "a.example"}}
    })

    done := make(chan struct{})
    go func() {
        s.runCycle(context.Background())
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatal("cycle blocked past its timeout")
    }
    require.Equal(t, "cycle timed out", s.Status().LastError)
}
