package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haggisnet/haggisnet/internal/core/engine"
	"github.com/haggisnet/haggisnet/internal/core/observability/log"
	"github.com/haggisnet/haggisnet/internal/core/transport"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

// engineForTest reads the live engine under the session lock.
func (s *Session) engineForTest() engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng
}

// fakeEngine gives tests full control over verdicts and reported state.
type fakeEngine struct {
	stage      engine.Stage
	legal      func([]int) bool
	played     [][]int
	snapshot   []byte
	myScore    int
	oppScore   int
	myHand     int
	oppHand    int
	first      bool
	pairing    []byte
	placements map[int]engine.Placement
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		stage:    engine.StagePlay,
		legal:    func([]int) bool { return true },
		snapshot: []byte("snapshot-0"),
		myHand:   14,
		oppHand:  14,
		first:    true,
		pairing:  []byte("pair-token"),
	}
}

func (e *fakeEngine) Serialize() ([]byte, error)    { return e.snapshot, nil }
func (e *fakeEngine) Deserialize(data []byte) error { e.snapshot = data; return nil }

func (e *fakeEngine) CanPlay(cardIDs []int) bool { return e.legal(cardIDs) }

func (e *fakeEngine) Play(cardIDs []int) error {
	if !e.legal(cardIDs) {
		return engine.ErrInvalidPlay
	}
	e.played = append(e.played, append([]int(nil), cardIDs...))
	e.stage = engine.StageWait
	return nil
}

func (e *fakeEngine) Stage() engine.Stage   { return e.stage }
func (e *fakeEngine) Scores() (int, int)    { return e.myScore, e.oppScore }
func (e *fakeEngine) HandSizes() (int, int) { return e.myHand, e.oppHand }
func (e *fakeEngine) WentFirst() bool       { return e.first }
func (e *fakeEngine) PairingID() []byte     { return e.pairing }

func (e *fakeEngine) Placement(cardID int) (engine.Placement, error) {
	if p, ok := e.placements[cardID]; ok {
		return p, nil
	}
	return engine.PlacementMyHand, nil
}

type fakeFactory struct {
	current *fakeEngine
	restore func([]byte) (engine.Engine, error)
}

func (f *fakeFactory) New() engine.Engine {
	f.current = newFakeEngine()
	return f.current
}

func (f *fakeFactory) Restore(snapshot []byte) (engine.Engine, error) {
	return f.restore(snapshot)
}

// fakeChannel records sends so tests can observe outbound traffic. The
// session closes channels from a separate goroutine, so access is locked.
type fakeChannel struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeChannel) Send(snapshot []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrChannelClosed
	}
	c.sent = append(c.sent, append([]byte(nil), snapshot...))
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// identityCodec lets the visual path carry payloads verbatim.
type identityCodec struct{}

func (identityCodec) EncodePNG(payload []byte, side int) ([]byte, error) {
	return append([]byte(nil), payload...), nil
}

func (identityCodec) EncodePixels(payload []byte, side int) ([]byte, error) {
	return append([]byte(nil), payload...), nil
}

func (identityCodec) Decode(image []byte) ([]byte, error) {
	return append([]byte(nil), image...), nil
}

type harness struct {
	session  *Session
	eng      *fakeEngine
	factory  *fakeFactory
	channel  *fakeChannel
	dials    [][]byte
	views    []ViewState
	warnings []Warning
	frames   []*transport.Frame

	// captured from the last dial, to simulate inbound channel traffic
	onReceive transport.ReceiveHandler
	confirm   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{factory: &fakeFactory{}}
	h.factory.restore = func(snapshot []byte) (engine.Engine, error) {
		next := newFakeEngine()
		next.stage = engine.StagePlay
		next.snapshot = snapshot
		return next, nil
	}

	dialer := func(ctx context.Context, token []byte, onReceive transport.ReceiveHandler, onClose transport.CloseHandler) (transport.Channel, error) {
		h.dials = append(h.dials, token)
		h.onReceive = onReceive
		h.channel = &fakeChannel{}
		return h.channel, nil
	}
	callbacks := Callbacks{
		OnView:           func(v ViewState) { h.views = append(h.views, v) },
		OnWarning:        func(w Warning) { h.warnings = append(h.warnings, w) },
		OnFrame:          func(f *transport.Frame) { h.frames = append(h.frames, f) },
		ConfirmDuplicate: func() bool { return h.confirm },
	}

	h.session = New(h.factory, identityCodec{}, dialer, callbacks, DefaultConfig(), log.Provide())
	h.eng = h.factory.current
	return h
}

func TestStartUnlatchesPlayWithoutSideEffects(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, engine.StageBeforeGame, h.session.View().Stage)

	h.session.Start()

	view := h.session.View()
	assert.Equal(t, engine.StagePlay, view.Stage)
	assert.True(t, view.MeFirst)
	assert.Empty(t, h.eng.played)
	assert.Empty(t, h.dials)
	assert.Empty(t, h.frames)
}

func TestCommitRejectedSelectionChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	h.eng.legal = func(cards []int) bool { return len(cards) == 0 }

	h.session.Toggle(3)
	h.session.Toggle(7)

	err := h.session.Commit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidSelection)

	assert.Equal(t, engine.StagePlay, h.session.View().Stage)
	assert.Equal(t, []int{3, 7}, h.session.Selected())
	assert.Empty(t, h.eng.played)
	require.Len(t, h.warnings, 1)
	assert.Equal(t, WarningInvalidSelection, h.warnings[0].Kind)
}

func TestCommitPassPushesEverywhere(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	h.eng.snapshot = []byte("after-pass")

	require.NoError(t, h.session.Commit(context.Background()))

	require.Len(t, h.eng.played, 1)
	assert.Empty(t, h.eng.played[0])
	assert.Empty(t, h.session.Selected())
	assert.Equal(t, engine.StageWait, h.session.View().Stage)

	// First move out of the pre-start stage dials the channel.
	require.Len(t, h.dials, 1)
	assert.Equal(t, []byte("pair-token"), h.dials[0])
	require.Len(t, h.channel.sent, 1)
	assert.Equal(t, []byte("after-pass"), h.channel.sent[0])

	require.Len(t, h.frames, 1)
	assert.Equal(t, []byte("after-pass"), h.frames[0].PNG)
}

func TestCommitBeforeStart(t *testing.T) {
	h := newHarness(t)

	err := h.session.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Empty(t, h.eng.played)
}

func TestIngestOpensChannelAndReplacesState(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	h.session.Toggle(5)

	err := h.session.IngestImage(context.Background(), []byte("peer-snapshot"), transport.SourceDrop)
	require.NoError(t, err)

	// The decoded state replaces the old engine wholesale.
	assert.NotSame(t, h.eng, h.session.engineForTest())
	assert.Equal(t, engine.StagePlay, h.session.View().Stage)
	assert.Empty(t, h.session.Selected())

	// No channel existed, so one is opened and identified.
	require.Len(t, h.dials, 1)
}

func TestIngestDecodeFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	h.factory.restore = func([]byte) (engine.Engine, error) {
		return nil, engine.ErrInvalidSnapshot
	}
	h.session.Toggle(5)

	err := h.session.IngestImage(context.Background(), []byte("garbage"), transport.SourceFile)
	assert.ErrorIs(t, err, engine.ErrInvalidSnapshot)

	assert.Same(t, h.eng, h.session.engineForTest())
	assert.Equal(t, []int{5}, h.session.Selected())
	require.Len(t, h.warnings, 1)
	assert.Equal(t, WarningDecodeFailure, h.warnings[0].Kind)
	assert.Empty(t, h.dials)
}

func TestDuplicateIngestNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	h.session.Start()

	// Commit renders a code; re-ingesting that exact image is suspect.
	require.NoError(t, h.session.Commit(context.Background()))
	require.Len(t, h.frames, 1)
	own := h.frames[0].PNG

	err := h.session.IngestImage(context.Background(), own, transport.SourceCapture)
	assert.ErrorIs(t, err, transport.ErrDuplicateDeclined)
	require.Len(t, h.warnings, 1)
	assert.Equal(t, WarningDuplicateTransfer, h.warnings[0].Kind)
	assert.Equal(t, engine.StageWait, h.session.View().Stage)

	// Confirming applies it.
	h.confirm = true
	require.NoError(t, h.session.IngestImage(context.Background(), own, transport.SourceCapture))
	assert.Equal(t, engine.StagePlay, h.session.View().Stage)
}

func TestGameOverClosesChannel(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	require.NoError(t, h.session.Commit(context.Background()))
	require.NotNil(t, h.channel)

	snapshot := []byte("final-state")
	h.factory.restore = func(data []byte) (engine.Engine, error) {
		next := newFakeEngine()
		next.stage = engine.StageGameOver
		next.snapshot = data
		return next, nil
	}
	require.NoError(t, h.session.ApplyRemote(context.Background(), snapshot))

	assert.Equal(t, engine.StageGameOver, h.session.View().Stage)
	assert.Eventually(t, h.channel.isClosed, waitFor, tick)
}

func TestResetFencesStaleChannelCallbacks(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	require.NoError(t, h.session.Commit(context.Background()))
	require.NotNil(t, h.onReceive)
	stale := h.onReceive

	h.session.Reset()
	assert.Equal(t, engine.StageBeforeGame, h.session.View().Stage)
	fresh := h.session.engineForTest()

	// A snapshot from the discarded game's channel must not resurrect it.
	stale([]byte("stale-snapshot"))
	assert.Same(t, fresh, h.session.engineForTest())
	assert.Equal(t, engine.StageBeforeGame, h.session.View().Stage)
}

func TestLastAppliedWinsAcrossChannels(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	require.NoError(t, h.session.Commit(context.Background()))
	require.NotNil(t, h.onReceive)

	// Socket delivers one state, then a staler optical transfer lands.
	// Whatever decoded last is the state we hold.
	h.onReceive([]byte("socket-state"))
	require.NoError(t, h.session.IngestImage(context.Background(), []byte("optical-state"), transport.SourceDrop))

	current := h.session.engineForTest().(*fakeEngine)
	assert.Equal(t, []byte("optical-state"), current.snapshot)
}

func TestViewStateRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.session.Start()
	h.eng.myScore, h.eng.oppScore = 12, 7
	h.eng.myHand, h.eng.oppHand = 9, 11

	view := h.session.View()
	assert.Equal(t, 12, view.MyScore)
	assert.Equal(t, 7, view.OpponentScore)
	assert.Equal(t, 9, view.MyHandSize)
	assert.Equal(t, 11, view.OpponentHandSize)
}
