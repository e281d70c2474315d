// Package session coordinates the engine, the selection, and the two
// transfer channels for one game. Its two mutating entry points, Commit
// and ApplyRemote, are atomic with respect to each other; whichever
// snapshot applies last wins, regardless of which channel carried it.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/haggisnet/haggisnet/internal/core/engine"
	"github.com/haggisnet/haggisnet/internal/core/observability/log"
	"github.com/haggisnet/haggisnet/internal/core/optical"
	"github.com/haggisnet/haggisnet/internal/core/transport"
)

// Session owns exactly one engine instance and one selection. All state
// changes flow through it; the UI reads back via callbacks and the query
// methods.
type Session struct {
	factory   engine.Factory
	dialer    Dialer
	callbacks Callbacks
	config    Config
	logger    log.Log

	mu        sync.Mutex
	eng       engine.Engine
	selection *selection
	visual    *transport.Optical
	channel   transport.Channel

	// started latches the local start action. The engine never reports
	// the pre-start stage itself.
	started bool

	// gen increments on every Reset so that callbacks from a channel
	// dialed for a discarded game cannot touch the new one.
	gen uint64
}

// New builds a session around a fresh engine. dialer may be nil, in which
// case the game is playable over the optical path only.
func New(factory engine.Factory, codec optical.Codec, dialer Dialer, callbacks Callbacks, config Config, logger log.Log) *Session {
	if logger == nil {
		logger = log.Provide()
	}
	s := &Session{
		factory:   factory,
		dialer:    dialer,
		callbacks: callbacks,
		config:    config,
		logger:    logger.With(log.String("component", "session")),
		eng:       factory.New(),
		selection: newSelection(),
	}
	s.visual = transport.NewOptical(codec, config.FrameSide, s.confirmDuplicate, logger)
	return s
}

// Start performs the local start action. It mutates nothing in the engine
// and transmits nothing; it only unlatches the play stage.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.logger.Info("Game started", log.Bool("me_first", s.eng.WentFirst()))
	s.emitView()
}

// Toggle flips a card in or out of the selection and reports the new
// membership together with the engine's verdict on the whole set. The
// verdict is recomputed from the live engine on every call.
func (s *Session) Toggle(cardID int) (selected, valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	selected = s.selection.toggle(cardID)
	return selected, s.eng.CanPlay(s.selection.ids())
}

// Selected returns the currently selected cards in ascending order.
func (s *Session) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.ids()
}

// Validity asks the engine whether the current selection, including the
// empty one meaning "pass", is a legal play right now.
func (s *Session) Validity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.CanPlay(s.selection.ids())
}

// Commit plays the current selection. On success the selection clears,
// the view re-derives, and the new snapshot goes out on every available
// path: the live channel if one is open (dialed now on the first move),
// and a freshly rendered visual code. On an engine rejection nothing
// changes and a warning is surfaced.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	cards := s.selection.ids()
	if !s.eng.CanPlay(cards) {
		s.warn(WarningInvalidSelection, ErrInvalidSelection)
		return ErrInvalidSelection
	}
	if err := s.eng.Play(cards); err != nil {
		s.warn(WarningInvalidSelection, err)
		return err
	}

	s.selection.clear()
	view := s.emitView()

	snapshot, err := s.eng.Serialize()
	if err != nil {
		// The move itself stands; only the outbound push is lost.
		s.logger.Error("Snapshot serialization failed", log.Error(err))
		return err
	}
	s.pushLocked(ctx, snapshot)

	if view.Stage == engine.StageGameOver {
		s.closeChannelLocked()
	}
	return nil
}

// ApplyRemote replaces the local engine with the state decoded from an
// inbound snapshot, whichever channel delivered it. A snapshot that fails
// to decode leaves all state untouched. Local stage never vetoes an
// inbound snapshot; the engine owns that judgement.
func (s *Session) ApplyRemote(ctx context.Context, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, snapshot)
}

// IngestImage feeds an image from one of the manual input paths into the
// game. Decode failures and declined duplicates surface as warnings and
// change nothing.
func (s *Session) IngestImage(ctx context.Context, image []byte, source transport.Source) error {
	snapshot, err := s.visual.Ingest(image, source)
	if err != nil {
		return s.warnIngest(err)
	}
	return s.ApplyRemote(ctx, snapshot)
}

// IngestFile feeds an image file selected via the file picker.
func (s *Session) IngestFile(ctx context.Context, path string) error {
	snapshot, err := s.visual.IngestFile(path)
	if err != nil {
		return s.warnIngest(err)
	}
	return s.ApplyRemote(ctx, snapshot)
}

// IngestDataURI feeds an image dragged in as a data: URI.
func (s *Session) IngestDataURI(ctx context.Context, uri string) error {
	snapshot, err := s.visual.IngestDataURI(uri)
	if err != nil {
		return s.warnIngest(err)
	}
	return s.ApplyRemote(ctx, snapshot)
}

func (s *Session) warnIngest(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, transport.ErrDuplicateDeclined) {
		s.warn(WarningDuplicateTransfer, err)
	} else {
		s.warn(WarningDecodeFailure, err)
	}
	return err
}

// Reset discards the current game and returns to the pre-start stage,
// closing any open channel. Callbacks still in flight for the old game
// are fenced off by the generation counter.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.closeChannelLocked()
	s.eng = s.factory.New()
	s.selection.clear()
	s.started = false
	s.logger.Info("Session reset")
	s.emitView()
}

// View derives the current view state.
func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DeriveView(s.eng, s.started)
}

// Placement returns the display state of one card.
func (s *Session) Placement(cardID int) (engine.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.Placement(cardID)
}

// PairingID returns the token identifying this game to the relay.
func (s *Session) PairingID() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.PairingID()
}

// Close releases the session's channel. The optical path has nothing to
// release.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeChannelLocked()
	return nil
}

// applyLocked is the single inbound application point. Caller holds mu.
func (s *Session) applyLocked(ctx context.Context, snapshot []byte) error {
	next, err := s.factory.Restore(snapshot)
	if err != nil {
		s.warn(WarningDecodeFailure, err)
		return err
	}

	s.eng = next
	s.started = true
	s.selection.clear()
	view := s.emitView()

	if view.Stage == engine.StageGameOver {
		s.closeChannelLocked()
		return nil
	}
	if s.channel == nil {
		s.dialLocked(ctx)
	}
	return nil
}

// pushLocked sends a snapshot on every open outbound path. Caller holds
// mu. Channel loss is silent; the optical path always remains.
func (s *Session) pushLocked(ctx context.Context, snapshot []byte) {
	if s.channel == nil {
		s.dialLocked(ctx)
	}
	if s.channel != nil {
		if err := s.channel.Send(snapshot); err != nil {
			s.logger.Warn("Channel send failed, dropping channel", log.Error(err))
			s.closeChannelLocked()
		}
	}

	frame, err := s.visual.Render(snapshot)
	if err != nil {
		s.logger.Error("Visual code render failed", log.Error(err))
		return
	}
	if s.callbacks.OnFrame != nil {
		s.callbacks.OnFrame(frame)
	}
}

// dialLocked opens the live channel, identified by the pairing token.
// Failure to dial is not an error for the game. Caller holds mu.
func (s *Session) dialLocked(ctx context.Context) {
	if s.dialer == nil {
		return
	}
	gen := s.gen
	token := s.eng.PairingID()
	channel, err := s.dialer(ctx, token,
		func(snapshot []byte) { s.receiveFromChannel(gen, snapshot) },
		func(err error) { s.channelClosed(gen, err) },
	)
	if err != nil {
		s.logger.Warn("Channel dial failed, staying on optical transfer", log.Error(err))
		return
	}
	s.channel = channel
}

// receiveFromChannel re-enters the session for an inbound channel
// snapshot. A generation mismatch means the channel belonged to a game
// that has since been reset; the snapshot is dropped.
func (s *Session) receiveFromChannel(gen uint64, snapshot []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("Dropping snapshot from a previous game's channel")
		return
	}
	_ = s.applyLocked(context.Background(), snapshot)
}

func (s *Session) channelClosed(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	if err != nil {
		s.logger.Warn("Channel lost, continuing on optical transfer", log.Error(err))
	}
	s.channel = nil
}

func (s *Session) closeChannelLocked() {
	if s.channel == nil {
		return
	}
	// Close off the lock: the channel's close callback re-enters the
	// session and would deadlock here.
	channel := s.channel
	s.channel = nil
	go func() { _ = channel.Close() }()
}

// confirmDuplicate routes the duplicate-transfer prompt to the UI. With
// no handler installed, duplicates are declined.
func (s *Session) confirmDuplicate() bool {
	if s.callbacks.ConfirmDuplicate == nil {
		return false
	}
	return s.callbacks.ConfirmDuplicate()
}

func (s *Session) emitView() ViewState {
	view := DeriveView(s.eng, s.started)
	if s.callbacks.OnView != nil {
		s.callbacks.OnView(view)
	}
	return view
}

func (s *Session) warn(kind WarningKind, err error) {
	s.logger.Warn("Session warning",
		log.String("kind", kind.String()),
		log.Error(err))
	if s.callbacks.OnWarning != nil {
		s.callbacks.OnWarning(Warning{Kind: kind, Err: err})
	}
}
