package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/asr"
	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/control"
	"github.com/hireloop/voicepipe/internal/core"
	"github.com/hireloop/voicepipe/internal/domain"
	"github.com/hireloop/voicepipe/internal/fanout"
	"github.com/hireloop/voicepipe/internal/media/vad"
	"github.com/hireloop/voicepipe/internal/metrics"
	"github.com/hireloop/voicepipe/internal/pipeline"
	"github.com/hireloop/voicepipe/internal/retry"
	"github.com/hireloop/voicepipe/internal/tts"
)

// Session owns one participant's media pipeline: peer connection,
// inbound recognition path, outbound playback track, control channel
// and transcript delivery.
type Session struct {
	sid         core.SessionID
	participant domain.Participant
	cfg         *config.Config
	m           *metrics.Metrics

	conn     core.MediaConn
	queue    *fanout.Queue
	playback *tts.PlaybackTrack
	receiver *pipeline.Receiver
	engine   *asr.Engine
	worker   *pipeline.Worker

	state    atomic.Int32
	ctrl     atomic.Pointer[control.Channel]
	dialogue fanout.Dialogue

	cancel   context.CancelFunc
	onClosed func()
}

func newSession(
	sid core.SessionID,
	participant domain.Participant,
	cfg *config.Config,
	conn core.MediaConn,
	rec asr.Recognizer,
	synth tts.Synthesizer,
	sink fanout.Sink,
	dialogue fanout.Dialogue,
	m *metrics.Metrics,
) (*Session, error) {
	playback, err := tts.NewPlaybackTrack(string(sid), synth, cfg.Media.FrameDuration, m)
	if err != nil {
		return nil, err
	}

	gate := vad.New(vad.Config{
		Threshold:      cfg.VAD.Threshold,
		SilenceTimeout: cfg.VAD.SilenceTimeout,
		FrameDuration:  cfg.Media.FrameDuration,
	})
	receiver := pipeline.NewReceiver(string(sid), cfg, gate, m)
	engine := asr.NewEngine(rec, string(sid), cfg.Recognition.SampleRate)

	queue := fanout.NewQueue(string(sid), participant, sink, dialogue, fanout.Config{
		FinalWait:      cfg.Control.FinalWait,
		DeliveryBudget: cfg.Dialogue.Timeout,
		Retry: retry.Config{
			MaxAttempts:  cfg.Dialogue.MaxAttempts,
			InitialDelay: cfg.Dialogue.RetryDelay,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		},
	}, m)

	s := &Session{
		sid:         sid,
		participant: participant,
		cfg:         cfg,
		m:           m,
		conn:        conn,
		queue:       queue,
		playback:    playback,
		receiver:    receiver,
		engine:      engine,
		worker:      pipeline.NewWorker(string(sid), engine, receiver.Events(), queue),
		dialogue:    dialogue,
	}
	s.state.Store(int32(domain.SessionCreated))

	queue.OnReply(s.speakReply)
	return s, nil
}

// start binds the pipeline goroutines to ctx and arms the peer
// connection callbacks.
func (s *Session) start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if _, err := s.conn.AddLocalTrack(s.playback.Track()); err != nil {
		cancel()
		return err
	}

	s.conn.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			log.Debug().Str("module", "app").Str("sid", string(s.sid)).Str("kind", track.Kind().String()).Msg("ignoring non-audio track")
			return
		}
		go func() {
			if err := s.receiver.Run(trackCtx, track); err != nil {
				log.Warn().Err(err).Str("module", "app").Str("sid", string(s.sid)).Msg("inbound track ended")
			}
		}()
	})

	s.conn.OnControlChannel(func(dc *webrtc.DataChannel) {
		ch := control.NewChannel(string(s.sid), dc, s.cfg.Control, s.m)
		ch.OnDirective(s.applyDirective)
		s.ctrl.Store(ch)
		s.queue.SetControl(ch)
	})

	s.conn.OnStateChange(func(ps core.PeerState) {
		switch ps {
		case core.PeerConnected:
			s.state.Store(int32(domain.SessionConnected))
		case core.PeerFailed:
			s.state.Store(int32(domain.SessionFailed))
			s.m.SessionFailures.Inc()
			if s.onClosed != nil {
				s.onClosed()
			}
		case core.PeerClosed:
			if s.State() != domain.SessionFailed {
				s.state.Store(int32(domain.SessionClosed))
			}
			if s.onClosed != nil {
				s.onClosed()
			}
		}
	})

	if err := s.conn.Start(ctx); err != nil {
		cancel()
		return err
	}

	s.queue.Start(ctx)
	go s.worker.Run(ctx)
	go s.playback.Run(ctx)
	go s.greet(ctx)
	return nil
}

// greet asks the dialogue engine for an opening turn so the
// interviewer speaks first.
func (s *Session) greet(ctx context.Context) {
	greetCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	reply, err := s.dialogue.PostTranscript(greetCtx, domain.DialogueRequest{
		SessionID: string(s.sid),
		Metadata: map[string]string{
			"event":           "session_start",
			"room_id":         string(s.participant.Room),
			"participant_id":  string(s.participant.ID),
			"job_description": s.participant.JobDescription,
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "app").Str("sid", string(s.sid)).Msg("greeting turn failed")
		return
	}
	s.speakReply(reply)
}

func (s *Session) speakReply(reply domain.DialogueReply) {
	if !reply.ShouldSpeak || reply.ResponseText == "" {
		return
	}
	err := s.playback.Speak(tts.Request{
		SessionID: string(s.sid),
		Text:      reply.ResponseText,
		Voice:     s.cfg.Synthesis.Voice,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "app").Str("sid", string(s.sid)).Msg("reply not spoken")
	}
}

func (s *Session) applyDirective(directive string) {
	log.Info().Str("module", "app").Str("sid", string(s.sid)).Str("directive", directive).Msg("client directive")
	switch directive {
	case domain.DirectivePause:
		s.receiver.Pause()
	case domain.DirectiveResume:
		s.receiver.Resume()
	}
}

// Speak queues text on the outbound track, for the external
// synthesize operation.
func (s *Session) Speak(text string) error {
	return s.playback.Speak(tts.Request{
		SessionID: string(s.sid),
		Text:      text,
		Voice:     s.cfg.Synthesis.Voice,
	})
}

func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

func (s *Session) close() {
	if s.State() != domain.SessionFailed {
		s.state.Store(int32(domain.SessionClosed))
	}
	if ch := s.ctrl.Load(); ch != nil {
		ch.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.conn.Close()
}
