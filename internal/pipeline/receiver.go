// Package pipeline is the inbound audio path: RTP in, utterance
// events out. Decode, denoise, gate on voice activity, regroup into
// recognition chunks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/media/codec"
	"github.com/hireloop/voicepipe/internal/media/denoise"
	"github.com/hireloop/voicepipe/internal/media/resample"
	"github.com/hireloop/voicepipe/internal/media/vad"
	"github.com/hireloop/voicepipe/internal/metrics"
)

// Receiver consumes one remote audio track. It never blocks on the
// consumer: when the event queue is full, chunks are dropped and
// counted, while a boundary evicts the oldest queued event instead.
type Receiver struct {
	sid       string
	recogRate int
	den       denoise.Denoiser
	gate      vadGate
	ch        *chunker
	events    chan Event
	paused    atomic.Bool
	m         *metrics.Metrics
}

// vadGate is what the receiver needs from the voice activity detector.
type vadGate interface {
	Process(frame []int16) vad.Decision
	Reset()
}

func NewReceiver(sid string, cfg *config.Config, gate vadGate, m *metrics.Metrics) *Receiver {
	return &Receiver{
		sid:       sid,
		recogRate: cfg.Recognition.SampleRate,
		den:       denoise.New(cfg.Denoise.Enabled),
		gate:      gate,
		ch:        newChunker(cfg.Recognition.ChunkSamples(), cfg.Recognition.SampleRate),
		events:    make(chan Event, cfg.Media.ChunkQueue),
		m:         m,
	}
}

// Events is the queue consumed by the recognition worker.
func (r *Receiver) Events() <-chan Event { return r.events }

// Pause mutes the pipeline; an in-flight utterance is finalized.
func (r *Receiver) Pause() { r.paused.Store(true) }

// Resume reopens the pipeline for new utterances.
func (r *Receiver) Resume() { r.paused.Store(false) }

// Run reads the track until the peer connection goes away.
func (r *Receiver) Run(ctx context.Context, track *webrtc.TrackRemote) error {
	dec, err := codec.ForTrack(track.Codec().MimeType, track.Codec().ClockRate)
	if err != nil {
		return fmt.Errorf("inbound track: %w", err)
	}
	log.Info().Str("module", "pipeline").Str("sid", r.sid).
		Str("codec", track.Codec().MimeType).Msg("inbound track started")
	return r.run(ctx, dec, func() (*rtp.Packet, error) {
		pkt, _, readErr := track.ReadRTP()
		return pkt, readErr
	})
}

func (r *Receiver) run(ctx context.Context, dec codec.Decoder, read func() (*rtp.Packet, error)) error {
	// The queue gauge is per session; drop the label once the track is
	// gone so finished sessions do not linger in the scrape.
	defer r.m.ChunkQueueDepth.DeleteLabelValues(r.sid)

	var clock time.Duration
	wasPaused := false
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		pkt, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.drainUtterance()
				return nil
			}
			return fmt.Errorf("read rtp: %w", err)
		}

		pcm, err := dec.Decode(pkt.Payload)
		if err != nil {
			log.Debug().Err(err).Str("module", "pipeline").Str("sid", r.sid).Msg("frame decode failed")
			continue
		}
		r.m.FramesProcessed.Inc()
		frameStart := clock
		clock += time.Duration(len(pcm)) * time.Second / time.Duration(dec.SampleRate())

		if r.paused.Load() {
			if !wasPaused {
				r.drainUtterance()
				wasPaused = true
			}
			continue
		}
		wasPaused = false

		cleaned, err := r.den.ProcessFrame(pcm)
		if err != nil {
			log.Debug().Err(err).Str("module", "pipeline").Str("sid", r.sid).Msg("denoise failed")
			continue
		}

		d := r.gate.Process(cleaned)
		if d.Speech {
			voiced := resample.Resample(cleaned, dec.SampleRate(), r.recogRate)
			for _, ev := range r.ch.Add(voiced, frameStart) {
				r.push(ev)
			}
		}
		if d.Boundary {
			for _, ev := range r.ch.Flush() {
				r.push(ev)
			}
		}
	}
}

// drainUtterance closes out whatever was being spoken, used on pause
// and on orderly track end.
func (r *Receiver) drainUtterance() {
	r.gate.Reset()
	r.den.Reset()
	for _, ev := range r.ch.Flush() {
		r.push(ev)
	}
}

func (r *Receiver) push(ev Event) {
	select {
	case r.events <- ev:
	default:
		if ev.Kind == EventBoundary {
			// A boundary must land; shed the oldest queued event.
			select {
			case <-r.events:
				r.m.FramesDropped.Inc()
			default:
			}
			select {
			case r.events <- ev:
			default:
			}
		} else {
			r.m.FramesDropped.Inc()
			log.Debug().Str("module", "pipeline").Str("sid", r.sid).Msg("chunk dropped: recognition backlog")
		}
	}
	r.m.ChunkQueueDepth.WithLabelValues(r.sid).Set(float64(len(r.events)))
}
