package tts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/media/codec"
	"github.com/hireloop/voicepipe/internal/media/resample"
	"github.com/hireloop/voicepipe/internal/metrics"
)

// ErrSynthesisBusy is returned when an utterance is playing and one is
// already queued behind it.
var ErrSynthesisBusy = errors.New("synthesis busy: utterance already queued")

const (
	trackSampleRate = 8000 // PCMU
	muLawSilence    = 0xFF // mu-law encoding of zero
)

// sampleWriter is the slice of TrackLocalStaticSample the pacer needs.
type sampleWriter interface {
	WriteSample(s media.Sample) error
}

// PlaybackTrack paces synthesized speech onto the session's outbound
// PCMU track in real time: one frame per tick, silence when there is
// nothing to say. At most one utterance plays while at most one more
// waits; further requests are rejected.
type PlaybackTrack struct {
	synth    Synthesizer
	writer   sampleWriter
	track    *webrtc.TrackLocalStaticSample
	m        *metrics.Metrics
	sid      string
	frameDur time.Duration

	mu      sync.Mutex
	active  bool
	pending *Request
}

func NewPlaybackTrack(sid string, synth Synthesizer, frameDur time.Duration, m *metrics.Metrics) (*PlaybackTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypePCMU,
		ClockRate: trackSampleRate,
		Channels:  1,
	}, "audio", "voicepipe-"+sid)
	if err != nil {
		return nil, err
	}
	p := newPlayback(sid, synth, track, frameDur, m)
	p.track = track
	return p, nil
}

func newPlayback(sid string, synth Synthesizer, w sampleWriter, frameDur time.Duration, m *metrics.Metrics) *PlaybackTrack {
	if frameDur <= 0 {
		frameDur = 20 * time.Millisecond
	}
	return &PlaybackTrack{
		synth:    synth,
		writer:   w,
		m:        m,
		sid:      sid,
		frameDur: frameDur,
	}
}

// Track exposes the local track for attaching to the peer connection.
func (p *PlaybackTrack) Track() webrtc.TrackLocal { return p.track }

// Speak queues text for playback. The current utterance always
// finishes; a second request waits behind it, a third is rejected.
func (p *PlaybackTrack) Speak(req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m.SynthesisRequests.Inc()
	if p.pending != nil {
		p.m.SynthesisRejections.Inc()
		return ErrSynthesisBusy
	}
	p.pending = &req
	return nil
}

func (p *PlaybackTrack) promote() *Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil
	}
	req := p.pending
	p.pending = nil
	p.active = true
	return req
}

// abort records a synthesis failure and discards the buffered audio of
// the failed utterance.
func (p *PlaybackTrack) abort(err error, buf []int16) []int16 {
	log.Error().Err(err).Str("module", "tts").Str("sid", p.sid).Msg("synthesis aborted")
	p.m.DeliveryFailures.WithLabelValues("synthesis").Inc()
	return buf[:0]
}

func (p *PlaybackTrack) finish() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}

// Run drives the pacing loop until ctx is cancelled. Every tick emits
// exactly one frame: speech when buffered, comfort silence otherwise.
func (p *PlaybackTrack) Run(ctx context.Context) {
	ticker := time.NewTicker(p.frameDur)
	defer ticker.Stop()

	frameSamples := trackSampleRate * int(p.frameDur.Milliseconds()) / 1000
	silence := make([]byte, frameSamples)
	for i := range silence {
		silence[i] = muLawSilence
	}

	var (
		buf    []int16
		chunks <-chan Chunk
		synErr <-chan error
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if chunks == nil {
			if req := p.promote(); req != nil {
				chunks, synErr = p.synth.Synthesize(ctx, *req)
			}
		}

	drain:
		for chunks != nil {
			select {
			case c, ok := <-chunks:
				if !ok {
					// The error channel may still hold a failure even
					// when the select lands on the closed chunk side.
					select {
					case err := <-synErr:
						if err != nil {
							buf = p.abort(err, buf)
						}
					default:
					}
					chunks, synErr = nil, nil
					p.finish()
					break drain
				}
				buf = append(buf, resample.Resample(c.PCM, c.SampleRate, trackSampleRate)...)
			case err, ok := <-synErr:
				if !ok {
					// Closed ahead of the chunk channel; stop
					// selecting on it.
					synErr = nil
					continue
				}
				if err != nil {
					buf = p.abort(err, buf)
					chunks, synErr = nil, nil
					p.finish()
					break drain
				}
			default:
				break drain
			}
		}

		payload := silence
		if len(buf) >= frameSamples {
			payload = codec.EncodeMuLawFrame(buf[:frameSamples])
			buf = buf[frameSamples:]
		} else if len(buf) > 0 && chunks == nil {
			// Pad the synthesis tail out to a whole frame.
			tail := make([]int16, frameSamples)
			copy(tail, buf)
			payload = codec.EncodeMuLawFrame(tail)
			buf = buf[:0]
		}

		if err := p.writer.WriteSample(media.Sample{Data: payload, Duration: p.frameDur}); err != nil {
			log.Debug().Err(err).Str("module", "tts").Str("sid", p.sid).Msg("write sample")
		}
	}
}
