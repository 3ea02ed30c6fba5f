// Package clients holds HTTP clients for the pipeline's external
// collaborators: the live transcript sink and the dialogue engine.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/domain"
)

// SinkClient posts transcript segments to the live-display sink.
// Delivery is best-effort; callers decide the drop policy.
type SinkClient struct {
	url  string
	http *http.Client
}

func NewSinkClient(cfg config.SinkConfig) *SinkClient {
	return &SinkClient{
		url:  cfg.URL,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *SinkClient) PostSegment(ctx context.Context, seg domain.SinkSegment) error {
	body, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("marshal segment: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/segments", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post segment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink returned %d", resp.StatusCode)
	}
	log.Debug().Str("module", "clients.sink").Str("sid", seg.SessionID).Bool("final", seg.IsFinal).Msg("segment delivered")
	return nil
}
