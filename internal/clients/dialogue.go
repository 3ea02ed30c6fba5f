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

// DialogueClient sends final transcripts to the dialogue/response
// engine and returns its conversational turn.
type DialogueClient struct {
	url  string
	http *http.Client
}

func NewDialogueClient(cfg config.DialogueConfig) *DialogueClient {
	return &DialogueClient{
		url:  cfg.URL,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *DialogueClient) PostTranscript(ctx context.Context, req domain.DialogueRequest) (domain.DialogueReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.DialogueReply{}, fmt.Errorf("marshal transcript: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/transcript", bytes.NewReader(body))
	if err != nil {
		return domain.DialogueReply{}, fmt.Errorf("build dialogue request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.DialogueReply{}, fmt.Errorf("post transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.DialogueReply{}, fmt.Errorf("dialogue engine returned %d", resp.StatusCode)
	}

	var reply domain.DialogueReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return domain.DialogueReply{}, fmt.Errorf("decode dialogue reply: %w", err)
	}
	log.Debug().Str("module", "clients.dialogue").Str("sid", req.SessionID).Bool("should_speak", reply.ShouldSpeak).Msg("dialogue turn")
	return reply, nil
}
