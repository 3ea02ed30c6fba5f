package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hireloop/voicepipe/internal/config"
	"github.com/hireloop/voicepipe/internal/domain"
)

func TestSinkPostSegment(t *testing.T) {
	var got domain.SinkSegment
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/segments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewSinkClient(config.SinkConfig{URL: srv.URL, Timeout: time.Second})
	err := c.PostSegment(context.Background(), domain.SinkSegment{
		RoomID:    "r1",
		SessionID: "s1",
		Text:      "hello",
		IsFinal:   true,
	})
	require.NoError(t, err)
	require.Equal(t, "s1", got.SessionID)
	require.True(t, got.IsFinal)
}

func TestSinkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewSinkClient(config.SinkConfig{URL: srv.URL, Timeout: time.Second})
	err := c.PostSegment(context.Background(), domain.SinkSegment{SessionID: "s1"})
	require.Error(t, err)
}

func TestDialoguePostTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcript", r.URL.Path)
		var req domain.DialogueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "s1", req.SessionID)
		json.NewEncoder(w).Encode(domain.DialogueReply{ResponseText: "Thanks", ShouldSpeak: true})
	}))
	defer srv.Close()

	c := NewDialogueClient(config.DialogueConfig{URL: srv.URL, Timeout: time.Second})
	reply, err := c.PostTranscript(context.Background(), domain.DialogueRequest{SessionID: "s1", Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, "Thanks", reply.ResponseText)
	require.True(t, reply.ShouldSpeak)
}

func TestDialogueUnreachable(t *testing.T) {
	c := NewDialogueClient(config.DialogueConfig{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	_, err := c.PostTranscript(context.Background(), domain.DialogueRequest{SessionID: "s1"})
	require.Error(t, err)
}
