package asr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hireloop/voicepipe/internal/config"
)

func configRecognition(mode string) config.RecognitionConfig {
	return config.RecognitionConfig{Mode: mode, SampleRate: testRate, Command: "stt-cli --json"}
}

func TestNewExecRecognizerParsesCommand(t *testing.T) {
	r, err := NewExecRecognizer(configRecognition("exec"))
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestNewExecRecognizerEmptyCommand(t *testing.T) {
	_, err := NewExecRecognizer(config.RecognitionConfig{Mode: "exec"})
	require.Error(t, err)
}
