package engine

import (
	"errors"
	"testing"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
)

func TestClassifyDeepgramError(t *testing.T) {
	tests := []struct {
		name string
		resp *msginterfaces.ErrorResponse
		want string
	}{
		{"nil response", nil, CodeNetwork},
		{"empty response", &msginterfaces.ErrorResponse{}, CodeNetwork},
		{
			"abort in description",
			&msginterfaces.ErrorResponse{Description: "connection aborted by client"},
			CodeAborted,
		},
		{
			"abort in message",
			&msginterfaces.ErrorResponse{ErrMsg: "stream aborted"},
			CodeAborted,
		},
		{
			"unauthorized message",
			&msginterfaces.ErrorResponse{ErrMsg: "Unauthorized: invalid credentials"},
			CodeNotAllowed,
		},
		{
			"http status code in error code",
			&msginterfaces.ErrorResponse{ErrCode: "401"},
			CodeNotAllowed,
		},
		{
			"forbidden description",
			&msginterfaces.ErrorResponse{Description: "403 Forbidden"},
			CodeNotAllowed,
		},
		{
			"unclassified failure",
			&msginterfaces.ErrorResponse{ErrMsg: "internal server error", ErrCode: "500"},
			CodeNetwork,
		},
	}
	for _, tt := range tests {
		if got := classifyDeepgramError(tt.resp); got != tt.want {
			t.Errorf("%s: classifyDeepgramError = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDeepgramFactory_EmptyKeyUnsupported(t *testing.T) {
	factory := NewDeepgramFactory(DeepgramConfig{APIKey: "  "})
	_, err := factory.New(newChanListener())
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for empty API key, got %v", err)
	}
}

func TestDeepgramFactory_Defaults(t *testing.T) {
	factory := NewDeepgramFactory(DeepgramConfig{APIKey: "key"})
	if factory.cfg.Model != "nova-2" || factory.cfg.Encoding != "linear16" {
		t.Errorf("Unexpected defaults: %+v", factory.cfg)
	}
	if factory.cfg.SampleRate != 16000 || factory.cfg.Channels != 1 {
		t.Errorf("Unexpected audio defaults: %+v", factory.cfg)
	}
}
