package gemini

import (
	"google.golang.org/genai"
)

// Modality is the response modality requested from the model.
type Modality string

const (
	ModalityAudio Modality = "audio"
	ModalityText  Modality = "text"
)

// DefaultModel is the native-audio Live model.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// SessionConfig declares the agent for one Live session.
type SessionConfig struct {
	Model    string
	Persona  string
	Modality Modality
	Voice    string
	Tools    []*genai.FunctionDeclaration
	// Transcribe enables input and output transcription events.
	Transcribe bool
}

func (c SessionConfig) model() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

func (c SessionConfig) liveConfig() *genai.LiveConnectConfig {
	config := &genai.LiveConnectConfig{}

	switch c.Modality {
	case ModalityText:
		config.ResponseModalities = []genai.Modality{genai.ModalityText}
	default:
		config.ResponseModalities = []genai.Modality{genai.ModalityAudio}
		if c.Voice != "" {
			config.SpeechConfig = &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.Voice},
				},
			}
		}
	}

	if c.Persona != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.Persona}},
		}
	}

	if len(c.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: c.Tools}}
	}

	if c.Transcribe {
		config.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
		if c.Modality != ModalityText {
			config.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
		}
	}
	return config
}
