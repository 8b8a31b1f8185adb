package transcribe

import (
	"cloud.google.com/go/speech/apiv1p1beta1/speechpb"
)

// enhancedModel is the premium long-form model selected by the enhanced switch.
const enhancedModel = "latest_long"

// RequestParams shape a diarized recognition request for one audio object.
type RequestParams struct {
	// URI is the gs:// reference to the uploaded audio.
	URI          string
	LanguageCode string
	MinSpeakers  int
	MaxSpeakers  int

	// SampleRateHertz may be 0 for encodings whose container carries the
	// rate; the service then reads it from the header.
	SampleRateHertz int
	Encoding        speechpb.RecognitionConfig_AudioEncoding

	// Enhanced selects the premium latest_long model.
	Enhanced bool
}

// BuildRequest assembles the long-running recognition request. Word time
// offsets and automatic punctuation are always on; diarization bounds are
// passed through as given, and the service may still report more distinct
// speaker tags than MaxSpeakers.
func BuildRequest(p RequestParams) *speechpb.LongRunningRecognizeRequest {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   p.Encoding,
		SampleRateHertz:            int32(p.SampleRateHertz),
		LanguageCode:               p.LanguageCode,
		EnableWordTimeOffsets:      true,
		EnableAutomaticPunctuation: true,
		DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          int32(p.MinSpeakers),
			MaxSpeakerCount:          int32(p.MaxSpeakers),
		},
	}
	if p.Enhanced {
		cfg.UseEnhanced = true
		cfg.Model = enhancedModel
	}

	return &speechpb.LongRunningRecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: p.URI},
		},
	}
}
