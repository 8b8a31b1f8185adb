package transcribe

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/speech/apiv1p1beta1/speechpb"
)

// encodings maps CLI encoding names to the recognition API's values.
var encodings = map[string]speechpb.RecognitionConfig_AudioEncoding{
	"LINEAR16": speechpb.RecognitionConfig_LINEAR16,
	"FLAC":     speechpb.RecognitionConfig_FLAC,
	"MP3":      speechpb.RecognitionConfig_MP3,
	"OGG_OPUS": speechpb.RecognitionConfig_OGG_OPUS,
	"MULAW":    speechpb.RecognitionConfig_MULAW,
}

// ParseEncoding maps an encoding name (case-insensitive) to the API value.
func ParseEncoding(name string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	enc, ok := encodings[strings.ToUpper(name)]
	if !ok {
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			fmt.Errorf("unsupported encoding %q (supported: %s)", name, strings.Join(SupportedEncodings(), ", "))
	}
	return enc, nil
}

// RequiresSampleRate reports whether the recognition request must carry an
// explicit sample rate for the encoding. MP3 and OGG_OPUS requests succeed
// without one.
func RequiresSampleRate(enc speechpb.RecognitionConfig_AudioEncoding) bool {
	switch enc {
	case speechpb.RecognitionConfig_LINEAR16,
		speechpb.RecognitionConfig_FLAC,
		speechpb.RecognitionConfig_MULAW:
		return true
	}
	return false
}

// SupportedEncodings lists accepted encoding names in sorted order.
func SupportedEncodings() []string {
	names := make([]string, 0, len(encodings))
	for name := range encodings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
