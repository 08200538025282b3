package riva

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type decodedRequest struct {
	hasConfig      bool
	config         RecognitionConfig
	encoding       uint64
	sampleRate     uint64
	channels       uint64
	maxAlternative uint64
	audio          []byte
}

func decodeTestRequest(t *testing.T, payload []byte) decodedRequest {
	t.Helper()

	var req decodedRequest
	err := walkFields(payload, func(num protowire.Number, typ protowire.Type, value []byte, _ uint64) error {
		switch num {
		case fieldRequestStreamingConfig:
			req.hasConfig = true
			return walkFields(value, func(num protowire.Number, _ protowire.Type, value []byte, scalar uint64) error {
				switch num {
				case fieldStreamingConfig:
					return walkFields(value, func(num protowire.Number, _ protowire.Type, value []byte, scalar uint64) error {
						switch num {
						case fieldConfigEncoding:
							req.encoding = scalar
						case fieldConfigSampleRateHertz:
							req.sampleRate = scalar
						case fieldConfigLanguageCode:
							req.config.LanguageCode = string(value)
						case fieldConfigMaxAlternatives:
							req.maxAlternative = scalar
						case fieldConfigAudioChannelCount:
							req.channels = scalar
						case fieldConfigAutomaticPunctuation:
							req.config.AutomaticPunctuation = scalar != 0
						case fieldConfigModel:
							req.config.Model = string(value)
						}
						return nil
					})
				case fieldStreamingInterimResults:
					req.config.InterimResults = scalar != 0
				}
				return nil
			})
		case fieldRequestAudioContent:
			req.audio = append([]byte(nil), value...)
		}
		return nil
	})
	require.NoError(t, err)
	return req
}

func encodeTestResponse(resp Response) []byte {
	var out []byte
	for _, result := range resp.Results {
		var rb []byte
		for _, alt := range result.Alternatives {
			var ab []byte
			ab = appendStringField(ab, fieldAlternativeTranscript, alt.Transcript)
			ab = protowire.AppendTag(ab, fieldAlternativeConfidence, protowire.Fixed32Type)
			ab = protowire.AppendFixed32(ab, math.Float32bits(alt.Confidence))
			rb = appendBytesField(rb, fieldResultAlternatives, ab)
		}
		if result.Final {
			rb = appendVarintField(rb, fieldResultIsFinal, 1)
		}
		rb = protowire.AppendTag(rb, fieldResultStability, protowire.Fixed32Type)
		rb = protowire.AppendFixed32(rb, math.Float32bits(result.Stability))
		rb = appendVarintField(rb, fieldResultChannelTag, uint64(result.ChannelTag))
		rb = protowire.AppendTag(rb, fieldResultAudioProcessed, protowire.Fixed32Type)
		rb = protowire.AppendFixed32(rb, math.Float32bits(result.AudioProcessed))
		out = appendBytesField(out, fieldResponseResults, rb)
	}
	return out
}

func TestEncodeConfigRequest(t *testing.T) {
	t.Parallel()

	payload := encodeConfigRequest(RecognitionConfig{
		LanguageCode:         "en-GB",
		Model:                "parakeet",
		AutomaticPunctuation: true,
		InterimResults:       true,
	})
	req := decodeTestRequest(t, payload)

	require.True(t, req.hasConfig)
	require.Equal(t, uint64(encodingLinearPCM), req.encoding)
	require.Equal(t, uint64(SampleRateHertz), req.sampleRate)
	require.Equal(t, uint64(1), req.channels)
	require.Equal(t, uint64(1), req.maxAlternative)
	require.Equal(t, RecognitionConfig{
		LanguageCode:         "en-GB",
		Model:                "parakeet",
		AutomaticPunctuation: true,
		InterimResults:       true,
	}, req.config)
	require.Nil(t, req.audio)
}

func TestEncodeConfigRequestOmitsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	req := decodeTestRequest(t, encodeConfigRequest(RecognitionConfig{LanguageCode: "  "}))
	require.True(t, req.hasConfig)
	require.Empty(t, req.config.LanguageCode)
	require.Empty(t, req.config.Model)
	require.False(t, req.config.AutomaticPunctuation)
	require.False(t, req.config.InterimResults)
}

func TestEncodeAudioRequest(t *testing.T) {
	t.Parallel()

	req := decodeTestRequest(t, encodeAudioRequest([]byte{1, 2, 3}))
	require.False(t, req.hasConfig)
	require.Equal(t, []byte{1, 2, 3}, req.audio)
}

func TestDecodeResponse(t *testing.T) {
	t.Parallel()

	want := Response{Results: []Result{
		{
			Alternatives:   []Alternative{{Transcript: "hello wor", Confidence: 0.5}},
			Stability:      0.25,
			AudioProcessed: 1.5,
		},
		{
			Alternatives:   []Alternative{{Transcript: "hello world ", Confidence: 0.9}, {Transcript: "yellow world", Confidence: 0.1}},
			Final:          true,
			Stability:      1,
			ChannelTag:     1,
			AudioProcessed: 2,
		},
	}}

	got, err := decodeResponse(encodeTestResponse(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, "hello world ", got.Results[1].Transcript())
	require.Empty(t, Result{}.Transcript())
}

func TestDecodeResponseSkipsUnknownFields(t *testing.T) {
	t.Parallel()

	var payload []byte
	payload = appendStringField(payload, 99, "pipeline state")
	payload = appendVarintField(payload, 42, 7)
	payload = append(payload, encodeTestResponse(Response{Results: []Result{{
		Alternatives: []Alternative{{Transcript: "kept"}},
		Final:        true,
	}}})...)

	got, err := decodeResponse(payload)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	require.Equal(t, "kept", got.Results[0].Transcript())
}

func TestDecodeResponseRejectsTruncatedPayload(t *testing.T) {
	t.Parallel()

	payload := encodeTestResponse(Response{Results: []Result{{Alternatives: []Alternative{{Transcript: "cut short"}}}}})
	_, err := decodeResponse(payload[:len(payload)-3])
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode streaming response")
}

func TestRawCodec(t *testing.T) {
	t.Parallel()

	codec := rawCodec{}
	require.Equal(t, "proto", codec.Name())

	b, err := codec.Marshal([]byte{7, 8})
	require.NoError(t, err)
	require.Equal(t, []byte{7, 8}, b)

	src := []byte{9}
	b, err = codec.Marshal(&src)
	require.NoError(t, err)
	require.Equal(t, []byte{9}, b)

	_, err = codec.Marshal("nope")
	require.Error(t, err)

	var dst []byte
	require.NoError(t, codec.Unmarshal([]byte{4, 5}, &dst))
	require.Equal(t, []byte{4, 5}, dst)

	var wrong string
	require.Error(t, codec.Unmarshal([]byte{1}, &wrong))
}
