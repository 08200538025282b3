package riva

import (
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

const streamingRecognizeMethod = "/nvidia.riva.asr.RivaSpeechRecognition/StreamingRecognize"

// SampleRateHertz is the only capture rate the stream is configured for.
const SampleRateHertz = 16000

const encodingLinearPCM = 1

// StreamingRecognizeRequest fields.
const (
	fieldRequestStreamingConfig protowire.Number = 1
	fieldRequestAudioContent    protowire.Number = 2
)

// StreamingRecognitionConfig fields.
const (
	fieldStreamingConfig         protowire.Number = 1
	fieldStreamingInterimResults protowire.Number = 2
)

// RecognitionConfig fields.
const (
	fieldConfigEncoding             protowire.Number = 1
	fieldConfigSampleRateHertz      protowire.Number = 2
	fieldConfigLanguageCode         protowire.Number = 3
	fieldConfigMaxAlternatives      protowire.Number = 4
	fieldConfigAudioChannelCount    protowire.Number = 7
	fieldConfigAutomaticPunctuation protowire.Number = 11
	fieldConfigModel                protowire.Number = 13
)

// StreamingRecognizeResponse / StreamingRecognitionResult / SpeechRecognitionAlternative fields.
const (
	fieldResponseResults       protowire.Number = 1
	fieldResultAlternatives    protowire.Number = 1
	fieldResultIsFinal         protowire.Number = 2
	fieldResultStability       protowire.Number = 3
	fieldResultChannelTag      protowire.Number = 5
	fieldResultAudioProcessed  protowire.Number = 6
	fieldAlternativeTranscript protowire.Number = 1
	fieldAlternativeConfidence protowire.Number = 2
)

// RecognitionConfig is the subset of Riva's recognition settings scribe sends.
type RecognitionConfig struct {
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	InterimResults       bool
}

// Alternative is one transcription hypothesis.
type Alternative struct {
	Transcript string
	Confidence float32
}

// Result is one recognition result within a response.
type Result struct {
	Alternatives   []Alternative
	Final          bool
	Stability      float32
	ChannelTag     int32
	AudioProcessed float32
}

// Transcript returns the top alternative's text.
func (r Result) Transcript() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// Response is one StreamingRecognizeResponse.
type Response struct {
	Results []Result
}

func encodeConfigRequest(cfg RecognitionConfig) []byte {
	var rc []byte
	rc = appendVarintField(rc, fieldConfigEncoding, encodingLinearPCM)
	rc = appendVarintField(rc, fieldConfigSampleRateHertz, SampleRateHertz)
	if lang := strings.TrimSpace(cfg.LanguageCode); lang != "" {
		rc = appendStringField(rc, fieldConfigLanguageCode, lang)
	}
	rc = appendVarintField(rc, fieldConfigMaxAlternatives, 1)
	rc = appendVarintField(rc, fieldConfigAudioChannelCount, 1)
	if cfg.AutomaticPunctuation {
		rc = appendVarintField(rc, fieldConfigAutomaticPunctuation, 1)
	}
	if model := strings.TrimSpace(cfg.Model); model != "" {
		rc = appendStringField(rc, fieldConfigModel, model)
	}

	var sc []byte
	sc = appendBytesField(sc, fieldStreamingConfig, rc)
	if cfg.InterimResults {
		sc = appendVarintField(sc, fieldStreamingInterimResults, 1)
	}

	return appendBytesField(nil, fieldRequestStreamingConfig, sc)
}

func encodeAudioRequest(chunk []byte) []byte {
	return appendBytesField(nil, fieldRequestAudioContent, chunk)
}

func decodeResponse(b []byte) (Response, error) {
	var resp Response
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error {
		if num == fieldResponseResults && typ == protowire.BytesType {
			result, err := decodeResult(value)
			if err != nil {
				return err
			}
			resp.Results = append(resp.Results, result)
		}
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("decode streaming response: %w", err)
	}
	return resp, nil
}

func decodeResult(b []byte) (Result, error) {
	var result Result
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error {
		switch {
		case num == fieldResultAlternatives && typ == protowire.BytesType:
			alt, err := decodeAlternative(value)
			if err != nil {
				return err
			}
			result.Alternatives = append(result.Alternatives, alt)
		case num == fieldResultIsFinal && typ == protowire.VarintType:
			result.Final = protowire.DecodeBool(scalar)
		case num == fieldResultStability && typ == protowire.Fixed32Type:
			result.Stability = math.Float32frombits(uint32(scalar))
		case num == fieldResultChannelTag && typ == protowire.VarintType:
			result.ChannelTag = int32(scalar)
		case num == fieldResultAudioProcessed && typ == protowire.Fixed32Type:
			result.AudioProcessed = math.Float32frombits(uint32(scalar))
		}
		return nil
	})
	return result, err
}

func decodeAlternative(b []byte) (Alternative, error) {
	var alt Alternative
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error {
		switch {
		case num == fieldAlternativeTranscript && typ == protowire.BytesType:
			alt.Transcript = string(value)
		case num == fieldAlternativeConfidence && typ == protowire.Fixed32Type:
			alt.Confidence = math.Float32frombits(uint32(scalar))
		}
		return nil
	})
	return alt, err
}

// walkFields visits every field in b. Length-delimited values arrive in value;
// varint and fixed-width values arrive in scalar. Groups are skipped.
func walkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var (
			value  []byte
			scalar uint64
		)
		switch typ {
		case protowire.VarintType:
			scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			scalar = uint64(v)
		case protowire.Fixed64Type:
			scalar, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			value, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := visit(num, typ, value, scalar); err != nil {
			return err
		}
	}
	return nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}
