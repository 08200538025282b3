package completion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rbright/scribe/internal/notes"
)

const defaultBedrockRegion = "us-east-1"

type converser interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements notes.Completer over the Bedrock Converse API.
type BedrockClient struct {
	api converser
	cfg Config
}

// NewBedrock loads AWS configuration from the environment. Static keys in
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY take precedence over the shared
// config chain. BaseURL overrides the regional endpoint.
func NewBedrock(ctx context.Context, cfg Config) (*BedrockClient, error) {
	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = defaultBedrockRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	keyID := strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	secret := strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	switch {
	case keyID != "" && secret != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, os.Getenv("AWS_SESSION_TOKEN")),
		))
	case keyID != "" || secret != "":
		return nil, errors.New("both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for key-based auth")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	api := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if base := strings.TrimSpace(cfg.BaseURL); base != "" {
			o.BaseEndpoint = aws.String(base)
		}
	})
	return &BedrockClient{api: api, cfg: cfg}, nil
}

// Complete sends one Converse request and joins the text blocks of the reply.
func (c *BedrockClient) Complete(ctx context.Context, req notes.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(c.cfg.Timeout))
	defer cancel()

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
		InferenceConfig: &bedrocktypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.MaxTokens)),
			Temperature: aws.Float32(req.Temperature),
		},
	}
	for _, msg := range req.Messages {
		if msg.Role == notes.RoleSystem {
			input.System = append(input.System, &bedrocktypes.SystemContentBlockMemberText{Value: msg.Content})
			continue
		}
		input.Messages = append(input.Messages, bedrocktypes.Message{
			Role:    bedrocktypes.ConversationRoleUser,
			Content: []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: msg.Content}},
		})
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("bedrock converse failed: %w", err)
	}
	message, ok := out.Output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok || message == nil {
		return "", errors.New("bedrock converse output is not a message")
	}

	parts := make([]string, 0, len(message.Value.Content))
	for _, block := range message.Value.Content {
		if text, ok := block.(*bedrocktypes.ContentBlockMemberText); ok && text != nil {
			parts = append(parts, text.Value)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoChoices
	}
	return strings.Join(parts, ""), nil
}
