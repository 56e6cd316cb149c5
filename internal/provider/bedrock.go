package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// converser is the subset of the Bedrock runtime client used for chat.
type converser interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// bedrockChatModel adapts the Bedrock Converse API to model.BaseChatModel.
type bedrockChatModel struct {
	client      converser
	modelID     string
	maxTokens   int
	temperature float32
}

// newBedrock constructs a chat model backed by AWS Bedrock. AWS credentials
// are resolved via the standard SDK credential chain.
func newBedrock(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Bedrock.AWSRegion)}
	if cfg.Bedrock.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Bedrock.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("provider: bedrock: load aws config: %w", err)
	}
	return &bedrockChatModel{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		modelID:     cfg.Bedrock.ModelID,
		maxTokens:   cfg.Tuning.MaxTokens,
		temperature: cfg.Tuning.Temperature,
	}, nil
}

// Generate sends the conversation to Converse and returns the assistant reply.
// System messages become the Converse system prompt; consecutive messages of
// the same role are merged because Converse requires alternating turns.
func (m *bedrockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	o := model.GetCommonOptions(&model.Options{
		MaxTokens:   &m.maxTokens,
		Temperature: &m.temperature,
	}, opts...)

	req := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(m.modelID),
		InferenceConfig: &types.InferenceConfiguration{},
	}
	if o.MaxTokens != nil && *o.MaxTokens > 0 {
		req.InferenceConfig.MaxTokens = aws.Int32(int32(*o.MaxTokens))
	}
	if o.Temperature != nil {
		req.InferenceConfig.Temperature = aws.Float32(*o.Temperature)
	}
	if o.TopP != nil {
		req.InferenceConfig.TopP = aws.Float32(*o.TopP)
	}
	if len(o.Stop) > 0 {
		req.InferenceConfig.StopSequences = o.Stop
	}

	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			req.System = append(req.System, &types.SystemContentBlockMemberText{Value: msg.Content})
		case schema.User, schema.Assistant:
			role := types.ConversationRoleUser
			if msg.Role == schema.Assistant {
				role = types.ConversationRoleAssistant
			}
			block := &types.ContentBlockMemberText{Value: msg.Content}
			if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == role {
				req.Messages[n-1].Content = append(req.Messages[n-1].Content, block)
				continue
			}
			req.Messages = append(req.Messages, types.Message{Role: role, Content: []types.ContentBlock{block}})
		}
	}
	if len(req.Messages) == 0 || req.Messages[0].Role != types.ConversationRoleUser {
		return nil, errors.New("provider: bedrock: conversation must start with a user message")
	}

	out, err := m.client.Converse(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider: bedrock: converse %s: %w", m.modelID, err)
	}

	reply, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("provider: bedrock: unexpected output type %T", out.Output)
	}
	var text strings.Builder
	for _, block := range reply.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}
	return schema.AssistantMessage(text.String(), nil), nil
}

// Stream returns the full Generate reply as a single-element stream.
func (m *bedrockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
