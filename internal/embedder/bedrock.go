package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// bedrockInvoker is the subset of the Bedrock runtime client used for
// embeddings.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockEmbedder implements rag.Embedder with Amazon Titan text embedding
// models on AWS Bedrock. Titan accepts one input per request, so texts are
// embedded one at a time. It is safe for concurrent use.
type BedrockEmbedder struct {
	// client invokes the model.
	client bedrockInvoker
	// modelID is the Bedrock model ID (e.g. "amazon.titan-embed-text-v1").
	modelID string
}

// BedrockConfig holds the settings for constructing a BedrockEmbedder.
type BedrockConfig struct {
	// Region is the AWS region hosting the model.
	Region string
	// Profile is an optional shared-config profile name (e.g. an SSO profile).
	Profile string
	// ModelID is the Bedrock embedding model ID.
	ModelID string
}

// NewBedrockEmbedder resolves AWS credentials through the standard SDK chain
// and returns a BedrockEmbedder.
func NewBedrockEmbedder(ctx context.Context, cfg *BedrockConfig) (*BedrockEmbedder, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock embedder: load aws config: %w", err)
	}
	return &BedrockEmbedder{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
	}, nil
}

// titanRequest is the JSON body sent to a Titan embedding model.
type titanRequest struct {
	InputText string `json:"inputText"`
}

// titanResponse is the JSON body returned by a Titan embedding model. Some
// model versions name the field "vector".
type titanResponse struct {
	Embedding []float32 `json:"embedding"`
	Vector    []float32 `json:"vector"`
}

// Embed embeds each text with a separate InvokeModel call. The first failure
// aborts the batch with an *EmbedError naming the failing position.
func (e *BedrockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, t := range texts {
		vec, err := e.embedOne(ctx, t)
		if err != nil {
			return nil, errAt(texts, i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// embedOne performs a single InvokeModel round trip.
func (e *BedrockEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("bedrock embedder: marshal request: %w", err)
	}

	resp, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock embedder: invoke %s: %w", e.modelID, err)
	}

	var result titanResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("bedrock embedder: decode response: %w", err)
	}
	vec := result.Embedding
	if len(vec) == 0 {
		vec = result.Vector
	}
	if len(vec) == 0 {
		return nil, errors.New("bedrock embedder: empty embedding")
	}
	return vec, nil
}
