package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexus-crypto-desk/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Invocation failure taxonomy. Both abort the current run; the split exists
// for logs and audit metadata.
var (
	ErrTransport = errors.New("agent transport failure")
	ErrSchema    = errors.New("agent schema failure")
)

// LLMClient abstracts the OpenAI chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// Invoker performs exactly one structured call per pipeline stage. It does
// no retries; the correction loop lives in the orchestrator.
type Invoker struct {
	tracer trace.Tracer
	llm    LLMClient
	model  string
}

func NewInvoker(tracer trace.Tracer, llm LLMClient, model string) *Invoker {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &Invoker{tracer: tracer, llm: llm, model: model}
}

// InvokeAgent runs one analytical stage and decodes its AgentOutput.
func (v *Invoker) InvokeAgent(ctx context.Context, role Role, symbol string, snapshotJSON []byte, runningContext string) (*domain.AgentOutput, error) {
	ctx, span := v.tracer.Start(ctx, "invoker.agent")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.role", string(role)),
		attribute.String("symbol", symbol),
	)

	system, user := BuildAgentPrompts(role, symbol, snapshotJSON, runningContext)
	raw, err := v.complete(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	output, err := decodeAgentOutput(raw, role)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	output.Symbol = symbol
	output.CreatedAt = time.Now().UTC()
	return output, nil
}

// InvokeSynthesis runs the strategist stage and decodes its MasterPlan.
// directive is non-empty only on a correction pass.
func (v *Invoker) InvokeSynthesis(ctx context.Context, symbol string, snapshotJSON []byte, outputs []*domain.AgentOutput, directive string) (*domain.MasterPlan, error) {
	ctx, span := v.tracer.Start(ctx, "invoker.synthesis")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Bool("correction", directive != ""),
	)

	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal outputs: %v", ErrSchema, err)
	}

	system, user := BuildSynthesisPrompts(symbol, snapshotJSON, outputsJSON, directive)
	raw, err := v.complete(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	plan, err := decodeMasterPlan(raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	plan.Symbol = symbol
	plan.CreatedAt = time.Now().UTC()
	return plan, nil
}

// InvokeValidation runs the auditor stage and decodes its ValidationResult.
// plan is nil for scan runs.
func (v *Invoker) InvokeValidation(ctx context.Context, symbol string, snapshotJSON []byte, outputs []*domain.AgentOutput, plan *domain.MasterPlan) (*domain.ValidationResult, error) {
	ctx, span := v.tracer.Start(ctx, "invoker.validation")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal outputs: %v", ErrSchema, err)
	}
	var planJSON []byte
	if plan != nil {
		planJSON, err = json.Marshal(plan)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal plan: %v", ErrSchema, err)
		}
	}

	system, user := BuildValidationPrompts(symbol, snapshotJSON, outputsJSON, planJSON)
	raw, err := v.complete(ctx, system, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := decodeValidationResult(raw)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result.CreatedAt = time.Now().UTC()
	return result, nil
}

func (v *Invoker) complete(ctx context.Context, system, user string) (string, error) {
	completion, err := v.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: v.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrTransport)
	}
	return trimCodeFence(completion.Choices[0].Message.Content), nil
}

func decodeAgentOutput(raw string, role Role) (*domain.AgentOutput, error) {
	var output domain.AgentOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		return nil, fmt.Errorf("%w: parse agent output: %v", ErrSchema, err)
	}

	output.Agent = string(role)
	if len(output.Thesis) == 0 {
		return nil, fmt.Errorf("%w: role %s omitted thesis", ErrSchema, role)
	}
	if !domain.IsValidConfidence(output.Confidence) {
		return nil, fmt.Errorf("%w: role %s returned confidence %q", ErrSchema, role, output.Confidence)
	}
	if strings.TrimSpace(output.Disclaimer) == "" {
		return nil, fmt.Errorf("%w: role %s omitted disclaimer", ErrSchema, role)
	}

	if role == RoleTriage {
		if output.SetupScore == nil {
			return nil, fmt.Errorf("%w: triage omitted setup_score", ErrSchema)
		}
		if !domain.IsValidPosture(output.Posture) {
			return nil, fmt.Errorf("%w: triage returned posture %q", ErrSchema, output.Posture)
		}
		if output.AllowDeep == nil {
			return nil, fmt.Errorf("%w: triage omitted allow_deep", ErrSchema)
		}
	}

	return &output, nil
}

func decodeMasterPlan(raw string) (*domain.MasterPlan, error) {
	var plan domain.MasterPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: parse master plan: %v", ErrSchema, err)
	}

	if strings.TrimSpace(plan.Scenario) == "" {
		return nil, fmt.Errorf("%w: strategist omitted scenario", ErrSchema)
	}
	if !domain.IsValidPosture(plan.Posture) {
		return nil, fmt.Errorf("%w: strategist returned posture %q", ErrSchema, plan.Posture)
	}
	if !domain.IsValidConfidence(plan.Confidence) {
		return nil, fmt.Errorf("%w: strategist returned confidence %q", ErrSchema, plan.Confidence)
	}
	if strings.TrimSpace(plan.Disclaimer) == "" {
		return nil, fmt.Errorf("%w: strategist omitted disclaimer", ErrSchema)
	}

	return &plan, nil
}

func decodeValidationResult(raw string) (*domain.ValidationResult, error) {
	var result domain.ValidationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("%w: parse validation result: %v", ErrSchema, err)
	}

	switch result.Status {
	case domain.ValidationValidated, domain.ValidationPartial, domain.ValidationFailed:
	default:
		return nil, fmt.Errorf("%w: auditor returned status %q", ErrSchema, result.Status)
	}
	if !domain.IsValidConfidence(result.Confidence) {
		return nil, fmt.Errorf("%w: auditor returned confidence %q", ErrSchema, result.Confidence)
	}

	return &result, nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiClient{client: client}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
