package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// toolCallTimeout bounds each individual tool execution.
const toolCallTimeout = 30 * time.Second

// execution holds the per-task conversation state.
type execution struct {
	contents []*genai.Content
	records  []model.ToolCallRecord

	// Structured tool outcomes for answer synthesis, keyed by tool name.
	outcomes map[string][]map[string]any
}

// ExecuteTask runs one agent task. maxIterations of 0 selects the default;
// values outside 1..10 are rejected. The first iteration forces tool use,
// later iterations leave the choice to the model.
func (o *Orchestrator) ExecuteTask(ctx context.Context, prompt string, maxIterations int) (*model.TaskResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, goerr.Wrap(ErrBadRequest, "prompt must not be empty")
	}
	if maxIterations == 0 {
		maxIterations = DefaultMaxIterations
	}
	if maxIterations < 1 || maxIterations > MaxIterationsLimit {
		return nil, goerr.Wrap(ErrBadRequest, "maxIterations out of range",
			goerr.V("maxIterations", maxIterations),
			goerr.V("limit", MaxIterationsLimit))
	}

	logger := logging.From(ctx)

	exec := &execution{
		contents: []*genai.Content{
			genai.NewContentFromText(prompt, genai.RoleUser),
		},
		outcomes: make(map[string][]map[string]any),
	}

	instruction := systemInstruction
	if extra := o.registry.Prompts(ctx); extra != "" {
		instruction += "\n\n" + extra
	}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "task cancelled", goerr.V("iteration", iteration))
		}

		config := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instruction, ""),
			Tools:             o.registry.Specs(),
			ToolConfig:        forcedToolConfig(iteration == 1),
		}

		resp, err := o.gemini.GenerateContent(ctx, exec.contents, config)
		if err != nil {
			return nil, goerr.Wrap(err, "model call failed", goerr.V("iteration", iteration))
		}

		calls, text := splitResponse(resp)
		if len(calls) > 0 {
			exec.contents = append(exec.contents, resp.Candidates[0].Content)
			if err := o.runToolCalls(ctx, exec, calls); err != nil {
				return nil, err
			}
			continue
		}

		if text != "" {
			result := &model.TaskResult{
				Success:    true,
				Answer:     buildAnswer(text, exec.outcomes),
				ToolCalls:  exec.records,
				Iterations: iteration,
			}
			o.archiveResult(ctx, result)
			logger.Debug("task finished",
				"iterations", iteration, "toolCalls", len(exec.records))
			return result, nil
		}

		return nil, goerr.Wrap(ErrModelFailure,
			"model returned neither text nor tool calls",
			goerr.V("iteration", iteration))
	}

	return nil, goerr.Wrap(ErrMaxIterations, "no final answer",
		goerr.V("maxIterations", maxIterations))
}

// runToolCalls executes the model's tool calls sequentially in emission
// order. Unknown names are skipped with a warning; failures become error
// payloads for the model to recover from. All function responses are
// appended as a single user content.
func (o *Orchestrator) runToolCalls(ctx context.Context, exec *execution, calls []*genai.FunctionCall) error {
	logger := logging.From(ctx)

	var parts []*genai.Part
	for _, fc := range calls {
		if !o.registry.Has(fc.Name) {
			logger.Warn("model requested unknown tool, skipping", "name", fc.Name)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		funcResp, err := o.registry.Execute(callCtx, *fc)
		cancel()

		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "task cancelled during tool call", goerr.V("tool", fc.Name))
		}

		if err != nil {
			logger.Warn("tool call failed", "tool", fc.Name, "error", err)
			funcResp = &genai.FunctionResponse{
				Name:     fc.Name,
				Response: map[string]any{"error": err.Error()},
			}
		} else {
			exec.outcomes[fc.Name] = append(exec.outcomes[fc.Name], funcResp.Response)
		}

		exec.records = append(exec.records, model.ToolCallRecord{
			Name:   fc.Name,
			Args:   fc.Args,
			Result: serializeResponse(funcResp.Response),
		})
		parts = append(parts, &genai.Part{FunctionResponse: funcResp})
	}

	if len(parts) > 0 {
		exec.contents = append(exec.contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: parts,
		})
	}

	return nil
}

// splitResponse separates function calls from text in a model response.
func splitResponse(resp *genai.GenerateContentResponse) ([]*genai.FunctionCall, string) {
	var calls []*genai.FunctionCall
	var text strings.Builder

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				calls = append(calls, part.FunctionCall)
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		break // only the first candidate is used
	}

	return calls, text.String()
}

func forcedToolConfig(force bool) *genai.ToolConfig {
	mode := genai.FunctionCallingConfigModeAuto
	if force {
		mode = genai.FunctionCallingConfigModeAny
	}
	return &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
	}
}

func serializeResponse(response map[string]any) string {
	data, err := json.Marshal(response)
	if err != nil {
		return "Error: " + err.Error()
	}
	return string(data)
}

// archiveResult stores the finished task record when an archive is
// configured. Failures are logged, never surfaced.
func (o *Orchestrator) archiveResult(ctx context.Context, result *model.TaskResult) {
	if o.archive == nil {
		return
	}

	logger := logging.From(ctx)
	taskID := uuid.NewString()

	w, err := o.archive.PutTask(ctx, taskID)
	if err != nil {
		logger.Warn("failed to open task archive", "taskID", taskID, "error", err)
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Warn("failed to write task archive", "taskID", taskID, "error", err)
		_ = w.Close()
		return
	}
	if err := w.Close(); err != nil {
		logger.Warn("failed to close task archive", "taskID", taskID, "error", err)
	}
}
