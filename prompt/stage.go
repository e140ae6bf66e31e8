package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/AnTengye/contractwatch/llm"
	"github.com/AnTengye/contractwatch/pkg/logger"
)

// Definition describes one prompt stage
type Definition[In any] struct {
	Name     string
	System   string
	Template string
	// TightenInput and TightenOutput add constraints the Go types cannot express
	TightenInput  func(s *jsonschema.Schema)
	TightenOutput func(s *jsonschema.Schema)
	// Media extracts binary attachments from the input
	Media func(in In) ([]llm.Media, error)
}

// Stage is a prompt with typed, schema-validated input and output
type Stage[In, Out any] struct {
	name         string
	system       string
	tmpl         *template.Template
	input        *jsonschema.Resolved
	output       *jsonschema.Resolved
	outputSchema *jsonschema.Schema
	media        func(In) ([]llm.Media, error)
	invoker      *Invoker
}

// NewStage builds a stage, deriving both schemas from In and Out
func NewStage[In, Out any](inv *Invoker, def Definition[In]) (*Stage[In, Out], error) {
	tmpl, err := template.New(def.Name).Option("missingkey=error").Parse(def.Template)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", def.Name, err)
	}

	inSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("%s input schema: %w", def.Name, err)
	}
	if def.TightenInput != nil {
		def.TightenInput(inSchema)
	}
	input, err := inSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve %s input schema: %w", def.Name, err)
	}

	outSchema, err := jsonschema.For[Out](nil)
	if err != nil {
		return nil, fmt.Errorf("%s output schema: %w", def.Name, err)
	}
	if def.TightenOutput != nil {
		def.TightenOutput(outSchema)
	}
	output, err := outSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve %s output schema: %w", def.Name, err)
	}

	return &Stage[In, Out]{
		name:         def.Name,
		system:       def.System,
		tmpl:         tmpl,
		input:        input,
		output:       output,
		outputSchema: outSchema,
		media:        def.Media,
		invoker:      inv,
	}, nil
}

// Name returns the stage name
func (s *Stage[In, Out]) Name() string {
	return s.name
}

// OutputSchema returns the JSON schema model answers are validated against
func (s *Stage[In, Out]) OutputSchema() *jsonschema.Schema {
	return s.outputSchema
}

// Invoke validates in, renders the prompt, calls the model and validates its answer
func (s *Stage[In, Out]) Invoke(ctx context.Context, in In) (*Out, error) {
	ctx = logger.WithStage(ctx, s.name)

	if err := validate(s.input, in); err != nil {
		return nil, s.fail(KindInput, ErrInvalidInput, err)
	}

	var prompt bytes.Buffer
	if err := s.tmpl.Execute(&prompt, in); err != nil {
		return nil, s.fail(KindInput, ErrInvalidInput, err)
	}

	req := llm.Request{
		System: s.system,
		Prompt: prompt.String(),
		Schema: s.outputSchema,
	}
	if s.media != nil {
		media, err := s.media(in)
		if err != nil {
			return nil, s.fail(KindInput, ErrInvalidInput, err)
		}
		req.Media = media
	}

	logger.Debug(ctx, "invoking model", "model", s.invoker.model.Name(), "prompt_bytes", prompt.Len(), "media", len(req.Media))
	raw, err := s.invoker.call(ctx, req)
	if err != nil {
		logger.Error(ctx, "model call failed", "error", err)
		return nil, s.fail(KindModel, ErrModel, err)
	}

	out, err := s.decode(raw)
	if err != nil {
		logger.Warn(ctx, "model output rejected", "error", err)
		return nil, s.fail(KindOutput, ErrInvalidOutput, err)
	}
	return out, nil
}

func (s *Stage[In, Out]) decode(raw string) (*Out, error) {
	body := []byte(stripFences(raw))

	var instance any
	if err := json.Unmarshal(body, &instance); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	if err := s.output.Validate(instance); err != nil {
		return nil, err
	}

	var out Out
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}

func (s *Stage[In, Out]) fail(kind Kind, sentinel, cause error) *Error {
	return &Error{Stage: s.name, Kind: kind, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}

// validate checks v against rs the way it would look on the wire
func validate(rs *jsonschema.Resolved, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}
	return rs.Validate(instance)
}

// stripFences removes a surrounding ```json fence some models add despite JSON mode
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
