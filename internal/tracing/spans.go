// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing provides OpenTelemetry spans for workflow runs, steps and
// template renders.
//
// Spans come from an injected trace.Tracer. Without a configured provider
// the global no-op tracer is used, so nothing is recorded unless the CLI
// enables --trace.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used for quill spans.
const InstrumentationName = "github.com/tombee/quill"

// Span attribute keys.
const (
	AttrRunID          = "quill.run.id"
	AttrWorkflowID     = "quill.workflow.id"
	AttrWorkflowName   = "quill.workflow.name"
	AttrStepID         = "quill.step.id"
	AttrStepType       = "quill.step.type"
	AttrTemplateID     = "quill.template.id"
	AttrCompletedSteps = "quill.run.completed_steps"
)

// DefaultTracer returns the tracer from the global provider.
func DefaultTracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Span wraps a trace.Span. A nil *Span ignores every call.
type Span struct {
	span trace.Span
}

func start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	if tracer == nil {
		tracer = DefaultTracer()
	}
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, &Span{span: span}
}

// StartRun opens the root span of a workflow run.
func StartRun(ctx context.Context, tracer trace.Tracer, runID, workflowID, workflowName string) (context.Context, *Span) {
	return start(ctx, tracer, "quill.run "+workflowID,
		attribute.String(AttrRunID, runID),
		attribute.String(AttrWorkflowID, workflowID),
		attribute.String(AttrWorkflowName, workflowName),
	)
}

// StartStep opens a span for one step, parented to the span in ctx.
func StartStep(ctx context.Context, tracer trace.Tracer, stepID, stepType string) (context.Context, *Span) {
	return start(ctx, tracer, "quill.step "+stepID,
		attribute.String(AttrStepID, stepID),
		attribute.String(AttrStepType, stepType),
	)
}

// StartTemplate opens a span for rendering one template.
func StartTemplate(ctx context.Context, tracer trace.Tracer, templateID string) (context.Context, *Span) {
	return start(ctx, tracer, "quill.template "+templateID,
		attribute.String(AttrTemplateID, templateID),
	)
}

func (s *Span) SetInt(key string, value int) {
	if s == nil || s.span == nil {
		return
	}
	s.span.SetAttributes(attribute.Int(key, value))
}

// Finish sets the span status from err and ends it.
func (s *Span) Finish(err error) {
	if s == nil || s.span == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
