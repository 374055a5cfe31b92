//go:build !integration

package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"agent-compute-platform/internal/domain"
	"agent-compute-platform/internal/domain/model"
)

func TestSessionState_PutJob(t *testing.T) {
	ss := model.NewSessionState("conv-1")

	if err := ss.PutJob(model.NewJobRecord("job-1", "b-1", "tool")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	err := ss.PutJob(model.NewJobRecord("job-1", "b-2", "tool"))
	if !errors.Is(err, domain.ErrJobAlreadyTracked) {
		t.Fatalf("expected ErrJobAlreadyTracked, got: %v", err)
	}
}

func TestSessionState_ValidateTranscript(t *testing.T) {
	t.Run("should accept paired calls and responses", func(t *testing.T) {
		ss := model.NewSessionState("conv-1")
		ss.AppendContext(model.ContextEvent{CorrelationID: "c1", Kind: model.ContextCall, Name: "f"})
		ss.AppendContext(model.ContextEvent{CorrelationID: "c1", Kind: model.ContextResponse, Name: "f"})
		if err := ss.ValidateTranscript(); err != nil {
			t.Fatalf("expected valid transcript, got: %v", err)
		}
	})

	t.Run("should flag a call without its response", func(t *testing.T) {
		ss := model.NewSessionState("conv-1")
		ss.AppendContext(model.ContextEvent{CorrelationID: "c1", Kind: model.ContextCall, Name: "f"})
		if !errors.Is(ss.ValidateTranscript(), domain.ErrUnpairedContextCall) {
			t.Fatal("expected ErrUnpairedContextCall")
		}
	})
}

func TestSessionState_RoundTrip(t *testing.T) {
	// Session state lives in a document store between turns; the durable
	// slice, typed result items included, must survive the trip.
	ss := model.NewSessionState("conv-1")
	ss.Username = "alice"
	ss.ToolInvocationCount = 3
	ss.ToolInvocationCountConfirmed = 2
	ss.BeginTurn("inv-9")

	rec := model.NewJobRecord("job-1", "77001", "structure_optimization")
	rec.Status = model.JobStatusSucceeded
	rec.InContext = true
	rec.Result = model.ResultItems{
		model.Scalar{Name: "energy", Value: -1.5},
		model.FileRef{Name: "out", URL: "https://x/out.cif", File: model.DomainFile},
		model.Matrix{Title: "stress", Rows: [][]float64{{1, 0}, {0, 1}}},
		model.ChartRef{Name: "report", URL: "https://x/r.html"},
		model.ErrorItem{Message: "partial output"},
	}
	if err := ss.PutJob(rec); err != nil {
		t.Fatal(err)
	}
	ss.Plan = &model.Plan{Steps: []*model.PlanStep{
		{ToolName: "structure_optimization", Status: model.StepStatusSubmitted, OriginJobID: "job-1"},
	}}

	data, err := json.Marshal(ss)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back model.SessionState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.InvocationID != "" {
		t.Error("the ephemeral invocation id must not be persisted")
	}
	if back.ToolInvocationCount != 3 || back.ToolInvocationCountConfirmed != 2 {
		t.Error("counters lost in the round trip")
	}
	got, ok := back.Job("job-1")
	if !ok {
		t.Fatal("job record lost in the round trip")
	}
	if len(got.Result) != 5 {
		t.Fatalf("expected 5 result items, got %d", len(got.Result))
	}
	if got.Result[0].Kind() != model.ResultKindScalar || got.Result[2].Kind() != model.ResultKindMatrix {
		t.Errorf("result item kinds lost: %+v", got.Result)
	}
	if f, ok := got.Result[1].(model.FileRef); !ok || f.File != model.DomainFile {
		t.Errorf("file kind lost: %+v", got.Result[1])
	}
	if back.Plan.Steps[0].OriginJobID != "job-1" {
		t.Error("plan linkage lost in the round trip")
	}
}
