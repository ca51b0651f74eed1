package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/blueman82/go-counsel/pkg/backend"
	"github.com/blueman82/go-counsel/pkg/domain"
)

type fakeAdapter struct {
	id        string
	response  string
	err       error
	gotModel  string
}

func (f *fakeAdapter) BackendID() string { return f.id }

func (f *fakeAdapter) Invoke(ctx context.Context, prompt, model string, opts backend.InvokeOptions) (string, error) {
	f.gotModel = model
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestNew_SelectsFirstAvailableInPreferenceOrder(t *testing.T) {
	adapters := map[string]backend.Adapter{
		"b": &fakeAdapter{id: "b"},
	}
	s, err := New(adapters, []Preference{{BackendID: "a", Model: "m-a"}, {BackendID: "b", Model: "m-b"}, {BackendID: "c", Model: "m-c"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.chosen.BackendID != "b" {
		t.Fatalf("expected chosen backend b, got %s", s.chosen.BackendID)
	}
	if s.chosen.Model != "m-b" {
		t.Fatalf("expected chosen model m-b, got %s", s.chosen.Model)
	}
}

func TestNew_FailsWhenNoneAvailable(t *testing.T) {
	_, err := New(map[string]backend.Adapter{}, []Preference{{BackendID: "a", Model: "m"}, {BackendID: "b", Model: "m"}})
	if err == nil {
		t.Fatalf("expected error when no preferred backend is configured")
	}
}

func TestSummarize_ParsesJSONResponse(t *testing.T) {
	json := `{"consensus": "We should migrate", "key_agreements": ["cost"], "key_disagreements": ["timeline"], "final_recommendation": "Proceed"}`
	fake := &fakeAdapter{id: "a", response: json}
	adapters := map[string]backend.Adapter{"a": fake}
	s, err := New(adapters, []Preference{{BackendID: "a", Model: "summary-model"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, err := s.Summarize(context.Background(), domain.DeliberateRequest{Question: "q"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Consensus != "We should migrate" {
		t.Fatalf("unexpected consensus: %q", summary.Consensus)
	}
	if summary.FinalRecommendation != "Proceed" {
		t.Fatalf("unexpected recommendation: %q", summary.FinalRecommendation)
	}
	if fake.gotModel != "summary-model" {
		t.Fatalf("expected the pinned summarizer model to be invoked, got %q", fake.gotModel)
	}
}

func TestSummarize_ParsesJSONWrappedInProse(t *testing.T) {
	text := "Here is the summary:\n```json\n{\"consensus\": \"c\", \"final_recommendation\": \"r\"}\n```\nThanks."
	adapters := map[string]backend.Adapter{"a": &fakeAdapter{id: "a", response: text}}
	s, _ := New(adapters, []Preference{{BackendID: "a", Model: "summary-model"}})
	summary, err := s.Summarize(context.Background(), domain.DeliberateRequest{Question: "q"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Consensus != "c" {
		t.Fatalf("unexpected consensus: %q", summary.Consensus)
	}
}

func TestSummarize_AdapterErrorIsSummarizerError(t *testing.T) {
	adapters := map[string]backend.Adapter{"a": &fakeAdapter{id: "a", err: errors.New("boom")}}
	s, _ := New(adapters, []Preference{{BackendID: "a", Model: "summary-model"}})
	_, err := s.Summarize(context.Background(), domain.DeliberateRequest{Question: "q"}, nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestSummarize_InvalidJSONIsError(t *testing.T) {
	adapters := map[string]backend.Adapter{"a": &fakeAdapter{id: "a", response: "not json at all"}}
	s, _ := New(adapters, []Preference{{BackendID: "a", Model: "summary-model"}})
	_, err := s.Summarize(context.Background(), domain.DeliberateRequest{Question: "q"}, nil, nil)
	if err == nil {
		t.Fatalf("expected parse error")
	}
}
