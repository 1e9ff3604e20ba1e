package provider_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"datachat/model"
	"datachat/provider"
	"datachat/provider/testutil"
)

// TestProviderContract defines the contract every provider must satisfy.
// Live backends need a server, so the suite runs against the test doubles.
func TestProviderContract(t *testing.T) {
	tests := []struct {
		name     string
		provider model.Provider
	}{
		{"Mock", testutil.NewMockProvider("test-model")},
		{"Scripted", testutil.NewScriptedProvider([]string{"Hel", "lo"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Run("StreamCompletion", func(t *testing.T) {
				testProviderStream(t, tt.provider)
			})
			t.Run("CompleteOnce", func(t *testing.T) {
				testProviderCompleteOnce(t, tt.provider)
			})
			t.Run("ModelManagement", func(t *testing.T) {
				testProviderModelManagement(t, tt.provider)
			})
			t.Run("HealthCheck", func(t *testing.T) {
				testProviderHealthCheck(t, tt.provider)
			})
		})
	}
}

func testProviderStream(t *testing.T, p model.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var received strings.Builder
	err := p.StreamCompletion(ctx, testutil.SingleUserMessage("Hello"), func(chunk string) error {
		received.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Errorf("StreamCompletion() error = %v", err)
	}
	if received.Len() == 0 {
		t.Error("StreamCompletion() did not receive any chunks")
	}
}

func testProviderCompleteOnce(t *testing.T, p model.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := p.CompleteOnce(ctx, testutil.SingleUserMessage("Hello"))
	if err != nil {
		t.Errorf("CompleteOnce() error = %v", err)
	}
	if reply == "" {
		t.Error("CompleteOnce() returned empty reply")
	}
}

func testProviderModelManagement(t *testing.T, p model.Provider) {
	if p.GetModel() == "" {
		t.Error("GetModel() returned empty string")
	}

	newModel := "new-test-model"
	p.SetModel(newModel)

	if got := p.GetModel(); got != newModel {
		t.Errorf("After SetModel(%s), GetModel() = %s", newModel, got)
	}
}

func testProviderHealthCheck(t *testing.T, p model.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestScriptedProviderStopsOnCallbackError(t *testing.T) {
	p := testutil.NewScriptedProvider([]string{"a", "b", "c"})
	stop := errors.New("stop")

	var seen int
	err := p.StreamCompletion(context.Background(), testutil.EmptyMessages(), func(chunk string) error {
		seen++
		if chunk == "b" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("error = %v, want %v", err, stop)
	}
	if seen != 2 {
		t.Errorf("callback called %d times, want 2", seen)
	}
}

func TestScriptedProviderRepeatsLastTurn(t *testing.T) {
	p := testutil.NewScriptedProvider([]string{"one"}, []string{"two"})

	var got []string
	for range 3 {
		_ = p.StreamCompletion(context.Background(), testutil.TestMessages(), func(chunk string) error {
			got = append(got, chunk)
			return nil
		})
	}

	want := []string{"one", "two", "two"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("chunks = %v, want %v", got, want)
	}
	if n := len(p.Calls()); n != 3 {
		t.Errorf("recorded %d calls, want 3", n)
	}
}

func TestProvidersImplementInterface(t *testing.T) {
	var _ model.Provider = (*testutil.MockProvider)(nil)
	var _ model.Provider = (*testutil.ScriptedProvider)(nil)
	var _ model.Provider = (*provider.OllamaProvider)(nil)
	var _ model.Provider = (*provider.OpenAIProvider)(nil)
	var _ model.Provider = (*provider.OpenRouterProvider)(nil)
	var _ model.Provider = (*provider.AnthropicProvider)(nil)
}
