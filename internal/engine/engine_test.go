package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bn2en/internal/device"
)

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{"default", "", false},
		{"ctranslate2", BackendCTranslate2, false},
		{"stub", BackendStub, false},
		{"unknown", "onnx", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend
			f, err := NewFactory(cfg, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFactory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && f == nil {
				t.Error("expected factory")
			}
		})
	}
}

func TestStubFactory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendStub
	f, err := NewFactory(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	eng, err := f(context.Background(), t.TempDir(), device.CPU)
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	defer eng.Close()

	results, err := eng.TranslateBatch(context.Background(), [][]string{{"▁a", "▁b"}}, BatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(results[0].Hypotheses[0], []string{"▁a", "▁b"}) {
		t.Errorf("stub did not echo input: %v", results)
	}
}

func TestStub(t *testing.T) {
	stub := NewStub(&StubConfig{
		Dictionary: map[string][]string{
			"▁আমি ▁ভাত ▁খাই": {"▁I", "▁eat", "▁rice"},
		},
	})

	results, err := stub.TranslateBatch(context.Background(), [][]string{
		{"▁আমি", "▁ভাত", "▁খাই"},
		{"▁unknown"},
	}, BatchOptions{BatchType: BatchTypeTokens, MaxBatchSize: 4096})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !reflect.DeepEqual(results[0].Hypotheses[0], []string{"▁I", "▁eat", "▁rice"}) {
		t.Errorf("dictionary hit = %v", results[0].Hypotheses[0])
	}
	if !reflect.DeepEqual(results[1].Hypotheses[0], []string{"▁unknown"}) {
		t.Errorf("echo = %v", results[1].Hypotheses[0])
	}

	opts := stub.Options()
	if len(opts) != 1 || opts[0].BatchType != BatchTypeTokens || opts[0].MaxBatchSize != 4096 {
		t.Errorf("options not recorded: %+v", opts)
	}
}

func TestStub_ErrorAndClose(t *testing.T) {
	boom := errors.New("boom")
	stub := NewStub(&StubConfig{Err: boom})

	if _, err := stub.TranslateBatch(context.Background(), [][]string{{"x"}}, BatchOptions{}); !errors.Is(err, boom) {
		t.Errorf("expected configured error, got %v", err)
	}

	stub.Close()
	if !stub.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := stub.TranslateBatch(context.Background(), [][]string{{"x"}}, BatchOptions{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
