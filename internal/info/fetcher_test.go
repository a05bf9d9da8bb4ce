package info

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"findb/internal/domain"
)

type fakeProvider struct {
	fail  map[string]bool
	calls []string
}

func (p *fakeProvider) Info(_ context.Context, symbol string) (*domain.SymbolInfo, error) {
	p.calls = append(p.calls, symbol)
	if p.fail[symbol] {
		return nil, fmt.Errorf("no info for %s", symbol)
	}
	return &domain.SymbolInfo{Symbol: symbol + ".X", Exchange: "NMS"}, nil
}

type memSink struct {
	infos []domain.SymbolInfo
}

func (s *memSink) AppendInfo(_ context.Context, infos []domain.SymbolInfo) error {
	s.infos = append(s.infos, infos...)
	return nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestFetcher_Run(t *testing.T) {
	p := &fakeProvider{fail: map[string]bool{"BAD": true}}
	sink := &memSink{}
	f := NewFetcher(Options{Provider: p, Sink: sink, Logger: quietLogger()})

	res, err := f.Run(context.Background(), []string{"AAPL", "BAD", "MSFT"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Fetched != 2 || res.Errors != 1 {
		t.Errorf("result = %+v, want 2 fetched 1 error", res)
	}
	if len(sink.infos) != 2 || sink.infos[0].Symbol != "AAPL" {
		t.Errorf("sink = %+v, want requested symbols as key", sink.infos)
	}
}

func TestFetcher_ConsecutiveErrorCeiling(t *testing.T) {
	fail := map[string]bool{}
	var symbols []string
	for i := 0; i < 5; i++ {
		s := fmt.Sprintf("E%d", i)
		fail[s] = true
		symbols = append(symbols, s)
	}
	symbols = append(symbols, "OK")

	p := &fakeProvider{fail: fail}
	f := NewFetcher(Options{Provider: p, Sink: &memSink{}, MaxErrors: 3, Logger: quietLogger()})

	res, err := f.Run(context.Background(), symbols)
	if !errors.Is(err, ErrTooManyErrors) {
		t.Fatalf("err = %v, want ErrTooManyErrors", err)
	}
	if res.Errors != 4 {
		t.Errorf("Errors = %d, want 4", res.Errors)
	}
	if len(p.calls) != 4 {
		t.Errorf("calls = %v, want abort after the 4th failure", p.calls)
	}
}

func TestFetcher_SuccessResetsErrorCount(t *testing.T) {
	p := &fakeProvider{fail: map[string]bool{"E1": true, "E2": true, "E3": true, "E4": true}}
	f := NewFetcher(Options{Provider: p, Sink: &memSink{}, MaxErrors: 2, Logger: quietLogger()})

	res, err := f.Run(context.Background(), []string{"E1", "E2", "OK", "E3", "E4", "OK2"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Errors != 4 || res.Fetched != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestFetcher_EarlyExit(t *testing.T) {
	p := &fakeProvider{}
	calls := 0
	f := NewFetcher(Options{
		Provider:  p,
		Sink:      &memSink{},
		EarlyExit: func() bool { calls++; return calls >= 2 },
		Logger:    quietLogger(),
	})

	res, err := f.Run(context.Background(), []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Fetched != 2 || !res.Stopped {
		t.Errorf("result = %+v, want 2 fetched and stopped", res)
	}
}

func TestFetcher_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(Options{Provider: &fakeProvider{}, Sink: &memSink{}, Logger: quietLogger()})
	_, err := f.Run(ctx, []string{"A"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
