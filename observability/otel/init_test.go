package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc , broken, =nokey, tenant=pets ")
	if len(got) != 2 || got["api-key"] != "abc" || got["tenant"] != "pets" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestInitWithoutExporters(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected service name to be required")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "pettraced"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if Tracer() == nil {
		t.Fatalf("expected a tracer")
	}
}
