package cliapp

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thunkgraph/internal/config"
)

func testOpts() ComputeOptions {
	return ComputeOptions{Cfg: config.Config{Concurrency: 2}, Log: zerolog.Nop()}
}

func TestComputeRunsSimpleGraphDocument(t *testing.T) {
	body := `{
		"schema_version":"1.0.0",
		"graph":{
			"nodes":[
				{"id":"a","type":"const","inputs":{"value":2}},
				{"id":"b","type":"const","inputs":{"value":3}},
				{"id":"sum","type":"add","inputs":{"a":"@a","b":"@b"}}
			],
			"edges":[{"from":"a","to":"sum"},{"from":"b","to":"sum"}]
		},
		"metadata":{}
	}`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Compute(ctx, strings.NewReader(body), testOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	sum, ok := res.Results["sum"]
	if !ok {
		t.Fatalf("expected a result for root \"sum\", got %v", res.Results)
	}
	if sum.(float64) != 5.0 {
		t.Fatalf("expected sum 5.0, got %v", sum)
	}
}

func TestComputeRejectsInvalidDocument(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Compute(ctx, strings.NewReader(`{"bogus":true}`), testOpts())
	if err == nil {
		t.Fatal("expected error for invalid document")
	}
}

func TestWriteJSONProducesIndentedOutput(t *testing.T) {
	var buf bytes.Buffer
	res := ComputeResult{Results: map[string]any{"a": 1.0}}
	if err := WriteJSON(&buf, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "\"a\": 1") {
		t.Fatalf("expected indented JSON output, got %q", buf.String())
	}
}
