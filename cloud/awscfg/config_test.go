package awscfg

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go/middleware"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestLoadAppliesOverrides(t *testing.T) {
	cfg, err := Load(context.Background(), Config{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Region != "eu-west-1" {
		t.Fatalf("region: %q", cfg.Region)
	}
	if aws.ToString(cfg.BaseEndpoint) != "http://localhost:4566" {
		t.Fatalf("endpoint: %v", aws.ToString(cfg.BaseEndpoint))
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "id" || creds.SecretAccessKey != "secret" {
		t.Fatalf("credentials: %+v", creds)
	}
}

func TestLoadRejectsPartialCredentials(t *testing.T) {
	_, err := Load(context.Background(), Config{AccessKeyID: "id"})
	if !errors.Is(err, ErrPartialCredentials) {
		t.Fatalf("got %v, want ErrPartialCredentials", err)
	}
}

func TestTracingInstallsMiddlewares(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var opts []func(*middleware.Stack) error
	newTracing(tp, propagation.TraceContext{}).Append(&opts)
	if len(opts) != 3 {
		t.Fatalf("got %d api options, want 3", len(opts))
	}

	stack := middleware.NewStack("test", func() interface{} { return nil })
	for _, opt := range opts {
		if err := opt(stack); err != nil {
			t.Fatalf("install: %v", err)
		}
	}
	if _, ok := stack.Initialize.Get("TokenbusTraceInitialize"); !ok {
		t.Fatal("missing initialize middleware")
	}
	if _, ok := stack.Finalize.Get("TokenbusTraceFinalize"); !ok {
		t.Fatal("missing finalize middleware")
	}
	if _, ok := stack.Deserialize.Get("TokenbusTraceDeserialize"); !ok {
		t.Fatal("missing deserialize middleware")
	}
}
