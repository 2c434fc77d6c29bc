package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"

	"vaultseal.dev/internal/auth"
	"vaultseal.dev/internal/fileservice"
	"vaultseal.dev/internal/httpapi"
	"vaultseal.dev/internal/serverconfig"
	"vaultseal.dev/internal/store"
	"vaultseal.dev/internal/store/ddbsession"
	"vaultseal.dev/internal/store/s3blob"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

func main() {
	shutdownOtel := configureOtel()
	defer shutdownOtel()

	kvpath := flag.String("kv-path", "", "Consul KV path")
	consulAddress := flag.String("consul-address", "localhost:8500", "Consul agent address")
	flag.Parse()

	if *kvpath == "" {
		fmt.Println("Error: -kv-path flag must be set")
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	handle, err := serverconfig.Load(ctx, *kvpath, *consulAddress)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	defer handle.Release()
	gc := handle.Config

	listener, err := net.Listen("tcp", gc.ListenAddress)
	if err != nil {
		log.Fatalf("failed to bind to %s: %v", gc.ListenAddress, err)
	}

	sessions, blobs := buildStores(ctx, gc)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	ttl := time.Duration(gc.SessionTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	go serverconfig.NewSweeper(sessions, ttl, time.Minute).Run(sweepCtx)

	svc := fileservice.New(sessions, blobs)
	server := httpapi.New(svc)

	lookup := func(key string) (string, bool) {
		secret, ok := gc.ClientSecrets[key]
		return secret, ok
	}
	handler := auth.New(lookup).Wrap(server.Handler())

	log.Printf("serving %s on %s", gc.Name, gc.ListenAddress)
	log.Fatal(http.Serve(listener, handler))
}

func buildStores(ctx context.Context, gc serverconfig.GlobalConfig) (store.SessionStore, store.BlobStore) {
	if gc.StoreBackend != "external" {
		return store.NewInMemorySessionStore(), store.NewInMemoryBlobStore()
	}

	blobs := s3blob.New(gc.S3Region, gc.S3Bucket, gc.S3EndpointUrl, gc.S3StaticCredentialUserName, gc.S3StaticCredentialPassword)

	ddbCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(gc.S3StaticCredentialUserName, gc.S3StaticCredentialPassword, ""),
		Region:      gc.DynamoDBRegion,
	}
	ddbClient := dynamodb.NewFromConfig(ddbCfg, func(o *dynamodb.Options) {
		if gc.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(gc.DynamoDBEndpoint)
		}
	})
	sessions := ddbsession.New(ddbClient, gc.DynamoDBTable)

	return sessions, blobs
}

func configureOtel() func() {
	ctx := context.Background()

	client := otlptracegrpc.NewClient()
	exp, err := otlptrace.New(ctx, client)
	if err != nil {
		log.Fatalf("failed to initialize exporter: %v", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return func() {
		_ = exp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
	}
}
