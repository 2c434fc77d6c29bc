package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"vaultseal.dev/internal/serverconfig"
	"vaultseal.dev/internal/serversetup"
)

// clientSecrets parses a repeated "key=secret" flag into a map.
type clientSecrets map[string]string

func (m clientSecrets) String() string {
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (m clientSecrets) Set(value string) error {
	key, secret, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected key=secret, got %q", value)
	}
	m[key] = secret
	return nil
}

func main() {
	consulAddress := flag.String("consul-address", "localhost:8500", "Consul agent address")
	consulKey := flag.String("kv-path", "", "Consul KV path")
	name := flag.String("name", "", "server deployment name")
	listenAddress := flag.String("listen-address", "", "IP and port to listen on")
	storeBackend := flag.String("store-backend", "memory", "\"memory\" or \"external\"")
	s3Bucket := flag.String("s3-bucket", "", "S3 bucket for blob storage (external backend)")
	s3Region := flag.String("s3-region", "", "S3 region (external backend)")
	s3Endpoint := flag.String("s3-endpoint", "", "S3-compatible endpoint URL (external backend)")
	s3User := flag.String("s3-user", "", "S3 static credential username (external backend)")
	s3Password := flag.String("s3-password", "", "S3 static credential password (external backend)")
	ddbTable := flag.String("dynamodb-table", "", "DynamoDB table for session storage (external backend)")
	ddbRegion := flag.String("dynamodb-region", "", "DynamoDB region (external backend)")
	ddbEndpoint := flag.String("dynamodb-endpoint", "", "DynamoDB-compatible endpoint URL (external backend)")
	sessionTTL := flag.Int("session-ttl-seconds", 86400, "how long an open session is kept before the sweeper reaps it")

	secrets := make(clientSecrets)
	flag.Var(&secrets, "client-secret", "key=secret pair, repeatable, for an authorized client")

	flag.Parse()

	if *consulKey == "" {
		fmt.Fprintln(os.Stderr, "Error: -kv-path flag must be set")
		flag.Usage()
		os.Exit(1)
	}
	if *name == "" || *listenAddress == "" {
		fmt.Fprintln(os.Stderr, "Error: -name and -listen-address flags must be set")
		flag.Usage()
		os.Exit(1)
	}

	gc := serverconfig.GlobalConfig{
		Name:                       *name,
		ListenAddress:              *listenAddress,
		StoreBackend:               *storeBackend,
		S3Bucket:                   *s3Bucket,
		S3Region:                   *s3Region,
		S3EndpointUrl:              *s3Endpoint,
		S3StaticCredentialUserName: *s3User,
		S3StaticCredentialPassword: *s3Password,
		DynamoDBTable:              *ddbTable,
		DynamoDBRegion:             *ddbRegion,
		DynamoDBEndpoint:           *ddbEndpoint,
		ClientSecrets:              secrets,
		SessionTTLSeconds:          *sessionTTL,
	}

	if err := serversetup.PutConfig(*consulAddress, *consulKey, gc); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote config for %q (%d client secret(s)) to %s/config\n", *name, len(secrets), *consulKey)
}
