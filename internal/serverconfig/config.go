// Package serverconfig loads the upload server's GlobalConfig from Consul
// KV under a leader lock, the same pattern the rest of the log-server
// fleet uses: one process holds the lock and serves traffic, the rest
// block in Lock until it fails over.
package serverconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	consul "github.com/hashicorp/consul/api"
)

// GlobalConfig is the JSON document stored at "<kvpath>/config" in Consul.
// It carries both the ambient server settings and the domain-store
// backend selection.
type GlobalConfig struct {
	Name          string `json:"name"`
	ListenAddress string `json:"listenAddress"`

	// StoreBackend selects which SessionStore/BlobStore implementation
	// cmd/upload-server wires up: "memory" or "external".
	StoreBackend string `json:"storeBackend"`

	S3Bucket                   string `json:"s3Bucket"`
	S3Region                   string `json:"s3Region"`
	S3EndpointUrl              string `json:"s3EndpointUrl"`
	S3StaticCredentialUserName string `json:"s3StaticCredentialUserName"`
	S3StaticCredentialPassword string `json:"s3StaticCredentialPassword"`

	DynamoDBTable    string `json:"dynamoDBTable"`
	DynamoDBRegion   string `json:"dynamoDBRegion"`
	DynamoDBEndpoint string `json:"dynamoDBEndpoint"`

	// ClientSecrets maps an X-AUTH-KEY value to its shared HMAC secret.
	// Stored alongside the rest of GlobalConfig in Consul so that
	// rotating a client's credential is a KV write, not a deploy.
	ClientSecrets map[string]string `json:"clientSecrets"`

	// SessionTTLSeconds bounds how long an open (never-completed) session
	// is kept before the sweeper reaps it.
	SessionTTLSeconds int `json:"sessionTTLSeconds"`
}

// Handle bundles a loaded GlobalConfig with the Consul lock that must be
// held for as long as this process serves traffic.
type Handle struct {
	Config GlobalConfig
	lock   *consul.Lock
}

// Release gives up the Consul lock. Any other process blocked in Load for
// the same kvpath can then acquire it.
func (h *Handle) Release() error {
	return h.lock.Unlock()
}

// Load acquires the leader lock at "<kvpath>/lock" and then fetches the
// GlobalConfig document stored at "<kvpath>/config", both against the
// Consul agent at consulAddress. It blocks until the lock is acquired.
//
// If the lock is later lost to a session invalidation (e.g. a dropped TCP
// connection to the agent), the process can no longer be sure it's safe
// to keep serving and exits fast via log.Fatal, matching the rest of the
// fleet's fail-fast-on-split-brain posture.
func Load(ctx context.Context, kvpath, consulAddress string) (*Handle, error) {
	lockpath := kvpath + "/lock"
	configpath := kvpath + "/config"

	cfg := consul.DefaultConfig()
	cfg.Address = consulAddress
	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("serverconfig: new consul client: %w", err)
	}

	lock, err := client.LockKey(lockpath)
	if err != nil {
		return nil, fmt.Errorf("serverconfig: lock key: %w", err)
	}

	eStopChan, err := lock.Lock(ctx.Done())
	if err != nil {
		return nil, fmt.Errorf("serverconfig: acquire lock: %w", err)
	}
	if eStopChan == nil {
		return nil, fmt.Errorf("serverconfig: lock acquisition cancelled")
	}

	go func() {
		<-eStopChan
		log.Fatal("serverconfig: consul lock lost, exiting now")
	}()

	interruptChan := make(chan os.Signal, 1)
	signal.Notify(interruptChan, os.Interrupt)
	go func() {
		<-interruptChan
		log.Println("serverconfig: interrupted, releasing lock")
		lock.Unlock()
	}()

	kv := client.KV()
	queryOpts := (&consul.QueryOptions{RequireConsistent: true}).WithContext(ctx)
	rawConfig, _, err := kv.Get(configpath, queryOpts)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("serverconfig: fetch config: %w", err)
	}
	if rawConfig == nil {
		lock.Unlock()
		return nil, fmt.Errorf("serverconfig: no configuration found at %s", configpath)
	}

	var gc GlobalConfig
	if err := json.Unmarshal(rawConfig.Value, &gc); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("serverconfig: unmarshal config: %w", err)
	}

	return &Handle{Config: gc, lock: lock}, nil
}
