// Package serversetup implements the one-time bootstrap of a new upload
// server deployment: writing its GlobalConfig (including the initial
// client secret table) to Consul KV so cmd/upload-server can acquire the
// leader lock and load it.
package serversetup

import (
	"encoding/json"
	"fmt"

	consul "github.com/hashicorp/consul/api"

	"vaultseal.dev/internal/serverconfig"
)

// PutConfig marshals gc and writes it to "<consulKey>/config" on the
// Consul agent at consulAddress, the same path serverconfig.Load reads
// from once a server process acquires the leader lock.
func PutConfig(consulAddress, consulKey string, gc serverconfig.GlobalConfig) error {
	body, err := json.Marshal(gc)
	if err != nil {
		return fmt.Errorf("serversetup: marshal config: %w", err)
	}

	cfg := consul.DefaultConfig()
	cfg.Address = consulAddress
	client, err := consul.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("serversetup: new consul client: %w", err)
	}

	kv := client.KV()
	_, err = kv.Put(&consul.KVPair{
		Key:   consulKey + "/config",
		Value: body,
	}, nil)
	if err != nil {
		return fmt.Errorf("serversetup: put config: %w", err)
	}
	return nil
}
