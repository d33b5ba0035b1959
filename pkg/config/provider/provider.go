// Copyright 2025 The mrvn authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package provider abstracts where configuration bytes come from: a local
// file, consul, etcd, or zookeeper. Providers load raw bytes and signal
// changes; parsing stays in the config package.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Type identifies a configuration source kind.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// Provider supplies raw configuration bytes and change notifications.
type Provider interface {
	// Type reports the source kind.
	Type() Type

	// Load reads the current configuration bytes.
	Load(ctx context.Context) ([]byte, error)

	// Watch returns a channel that receives a signal whenever the source
	// changes. The channel closes when watching stops.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases the provider's resources.
	Close() error
}

// New builds a provider from a source URI. Recognized forms:
//
//	config.yaml                          local file
//	consul://host:8500/path/to/key       consul KV
//	etcd://host:2379/path/to/key         etcd
//	zk://host:2181,host:2181/path        zookeeper
func New(source string) (Provider, error) {
	switch {
	case strings.HasPrefix(source, "consul://"):
		addr, key, err := splitSource(strings.TrimPrefix(source, "consul://"))
		if err != nil {
			return nil, fmt.Errorf("invalid consul source %q: %w", source, err)
		}
		return NewConsulProvider(addr, key)

	case strings.HasPrefix(source, "etcd://"):
		addr, key, err := splitSource(strings.TrimPrefix(source, "etcd://"))
		if err != nil {
			return nil, fmt.Errorf("invalid etcd source %q: %w", source, err)
		}
		return NewEtcdProvider([]string{addr}, "/"+key)

	case strings.HasPrefix(source, "zk://"):
		addr, key, err := splitSource(strings.TrimPrefix(source, "zk://"))
		if err != nil {
			return nil, fmt.Errorf("invalid zookeeper source %q: %w", source, err)
		}
		return NewZookeeperProvider(strings.Split(addr, ","), "/"+key)

	default:
		return NewFileProvider(source)
	}
}

func splitSource(rest string) (addr, key string, err error) {
	idx := strings.Index(rest, "/")
	if idx < 1 || idx == len(rest)-1 {
		return "", "", fmt.Errorf("expected host/key")
	}
	return rest[:idx], rest[idx+1:], nil
}
