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

package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZookeeperProvider reads configuration from a znode and watches it with
// one-shot GetW watches, re-armed after each event.
type ZookeeperProvider struct {
	conn *zk.Conn
	path string
}

var _ Provider = (*ZookeeperProvider)(nil)

// NewZookeeperProvider connects to the given servers and reads path.
func NewZookeeperProvider(servers []string, path string) (*ZookeeperProvider, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}
	return &ZookeeperProvider{conn: conn, path: path}, nil
}

func (p *ZookeeperProvider) Type() Type {
	return TypeZookeeper
}

func (p *ZookeeperProvider) Load(_ context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read znode %s: %w", p.path, err)
	}
	return data, nil
}

func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		for {
			_, _, events, err := p.conn.GetW(p.path)
			if err != nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
					continue
				}
			}

			select {
			case <-ctx.Done():
				return
			case event := <-events:
				switch event.Type {
				case zk.EventNodeDataChanged:
					select {
					case changes <- struct{}{}:
					default:
					}
				case zk.EventNodeDeleted:
					// Wait for the node to come back, then keep watching.
					for {
						exists, _, err := p.conn.Exists(p.path)
						if err == nil && exists {
							break
						}
						select {
						case <-ctx.Done():
							return
						case <-time.After(5 * time.Second):
						}
					}
				case zk.EventNotWatching:
					// Session moved; loop re-arms the watch.
				}
			}
		}
	}()

	return changes, nil
}

func (p *ZookeeperProvider) Close() error {
	p.conn.Close()
	return nil
}
