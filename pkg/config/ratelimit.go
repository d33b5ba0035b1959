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

package config

import (
	"fmt"
)

// RateLimitConfig provides fleet-wide limiter defaults. Agents that set
// rate_limit_enabled/rate_limit_rpm explicitly override these.
type RateLimitConfig struct {
	// Enabled turns the limiter on for agents that do not say otherwise.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// RPM is the default requests-per-minute budget. Zero means unlimited.
	RPM int `yaml:"rpm,omitempty" json:"rpm,omitempty"`
}

func (c *RateLimitConfig) SetDefaults() {}

func (c *RateLimitConfig) Validate() error {
	if c.RPM < 0 {
		return fmt.Errorf("rpm must not be negative, got %d", c.RPM)
	}
	return nil
}
