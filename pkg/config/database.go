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

// DatabaseDriver identifies a SQL driver.
type DatabaseDriver string

const (
	DriverPostgres DatabaseDriver = "postgres"
	DriverMySQL    DatabaseDriver = "mysql"
	DriverSQLite   DatabaseDriver = "sqlite"
)

// DatabaseConfig configures the relational store used for conversation
// history, summaries, the embedding cache, and (on postgres) the pgvector
// chunk table.
type DatabaseConfig struct {
	// Driver selects the SQL driver (postgres, mysql, sqlite).
	Driver DatabaseDriver `yaml:"driver,omitempty" json:"driver,omitempty"`

	// Host of the database server.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port of the database server.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Database name, or file path for sqlite.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Username for authentication.
	Username string `yaml:"username,omitempty" json:"username,omitempty"`

	// Password for authentication.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// SSLMode for postgres connections.
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	// MaxConns caps open connections.
	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty"`

	// MaxIdle caps idle connections.
	MaxIdle int `yaml:"max_idle,omitempty" json:"max_idle,omitempty"`
}

// SetDefaults fills driver-appropriate defaults.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == DriverSQLite && c.Database == "" {
		c.Database = "mrvn.db"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		switch c.Driver {
		case DriverPostgres:
			c.Port = 5432
		case DriverMySQL:
			c.Port = 3306
		}
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
}

// Validate checks the connection parameters.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Driver != DriverSQLite && c.Username == "" {
		return fmt.Errorf("username is required for driver %q", c.Driver)
	}
	return nil
}

// DriverName returns the database/sql driver name to open with.
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == DriverSQLite {
		return "sqlite3"
	}
	return string(c.Driver)
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
	case DriverMySQL:
		// multiStatements lets migration files run in one Exec.
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			c.Username, c.Password, c.Host, c.Port, c.Database)
	case DriverSQLite:
		return c.Database
	default:
		return ""
	}
}
