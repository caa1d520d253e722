// Copyright 2020-2021 Dolthub, Inc.
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

// Package config holds the TOML-driven tunables the optimizer, index
// engine and access gate need that are not part of the algebra itself.
package config

import "github.com/BurntSushi/toml"

// Config is the engine's ambient configuration, loaded once at startup.
type Config struct {
	Optimizer Optimizer `toml:"optimizer"`
	Telemetry Telemetry `toml:"telemetry"`
	Access    Access    `toml:"access"`
}

// Optimizer tunes analyzer behavior.
type Optimizer struct {
	// SmallTableThreshold is the row-count cutoff reorderIndexJoin (§4.4.4)
	// uses to decide whether to swap the probe and index sides of an
	// IndexJoin. spec.md's literal constant is 500.
	SmallTableThreshold int64 `toml:"small_table_threshold"`
}

// Telemetry tunes internal/telemetry's max-observed tables.
type Telemetry struct {
	// ClearIntervalSeconds is how often a caller should invoke
	// telemetry.MaxObserved.Clear() to restart the observation window. 0
	// means never clear automatically.
	ClearIntervalSeconds int64 `toml:"clear_interval_seconds"`
}

// Access holds the default-visibility setting of the auth policy.
type Access struct {
	// DefaultPrivate records whether tables default to Private rather than
	// schema.Public's zero value. No package in this module reads it:
	// auth.OwnerRegistry holds owners only, and each schema.Header's
	// Access is whatever its builder sets.
	DefaultPrivate bool `toml:"default_private"`
}

// Default returns the configuration used when no TOML file is supplied.
func Default() Config {
	return Config{
		Optimizer: Optimizer{SmallTableThreshold: 500},
		Telemetry: Telemetry{ClearIntervalSeconds: 0},
		Access:    Access{DefaultPrivate: false},
	}
}

// Load reads and parses a TOML configuration file, starting from Default()
// so an incomplete file still yields sane values for whatever it omits.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML text directly, starting from Default() like Load.
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
