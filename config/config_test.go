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

package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relquery/config"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	require := require.New(t)

	cfg := config.Default()
	require.Equal(int64(500), cfg.Optimizer.SmallTableThreshold)
	require.False(cfg.Access.DefaultPrivate)
}

func TestParseOverridesDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := config.Parse(`
[optimizer]
small_table_threshold = 1000

[access]
default_private = true
`)
	require.NoError(err)
	require.Equal(int64(1000), cfg.Optimizer.SmallTableThreshold)
	require.True(cfg.Access.DefaultPrivate)
}

func TestParsePartialFileKeepsOtherDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := config.Parse(`
[telemetry]
clear_interval_seconds = 60
`)
	require.NoError(err)
	require.Equal(int64(500), cfg.Optimizer.SmallTableThreshold)
	require.Equal(int64(60), cfg.Telemetry.ClearIntervalSeconds)
}

func TestParseInvalidTomlFails(t *testing.T) {
	require := require.New(t)

	_, err := config.Parse("not = [valid")
	require.Error(err)
}
