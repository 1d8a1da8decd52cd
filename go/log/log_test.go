/*
Copyright 2021 Siodb GmbH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":  slog.LevelDebug,
		" INFO ": slog.LevelInfo,
		"warn":   slog.LevelWarn,
		"error":  slog.LevelError,
	} {
		got, err := slogLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := slogLevel("verbose")
	require.Error(t, err)
}

func TestSlogHandler(t *testing.T) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	for _, format := range []string{"json", "logfmt", "pretty", "JSON"} {
		h, err := slogHandler(format, opts)
		require.NoError(t, err, format)
		require.NotNil(t, h, format)
	}

	_, err := slogHandler("xml", opts)
	require.Error(t, err)
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	restore := SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer restore()

	InfoS("structured message", "key", "value")
	require.Contains(t, buf.String(), "structured message")
	require.Contains(t, buf.String(), `"key":"value"`)

	require.True(t, Enabled(slog.LevelInfo))
}
