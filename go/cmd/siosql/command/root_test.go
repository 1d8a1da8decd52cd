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

package command

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siodb/siodb-go-driver/go/siodb"
	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
	"github.com/siodb/siodb-go-driver/go/siodb/fakesiodb"
	"github.com/siodb/siodb-go-driver/go/sqltypes"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "siosql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func addPing(t *testing.T, db *fakesiodb.DB) {
	t.Helper()
	db.AddQuery("SELECT 1", &fakesiodb.Result{
		Columns: []clientproto.ColumnDescription{col("1", sqltypes.Int32)},
		Rows:    [][]sqltypes.Value{{sqltypes.NewInt32(1)}},
	})
}

func TestServerFromConfigFile(t *testing.T) {
	db := fakesiodb.New(t)
	defer db.Close()
	addPing(t, db)

	config := writeConfig(t, fmt.Sprintf("server: %s\n", db.URI()))
	out, _, err := runSiosql(t, "", "--config", config, "-e", "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n1\n", out)
}

func TestServerFromEnvironment(t *testing.T) {
	db := fakesiodb.New(t)
	defer db.Close()
	addPing(t, db)

	t.Setenv("SIOSQL_SERVER", db.URI())
	out, _, err := runSiosql(t, "", "-e", "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n1\n", out)
}

func TestServerFlagBeatsConfig(t *testing.T) {
	db := fakesiodb.New(t)
	defer db.Close()
	addPing(t, db)

	// The config points nowhere; the flag must win without a dial
	// attempt on the config's address.
	config := writeConfig(t, "server: siodb://nobody@192.0.2.1:1?connect_timeout=1s\n")
	out, _, err := runSiosql(t, "", "--config", config, "--server", db.URI(), "-e", "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n1\n", out)
}

func TestPositionalServerURI(t *testing.T) {
	db := fakesiodb.New(t)
	defer db.Close()
	addPing(t, db)

	out, _, err := runSiosql(t, "", db.URI(), "-e", "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n1\n", out)
}

func TestIdentityFileFlagOverride(t *testing.T) {
	db := fakesiodb.New(t)
	defer db.Close()
	addPing(t, db)

	// Strip the identity_file option off the URI and pass it as a flag
	// instead.
	uri := fmt.Sprintf("siodb://%s@%s", db.User(), db.Addr())
	out, _, err := runSiosql(t, "", "-s", uri, "-i", db.IdentityFile(), "-e", "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n1\n", out)
}

func TestUserFlagOverride(t *testing.T) {
	db := fakesiodb.New(t)
	defer db.Close()

	_, _, err := runSiosql(t, "", "-s", db.URI(), "-u", "stranger", "-e", "SELECT 1")
	require.Error(t, err)
	var authErr *siodb.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "stranger", authErr.User)
}

func TestBadServerURI(t *testing.T) {
	_, _, err := runSiosql(t, "", "-s", "http://localhost", "-e", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scheme "http"`)
}

func TestMissingConfigFile(t *testing.T) {
	_, _, err := runSiosql(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "-e", "SELECT 1")
	require.Error(t, err)
}
