// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thor-relayer/health"
)

func initAPIServer(t *testing.T, h *health.Health) *httptest.Server {
	router := mux.NewRouter()
	New(h).Mount(router, "/health")

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestHealth(t *testing.T) {
	h := health.New(time.Minute)
	ts := initAPIServer(t, h)

	var status health.Status
	body, code := httpGet(t, ts.URL+"/health")
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, status.Healthy)
	assert.Nil(t, status.Sync.Timestamp)

	h.SyncRound(100, 100)

	body, code = httpGet(t, ts.URL+"/health")
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.Healthy)
	assert.True(t, status.Synced)
	assert.Equal(t, uint64(100), status.Sync.SetHeight)
	assert.NotNil(t, status.Sync.Timestamp)
}
