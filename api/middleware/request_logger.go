// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixge/httpsnoop"

	"github.com/vechain/thor-relayer/log"
)

// RequestLoggerMiddleware logs requests while enabled is set. With enabled unset, requests slower than
// slowQueriesThreshold (when non-zero) and, if log5xxErrors is set, server errors are still logged.
func RequestLoggerMiddleware(logger log.Logger, enabled *atomic.Bool, slowQueriesThreshold time.Duration, log5xxErrors bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled.Load() && slowQueriesThreshold == 0 && !log5xxErrors {
				next.ServeHTTP(w, r)
				return
			}

			// the body can only be read once, so hand a copy to the next handler
			var bodyBytes []byte
			if r.Body != nil {
				var err error
				bodyBytes, err = io.ReadAll(r.Body)
				if err != nil {
					logger.Warn("unexpected body read error", "err", err)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}

			m := httpsnoop.CaptureMetrics(next, w, r)

			slow := slowQueriesThreshold > 0 && m.Duration > slowQueriesThreshold
			serverError := log5xxErrors && m.Code >= http.StatusInternalServerError
			if enabled.Load() || slow || serverError {
				logger.Info("api request",
					"durationMs", m.Duration.Milliseconds(),
					"timestamp", time.Now().Unix(),
					"uri", r.URL.String(),
					"method", r.Method,
					"status", m.Code,
					"body", string(bodyBytes),
				)
			}
		})
	}
}
