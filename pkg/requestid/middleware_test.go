package requestid_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/togglekit/pkg/logger"
	"github.com/dmitrymomot/togglekit/pkg/requestid"
)

func serve(t *testing.T, header string) (seen string, rec *httptest.ResponseRecorder) {
	t.Helper()

	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("KeepsValidID", func(t *testing.T) {
		t.Parallel()

		for _, id := range []string{"abc123", "ABC-123_xyz", "550e8400-e29b-41d4-a716-446655440000"} {
			seen, rec := serve(t, id)
			assert.Equal(t, id, seen)
			assert.Equal(t, id, rec.Header().Get(requestid.Header))
		}
	})

	t.Run("ReplacesMissingOrUnsafeID", func(t *testing.T) {
		t.Parallel()

		for _, id := range []string{"", "a b", "x/y", "<script>", strings.Repeat("a", 129)} {
			seen, rec := serve(t, id)
			require.NotEqual(t, id, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "generated id %q", seen)
			assert.Equal(t, seen, rec.Header().Get(requestid.Header))
		}
	})
}

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := requestid.WithContext(context.Background(), "req-1")
	assert.Equal(t, "req-1", requestid.FromContext(ctx))
	assert.Empty(t, requestid.FromContext(context.Background()))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	log.InfoContext(requestid.WithContext(context.Background(), "req-42"), "evaluated")
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)

	buf.Reset()
	log.InfoContext(context.Background(), "evaluated")
	assert.NotContains(t, buf.String(), "request_id")
}
