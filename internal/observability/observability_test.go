package observability

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesOtelInstruments(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, Options{ServiceName: "automl-test"})
	require.NoError(t, err)
	defer tel.Shutdown(ctx)

	counter, err := Meter("automl/test").Int64Counter("automl.trials")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	srv := httptest.NewServer(tel.MetricsHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), "automl_trials")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestConsoleTracingWritesSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tel, err := Init(ctx, Options{ConsoleTracing: true, TraceWriter: &buf})
	require.NoError(t, err)

	_, span := Tracer("automl/test").Start(ctx, "study")
	span.End()
	require.NoError(t, tel.Shutdown(ctx))

	assert.Contains(t, buf.String(), `"Name":"study"`)
}
