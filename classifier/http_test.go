package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/config"
)

var testCandidates = []Candidate{
	{Id: "buy", Label: "Comprar", Sample: "quero comprar"},
	{Id: "sell", Label: "Vender", Sample: "quero vender"},
}

func newTestClassifier(endpoint string) *HttpClassifier {
	cfg := config.DefaultClassifier()
	cfg.Endpoint = endpoint
	cfg.TimeoutSeconds = 2
	return NewHttpClassifier(cfg)
}

func serveBody(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassify(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"selected verdict": func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, `{"selected_flow_id":"buy","confidence":0.92,"reason":"mentions buying"}`)
			res := newTestClassifier(srv.URL).Classify(context.Background(), "quero comprar", testCandidates)
			require.NotNil(t, res)
			require.Equal(t, SELECTED, res.Status)
			require.Equal(t, "buy", res.Id)
			require.Equal(t, 0.92, res.Confidence)
		},
		"verdict wrapped in envelope and code fence": func(t *testing.T) {
			fence := "```"
			srv := serveBody(t, http.StatusOK,
				`{"text":"Sure, here it is:\n`+fence+`json\n{\"selected_flow_id\":\"sell\",\"confidence\":0.88}\n`+fence+`"}`)
			res := newTestClassifier(srv.URL).Classify(context.Background(), "quero vender", testCandidates)
			require.NotNil(t, res)
			require.Equal(t, SELECTED, res.Status)
			require.Equal(t, "sell", res.Id)
		},
		"none maps to no_match": func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, `{"selected_flow_id":"none","confidence":0.3}`)
			res := newTestClassifier(srv.URL).Classify(context.Background(), "bom dia", testCandidates)
			require.NotNil(t, res)
			require.Equal(t, NO_MATCH, res.Status)
		},
		"unknown id downgrades to indeterminate": func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, `{"selected_flow_id":"other","confidence":0.95}`)
			res := newTestClassifier(srv.URL).Classify(context.Background(), "oi", testCandidates)
			require.NotNil(t, res)
			require.Equal(t, INDETERMINATE, res.Status)
		},
		"confidence below floor downgrades to indeterminate": func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, `{"selected_flow_id":"buy","confidence":0.4}`)
			res := newTestClassifier(srv.URL).Classify(context.Background(), "talvez comprar", testCandidates)
			require.NotNil(t, res)
			require.Equal(t, INDETERMINATE, res.Status)
			require.Equal(t, "buy", res.Id)
		},
		"malformed body is unavailable": func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, "not json at all")
			require.Nil(t, newTestClassifier(srv.URL).Classify(context.Background(), "oi", testCandidates))
		},
		"server error is unavailable": func(t *testing.T) {
			srv := serveBody(t, http.StatusInternalServerError, "boom")
			require.Nil(t, newTestClassifier(srv.URL).Classify(context.Background(), "oi", testCandidates))
		},
		"timeout is unavailable": func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
			}))
			t.Cleanup(srv.Close)
			cfg := config.DefaultClassifier()
			cfg.Endpoint = srv.URL
			cfg.TimeoutSeconds = 0.05
			require.Nil(t, NewHttpClassifier(cfg).Classify(context.Background(), "oi", testCandidates))
		},
		"no endpoint configured": func(t *testing.T) {
			require.Nil(t, newTestClassifier("").Classify(context.Background(), "oi", testCandidates))
		},
		"no candidates offered": func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, `{"selected_flow_id":"buy","confidence":0.9}`)
			require.Nil(t, newTestClassifier(srv.URL).Classify(context.Background(), "oi", nil))
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestClassifyQuotaCooldown(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	hc := newTestClassifier(srv.URL)
	require.Nil(t, hc.Classify(context.Background(), "oi", testCandidates))
	require.Nil(t, hc.Classify(context.Background(), "oi de novo", testCandidates))
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestParseVerdict(t *testing.T) {
	v, ok := parseVerdict(`prose before {"selected_flow_id":"a","confidence":0.8} prose after`)
	require.True(t, ok)
	require.Equal(t, "a", v.SelectedFlowId)

	v, ok = parseVerdict("```json\n{\"selected_route_id\":\"r1\",\"confidence\":0.7}\n```")
	require.True(t, ok)
	require.Equal(t, "r1", v.SelectedRouteId)

	_, ok = parseVerdict("nothing here")
	require.False(t, ok)
}
