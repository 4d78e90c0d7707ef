package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/member-type-fields/internal/adapters/httpapi"
	memclock "github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/clock"
	memidempotency "github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/idempotency"
	"github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/profilevalues"
	memsettings "github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/settings"
	pgidempotency "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres/idempotency"
	pgprofilevalues "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres/profilevalues"
	pgsettings "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres/settings"
	postgres_testutil "github.com/Overland-East-Bay/member-type-fields/internal/adapters/postgres/testutil"
	redisadapter "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis"
	redisidempotency "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis/idempotency"
	redisprofilevalues "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis/profilevalues"
	redissettings "github.com/Overland-East-Bay/member-type-fields/internal/adapters/redis/settings"
	"github.com/Overland-East-Bay/member-type-fields/internal/adapters/yamlcatalog"
	"github.com/Overland-East-Bay/member-type-fields/internal/app/fieldrules"
	"github.com/Overland-East-Bay/member-type-fields/internal/platform/i18n"
	"github.com/Overland-East-Bay/member-type-fields/internal/platform/sanitize"
	idempotencyport "github.com/Overland-East-Bay/member-type-fields/internal/ports/out/idempotency"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
	settingsport "github.com/Overland-East-Bay/member-type-fields/internal/ports/out/settings"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendRedis    backend = "redis"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "redis":
		return []backend{backendRedis}
	case "all":
		return []backend{backendMemory, backendPostgres, backendRedis}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|redis|all)")
		return nil
	}
}

const catalogYAML = `
version: 1
member_types:
  - id: alumni
    label: Alumni
  - id: staff
    label: Staff
fields:
  - id: 1
    name: Name
  - id: 5
    name: Member type
  - id: 12
    name: Graduation year
  - id: 13
    name: Department
users:
  - id: u-staff
    values:
      5: Staff
`

// stores is the shared persistence of one test cluster; every instance built from it sees the
// same settings but keeps its own in-process rule mirror.
type stores struct {
	settings settingsport.Store
	idem     idempotencyport.Store
	values   profilefields.ValueRepository
	prefix   string
}

func newStores(t *testing.T, b backend) stores {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	// A fresh prefix per cluster keeps runs against shared databases apart.
	prefix := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		return stores{
			settings: pgsettings.NewStore(pool),
			idem:     pgidempotency.NewStore(pool, nil, time.Hour),
			values:   pgprofilevalues.NewRepo(pool),
			prefix:   prefix,
		}
	case backendRedis:
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			t.Skip("REDIS_ADDR not set; skipping redis itest")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := redisadapter.NewClient(ctx, redisadapter.ClientOptions{Addr: addr})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		t.Cleanup(func() { _ = client.Close() })
		return stores{
			settings: redissettings.NewStore(client, "itest:"),
			idem:     redisidempotency.NewStore(client, "itest:", time.Hour),
			values:   redisprofilevalues.NewRepo(client, "itest:"),
			prefix:   prefix,
		}
	case backendMemory:
		return stores{
			settings: memsettings.NewStore(),
			idem:     memidempotency.NewStore(clk, time.Hour),
			values:   profilevalues.NewRepo(),
			prefix:   prefix,
		}
	default:
		t.Fatalf("unknown backend: %s", b)
		return stores{}
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, st stores) *testServer {
	t.Helper()

	cat, err := yamlcatalog.Parse([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	values := st.values
	for _, uv := range cat.UserValues() {
		if err := values.SetFieldValue(context.Background(), uv.User, uv.Field, uv.Value); err != nil {
			t.Fatalf("SetFieldValue: %v", err)
		}
	}
	tr, err := i18n.New("en")
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}

	svc := fieldrules.NewService(fieldrules.Dependencies{
		Settings:    st.settings,
		Prefix:      st.prefix,
		MemberTypes: cat,
		Fields:      cat,
		Values:      values,
		Translator:  tr,
		Sanitizer:   sanitize.NewStripper(),
	})
	api := httpapi.NewServer(svc, st.idem, nil, httpapi.ServerOptions{})

	// Empty default subject: admin requests MUST send X-User-ID, allowing auth-failure coverage.
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{SubjectMiddleware: httpapi.NewSubjectMiddleware("")})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any) (int, []byte, http.Header) {
	t.Helper()
	return s.doJSONWithHeaders(t, method, path, subject, body, nil)
}

func (s *testServer) doJSONWithHeaders(t *testing.T, method string, path string, subject string, body any, hdr map[string]string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set(httpapi.SubjectHeader, subject)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
