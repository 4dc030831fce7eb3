package webapp

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/benelink/benelink-go/internal/config"
)

// fakeAPI records what the fake authorization and resource server received.
type fakeAPI struct {
	mu         sync.Mutex
	tokenCalls int
	tokenForm  url.Values
	lastQuery  url.Values
}

func (f *fakeAPI) snapshot() (int, url.Values, url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls, f.tokenForm, f.lastQuery
}

func newFakeAPI(t *testing.T) (*httptest.Server, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}

	bundleHandler := func(total int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			api.mu.Lock()
			api.lastQuery = r.URL.Query()
			api.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"resourceType":"Bundle","type":"searchset","total":%d,"entry":[{"resource":{"resourceType":"Resource","id":"1"}}]}`, total)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/o/token/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		api.mu.Lock()
		api.tokenCalls++
		api.tokenForm = r.PostForm
		api.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok_webapp","expires_in":3600,"token_type":"Bearer","scope":["patient/Patient.read"],"refresh_token":"refresh_webapp","patient":"-20140000008325"}`))
	})
	mux.HandleFunc("/v2/connect/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"abc123","name":"Jane Doe","given_name":"Jane","family_name":"Doe","patient":"-20140000008325"}`))
	})
	mux.HandleFunc("/v2/fhir/Patient/", bundleHandler(1))
	mux.HandleFunc("/v2/fhir/Coverage/", bundleHandler(4))
	mux.HandleFunc("/v2/fhir/ExplanationOfBenefit/", bundleHandler(32))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, api
}

func testWebAppConfig(baseURL string) *config.Config {
	return &config.Config{
		BaseURL:      baseURL,
		Version:      "2",
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		CallbackURL:  "http://localhost:9480/callback",
		WebAppAddr:   ":0",
	}
}

func newTestServer(t *testing.T, baseURL string) *Server {
	t.Helper()
	server, err := New(testWebAppConfig(baseURL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return server
}

func doRequest(s *Server, method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			return cookie
		}
	}
	t.Fatalf("response did not set the %s cookie", sessionCookieName)
	return nil
}

// connectSession walks a browser session through login and callback and
// returns its cookie.
func connectSession(t *testing.T, s *Server) *http.Cookie {
	t.Helper()

	loginResp := doRequest(s, http.MethodGet, "/login")
	if loginResp.Code != http.StatusFound {
		t.Fatalf("GET /login status = %d, want %d", loginResp.Code, http.StatusFound)
	}
	cookie := sessionCookieFrom(t, loginResp)

	redirect, err := url.Parse(loginResp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("failed to parse authorize redirect: %v", err)
	}
	state := redirect.Query().Get("state")
	if state == "" {
		t.Fatal("authorize redirect carries no state")
	}

	callbackResp := doRequest(s, http.MethodGet, "/callback?code=auth_code_1&state="+url.QueryEscape(state), cookie)
	if callbackResp.Code != http.StatusFound {
		t.Fatalf("GET /callback status = %d, want %d: %s", callbackResp.Code, http.StatusFound, callbackResp.Body.String())
	}
	if location := callbackResp.Header().Get("Location"); location != "/" {
		t.Fatalf("callback redirect = %q, want %q", location, "/")
	}
	return cookie
}

func TestHomeOffersConnect(t *testing.T) {
	upstream, _ := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	resp := doRequest(server, http.MethodGet, "/")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", resp.Code, http.StatusOK)
	}
	if !strings.Contains(resp.Body.String(), "Connect your BeneLink account") {
		t.Errorf("home page is missing the connect prompt:\n%s", resp.Body.String())
	}
	sessionCookieFrom(t, resp)
}

func TestLoginRedirectsToAuthorizeServer(t *testing.T) {
	upstream, _ := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	resp := doRequest(server, http.MethodGet, "/login")
	if resp.Code != http.StatusFound {
		t.Fatalf("GET /login status = %d, want %d", resp.Code, http.StatusFound)
	}

	location := resp.Header().Get("Location")
	if !strings.HasPrefix(location, upstream.URL+"/v2/o/authorize?") {
		t.Fatalf("redirect = %q, want prefix %q", location, upstream.URL+"/v2/o/authorize?")
	}
	redirect, err := url.Parse(location)
	if err != nil {
		t.Fatalf("failed to parse redirect: %v", err)
	}
	query := redirect.Query()
	if got := query.Get("code_challenge_method"); got != "S256" {
		t.Errorf("code_challenge_method = %q, want %q", got, "S256")
	}
	if query.Get("code_challenge") == "" {
		t.Error("redirect carries no code_challenge")
	}
	if got := query.Get("client_id"); got != "test-client-id" {
		t.Errorf("client_id = %q, want %q", got, "test-client-id")
	}
}

func TestCallbackBindsTokenToSession(t *testing.T) {
	upstream, api := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	cookie := connectSession(t, server)

	calls, form, _ := api.snapshot()
	if calls != 1 {
		t.Fatalf("token endpoint calls = %d, want 1", calls)
	}
	if got := form.Get("code"); got != "auth_code_1" {
		t.Errorf("exchanged code = %q, want %q", got, "auth_code_1")
	}
	if form.Get("code_verifier") == "" {
		t.Error("token request carries no code_verifier")
	}

	resp := doRequest(server, http.MethodGet, "/api/userinfo", cookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /api/userinfo status = %d, want %d: %s", resp.Code, http.StatusOK, resp.Body.String())
	}
	if got := gjson.Get(resp.Body.String(), "patient").String(); got != "-20140000008325" {
		t.Errorf("userinfo patient = %q, want %q", got, "-20140000008325")
	}

	home := doRequest(server, http.MethodGet, "/", cookie)
	if !strings.Contains(home.Body.String(), "-20140000008325") {
		t.Error("home page does not show the connected patient")
	}
}

func TestCallbackWithoutPendingFlow(t *testing.T) {
	upstream, api := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	resp := doRequest(server, http.MethodGet, "/callback?code=x&state=y")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusBadRequest)
	}
	if !strings.Contains(resp.Body.String(), "No authorization is in progress") {
		t.Errorf("unexpected error page:\n%s", resp.Body.String())
	}
	if calls, _, _ := api.snapshot(); calls != 0 {
		t.Errorf("token endpoint calls = %d, want 0", calls)
	}
}

func TestCallbackDenialShowsFriendlyMessage(t *testing.T) {
	upstream, api := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	loginResp := doRequest(server, http.MethodGet, "/login")
	cookie := sessionCookieFrom(t, loginResp)

	resp := doRequest(server, http.MethodGet, "/callback?error=access_denied", cookie)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusBadRequest)
	}
	if !strings.Contains(resp.Body.String(), "cancelled or denied") {
		t.Errorf("denial page is missing the friendly message:\n%s", resp.Body.String())
	}
	if calls, _, _ := api.snapshot(); calls != 0 {
		t.Errorf("token endpoint calls = %d, want 0", calls)
	}
}

func TestCallbackStateMismatch(t *testing.T) {
	upstream, api := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	loginResp := doRequest(server, http.MethodGet, "/login")
	cookie := sessionCookieFrom(t, loginResp)

	resp := doRequest(server, http.MethodGet, "/callback?code=auth_code_1&state=tampered", cookie)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusBadRequest)
	}
	if !strings.Contains(resp.Body.String(), "could not be verified") {
		t.Errorf("mismatch page is missing the friendly message:\n%s", resp.Body.String())
	}
	if calls, _, _ := api.snapshot(); calls != 0 {
		t.Errorf("token endpoint calls = %d, want 0", calls)
	}
}

func TestAPIRejectsUnconnectedSession(t *testing.T) {
	upstream, _ := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	for _, target := range []string{"/api/userinfo", "/api/patient", "/api/coverage", "/api/eob", "/api/summary"} {
		t.Run(target, func(t *testing.T) {
			resp := doRequest(server, http.MethodGet, target)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", resp.Code, http.StatusUnauthorized)
			}
			if got := gjson.Get(resp.Body.String(), "status").String(); got != "error" {
				t.Errorf("status field = %q, want %q", got, "error")
			}
		})
	}
}

func TestResourceEndpointForwardsPaging(t *testing.T) {
	upstream, api := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)
	cookie := connectSession(t, server)

	resp := doRequest(server, http.MethodGet, "/api/eob?_count=5&startIndex=10", cookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.Code, http.StatusOK, resp.Body.String())
	}
	if got := gjson.Get(resp.Body.String(), "total").Int(); got != 32 {
		t.Errorf("total = %d, want 32", got)
	}

	_, _, query := api.snapshot()
	if got := query.Get("_count"); got != "5" {
		t.Errorf("upstream _count = %q, want %q", got, "5")
	}
	if got := query.Get("startIndex"); got != "10" {
		t.Errorf("upstream startIndex = %q, want %q", got, "10")
	}
}

func TestResourceEndpointRejectsBadPaging(t *testing.T) {
	upstream, _ := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)
	cookie := connectSession(t, server)

	for _, target := range []string{"/api/patient?_count=abc", "/api/patient?startIndex=-3"} {
		t.Run(target, func(t *testing.T) {
			resp := doRequest(server, http.MethodGet, target, cookie)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestSummaryAggregatesResources(t *testing.T) {
	upstream, _ := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)
	cookie := connectSession(t, server)

	resp := doRequest(server, http.MethodGet, "/api/summary", cookie)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.Code, http.StatusOK, resp.Body.String())
	}

	body := resp.Body.String()
	if got := gjson.Get(body, "userinfo.name").String(); got != "Jane Doe" {
		t.Errorf("userinfo.name = %q, want %q", got, "Jane Doe")
	}
	if got := gjson.Get(body, "patient.total").Int(); got != 1 {
		t.Errorf("patient.total = %d, want 1", got)
	}
	if got := gjson.Get(body, "coverage.total").Int(); got != 4 {
		t.Errorf("coverage.total = %d, want 4", got)
	}
	if got := gjson.Get(body, "explanationOfBenefit.total").Int(); got != 32 {
		t.Errorf("explanationOfBenefit.total = %d, want 32", got)
	}
}

func TestLogoutDisconnectsSession(t *testing.T) {
	upstream, _ := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)
	cookie := connectSession(t, server)

	resp := doRequest(server, http.MethodGet, "/logout", cookie)
	if resp.Code != http.StatusFound {
		t.Fatalf("GET /logout status = %d, want %d", resp.Code, http.StatusFound)
	}

	apiResp := doRequest(server, http.MethodGet, "/api/userinfo", cookie)
	if apiResp.Code != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want %d", apiResp.Code, http.StatusUnauthorized)
	}
}

func TestUpdateConfigAppliesToNewLogins(t *testing.T) {
	first, _ := newFakeAPI(t)
	second, _ := newFakeAPI(t)
	server := newTestServer(t, first.URL)

	server.UpdateConfig(testWebAppConfig(second.URL))

	resp := doRequest(server, http.MethodGet, "/login")
	location := resp.Header().Get("Location")
	if !strings.HasPrefix(location, second.URL+"/v2/o/authorize?") {
		t.Fatalf("redirect after update = %q, want prefix %q", location, second.URL+"/v2/o/authorize?")
	}
}

func TestUpdateConfigRejectsInvalidConfig(t *testing.T) {
	upstream, _ := newFakeAPI(t)
	server := newTestServer(t, upstream.URL)

	broken := testWebAppConfig(upstream.URL)
	broken.ClientID = ""
	server.UpdateConfig(broken)

	resp := doRequest(server, http.MethodGet, "/login")
	location := resp.Header().Get("Location")
	if !strings.HasPrefix(location, upstream.URL+"/v2/o/authorize?") {
		t.Fatalf("redirect after rejected update = %q, want prefix %q", location, upstream.URL+"/v2/o/authorize?")
	}
}
