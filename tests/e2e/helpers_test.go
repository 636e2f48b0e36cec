package e2e

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// baseURL is where the sandbox API listens. Override with SANDBOX_API_URL.
var baseURL = "http://localhost:8080"

// dashboardURL and sandboxURL are the two authenticated surfaces, derived
// from baseURL in TestMain.
var (
	dashboardURL string
	sandboxURL   string
)

func TestMain(m *testing.M) {
	if os.Getenv("SANDBOX_E2E") == "" {
		fmt.Println("Skipping e2e tests (set SANDBOX_E2E=1 to run)")
		os.Exit(0)
	}
	if u := os.Getenv("SANDBOX_API_URL"); u != "" {
		baseURL = u
	}
	dashboardURL = baseURL + "/api/v1"
	sandboxURL = baseURL + "/sandbox/v1"
	os.Exit(m.Run())
}

// callbackHost is the address the worker uses to reach webhook receivers
// the tests spin up. Defaults to loopback, which works when the worker
// runs on this machine; point SANDBOX_E2E_CALLBACK_HOST elsewhere when it
// does not.
func callbackHost() string {
	if h := os.Getenv("SANDBOX_E2E_CALLBACK_HOST"); h != "" {
		return h
	}
	return "127.0.0.1"
}

// sessionHeaders returns the headers for the dashboard surface.
func sessionHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// keyHeaders returns the headers for the sandbox surface.
func keyHeaders(publicKey, secret string) map[string]string {
	return map[string]string{
		"x-sandbox-key":    publicKey,
		"x-sandbox-secret": secret,
	}
}

// httpDo performs a JSON HTTP request with the given headers and returns
// the response and body string.
func httpDo(t *testing.T, method, url string, body interface{}, headers map[string]string) (*http.Response, string) {
	t.Helper()
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal %s body: %v", method, err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("create %s request %s: %v", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

// httpPostRaw posts body bytes verbatim. Signature checks cover the exact
// bytes on the wire, so these tests must not round-trip through
// json.Marshal.
func httpPostRaw(t *testing.T, url string, body []byte, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create POST request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func httpGet(t *testing.T, url string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	return httpDo(t, http.MethodGet, url, nil, headers)
}

func httpPost(t *testing.T, url string, body interface{}, headers map[string]string) (*http.Response, string) {
	t.Helper()
	return httpDo(t, http.MethodPost, url, body, headers)
}

func httpPut(t *testing.T, url string, body interface{}, headers map[string]string) (*http.Response, string) {
	t.Helper()
	return httpDo(t, http.MethodPut, url, body, headers)
}

func httpPatch(t *testing.T, url string, body interface{}, headers map[string]string) (*http.Response, string) {
	t.Helper()
	return httpDo(t, http.MethodPatch, url, body, headers)
}

func httpDelete(t *testing.T, url string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	return httpDo(t, http.MethodDelete, url, nil, headers)
}

// parseJSON unmarshals a JSON response body into a map.
func parseJSON(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// parsePaginatedItems extracts the "items" array from a paginated response.
func parsePaginatedItems(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	wrapper := parseJSON(t, body)
	items, ok := wrapper["items"]
	if !ok {
		t.Fatalf("paginated response missing 'items' key: %s", body)
	}
	raw, _ := json.Marshal(items)
	var result []map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("parse paginated items: %v", err)
	}
	return result
}

// randomEmail returns a unique address so parallel runs never collide on
// the accounts table's unique constraint.
func randomEmail() string {
	return fmt.Sprintf("e2e-%d@paysandbox.test", time.Now().UnixNano())
}

const testPassword = "correct-horse-battery-e2e"

// createTestAccount signs up a fresh account and logs it in. Returns the
// session token, account ID, and email.
func createTestAccount(t *testing.T) (token, accountID, email string) {
	t.Helper()

	email = randomEmail()
	resp, body := httpPost(t, dashboardURL+"/signup", map[string]interface{}{
		"email":    email,
		"password": testPassword,
	}, nil)
	require.Equal(t, 201, resp.StatusCode, "signup: %s", body)

	resp, body = httpPost(t, dashboardURL+"/login", map[string]interface{}{
		"email":    email,
		"password": testPassword,
	}, nil)
	require.Equal(t, 200, resp.StatusCode, "login: %s", body)

	login := parseJSON(t, body)
	token, _ = login["token"].(string)
	require.NotEmpty(t, token, "login returned no token: %s", body)
	account, _ := login["account"].(map[string]interface{})
	accountID, _ = account["id"].(string)
	require.NotEmpty(t, accountID, "login returned no account id: %s", body)

	return token, accountID, email
}

// createTestKey issues an API key for the session and registers cleanup.
// Returns the key ID, public key, and the one-time secret.
func createTestKey(t *testing.T, token, keyType string, permissions []string) (keyID, publicKey, secret string) {
	t.Helper()

	reqBody := map[string]interface{}{"key_type": keyType}
	if permissions != nil {
		reqBody["permissions"] = permissions
	}
	resp, body := httpPost(t, dashboardURL+"/api-keys", reqBody, sessionHeaders(token))
	require.Equal(t, 201, resp.StatusCode, "create api key: %s", body)

	key := parseJSON(t, body)
	keyID, _ = key["id"].(string)
	publicKey, _ = key["public_key"].(string)
	secret, _ = key["secret"].(string)
	require.NotEmpty(t, keyID)
	require.NotEmpty(t, publicKey)
	require.NotEmpty(t, secret, "create response must include the one-time secret: %s", body)

	t.Cleanup(func() {
		httpDelete(t, dashboardURL+"/api-keys/"+keyID, sessionHeaders(token))
	})
	return keyID, publicKey, secret
}

// createTestEndpoint registers a webhook endpoint and registers cleanup.
// Returns the endpoint ID and the one-time signing secret.
func createTestEndpoint(t *testing.T, token, url string, events []string) (endpointID, secret string) {
	t.Helper()

	resp, body := httpPost(t, dashboardURL+"/webhook-endpoints", map[string]interface{}{
		"url":    url,
		"events": events,
	}, sessionHeaders(token))
	require.Equal(t, 201, resp.StatusCode, "create endpoint: %s", body)

	ep := parseJSON(t, body)
	endpointID, _ = ep["id"].(string)
	secret, _ = ep["secret"].(string)
	require.NotEmpty(t, endpointID)
	require.NotEmpty(t, secret, "create response must include the one-time secret: %s", body)

	t.Cleanup(func() {
		httpDelete(t, dashboardURL+"/webhook-endpoints/"+endpointID, sessionHeaders(token))
	})
	return endpointID, secret
}

// signPayload computes the hex HMAC-SHA-256 signature the delivery and
// verification paths use.
func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// listDeliveries fetches the delivery log for an endpoint.
func listDeliveries(t *testing.T, token, endpointID string) []map[string]interface{} {
	t.Helper()
	resp, body := httpGet(t, dashboardURL+"/webhook-endpoints/"+endpointID+"/deliveries", sessionHeaders(token))
	require.Equal(t, 200, resp.StatusCode, "list deliveries: %s", body)
	wrapper := parseJSON(t, body)
	raw, _ := json.Marshal(wrapper["deliveries"])
	var deliveries []map[string]interface{}
	if err := json.Unmarshal(raw, &deliveries); err != nil {
		t.Fatalf("parse deliveries: %v\nbody: %s", err, body)
	}
	return deliveries
}

// waitForDeliveryStatus polls the endpoint's delivery log until the named
// delivery reaches the wanted status or the timeout elapses.
func waitForDeliveryStatus(t *testing.T, token, endpointID, deliveryID, wantStatus string, timeout time.Duration) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var lastStatus string

	for time.Now().Before(deadline) {
		for _, d := range listDeliveries(t, token, endpointID) {
			if id, _ := d["id"].(string); id != deliveryID {
				continue
			}
			status, _ := d["status"].(string)
			lastStatus = status
			if status == wantStatus {
				return d
			}
		}
		time.Sleep(time.Second)
	}

	t.Fatalf("timed out waiting for delivery %s to reach %q (last status=%q)", deliveryID, wantStatus, lastStatus)
	return nil
}
