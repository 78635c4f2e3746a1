package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"photofeed/internal/testutil"

	"github.com/stretchr/testify/require"
)

type response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

func (r response) code(t *testing.T) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	r.decode(t, &body)
	return body.Code
}

type caller struct {
	t       *testing.T
	backend *testutil.Backend
	token   string
	userID  string
}

func anonymous(t *testing.T, b *testutil.Backend) *caller {
	return &caller{t: t, backend: b}
}

func (c *caller) request(method, path string, body any, headers map[string]string) response {
	c.t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if _, raw := body.([]byte); !raw && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.backend.App.Test(req, 5000)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}

func (c *caller) get(path string) response { return c.request(http.MethodGet, path, nil, nil) }

func (c *caller) post(path string, body any) response {
	return c.request(http.MethodPost, path, body, nil)
}

func (c *caller) patch(path string, body any) response {
	return c.request(http.MethodPatch, path, body, nil)
}

func (c *caller) delete(path string) response {
	return c.request(http.MethodDelete, path, nil, nil)
}

type sessionBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	SessionID    string `json:"session_id"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func signUp(t *testing.T, b *testutil.Backend, email, password, username string) response {
	t.Helper()
	return anonymous(t, b).post("/auth/v1/signup", map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"username": username},
	})
}

func signIn(t *testing.T, b *testutil.Backend, email, password string) (*caller, sessionBody) {
	t.Helper()
	resp := anonymous(t, b).post("/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
	var sess sessionBody
	resp.decode(t, &sess)
	return &caller{t: t, backend: b, token: sess.AccessToken, userID: sess.User.ID}, sess
}

// newUser signs up, signs in and creates the profile row.
func newUser(t *testing.T, b *testutil.Backend, username string) *caller {
	t.Helper()
	email := username + "@example.com"
	require.Equal(t, http.StatusCreated, signUp(t, b, email, "secret1", username).Status)
	c, _ := signIn(t, b, email, "secret1")
	resp := c.post("/rest/v1/users", map[string]string{"username": username})
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
	return c
}
