package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"chatrelay/pkg/chat"
	"chatrelay/pkg/chat/chattest"
	"chatrelay/pkg/store"
	"chatrelay/pkg/token"
)

type gatewayFixture struct {
	client *chattest.Client
	tokens *token.Registry
	srv    *httptest.Server
}

func newGatewayFixture(t *testing.T, cfg Config) *gatewayFixture {
	t.Helper()
	if cfg.RateMax == 0 {
		cfg.RateMax = 100
	}
	if cfg.RateWindow == 0 {
		cfg.RateWindow = time.Minute
	}
	client := chattest.NewClient("bot")
	tokens := token.NewRegistry(client)
	r := mux.NewRouter()
	New(tokens, cfg).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &gatewayFixture{client: client, tokens: tokens, srv: srv}
}

func decodeStatus(t *testing.T, res *http.Response) statusResponse {
	t.Helper()
	defer res.Body.Close()
	var out statusResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSendUnknownToken(t *testing.T) {
	fx := newGatewayFixture(t, Config{})

	res, err := http.Get(fx.srv.URL + "/send/" + token.DeriveContactToken("nobody") + "?msg=hi")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	out := decodeStatus(t, res)
	if out.Status || out.Msg != "token not exists" {
		t.Fatalf("unexpected body: %+v", out)
	}
	if len(fx.client.SaidMessages()) != 0 {
		t.Fatalf("no message must be sent for an unknown token")
	}
}

func TestSendTextByQuery(t *testing.T) {
	fx := newGatewayFixture(t, Config{})
	fx.client.AddContact("c1", "alice")

	res, err := http.Get(fx.srv.URL + "/send/" + token.DeriveContactToken("alice") + "?msg=hello")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	out := decodeStatus(t, res)
	if !out.Status {
		t.Fatalf("expected status true, got %+v", out)
	}
	said := fx.client.SaidTo("c1")
	if len(said) != 1 {
		t.Fatalf("expected one delivery, got %d", len(said))
	}
	if text, ok := said[0].Content.(chat.Text); !ok || string(text) != "hello" {
		t.Fatalf("unexpected content: %#v", said[0].Content)
	}
}

func TestSendRoomByToken(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fx := newGatewayFixture(t, Config{})
	fx.client.AddRoom("r1")
	tok, err := fx.tokens.ResolveOrCreateRoomToken(t.Context(), "r1", "inviter-1")
	if err != nil {
		t.Fatalf("ResolveOrCreateRoomToken: %v", err)
	}

	res, err := http.Get(fx.srv.URL + "/room/" + tok + "?msg=hello")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	out := decodeStatus(t, res)
	if !out.Status {
		t.Fatalf("expected status true, got %+v", out)
	}
	said := fx.client.SaidTo("r1")
	if len(said) != 1 {
		t.Fatalf("expected exactly one room delivery, got %d", len(said))
	}
	if text := said[0].Content.(chat.Text); string(text) != "hello" {
		t.Fatalf("unexpected room message: %q", text)
	}

	res2, err := http.Get(fx.srv.URL + "/room/no-such-token?msg=hello")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	out2 := decodeStatus(t, res2)
	if out2.Status || out2.Msg != "room token not exists" {
		t.Fatalf("unexpected body for unknown room token: %+v", out2)
	}
}

func TestSendBodyProperty(t *testing.T) {
	fx := newGatewayFixture(t, Config{})
	fx.client.AddContact("c1", "alice")
	url := fx.srv.URL + "/send/" + token.DeriveContactToken("alice")

	res, err := http.Post(url+"?property=data.text", "application/json",
		strings.NewReader(`{"data":{"text":"from body"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	out := decodeStatus(t, res)
	if !out.Status {
		t.Fatalf("expected status true, got %+v", out)
	}
	said := fx.client.SaidTo("c1")
	if len(said) != 1 {
		t.Fatalf("expected one delivery, got %d", len(said))
	}
	if text := said[0].Content.(chat.Text); string(text) != "from body" {
		t.Fatalf("unexpected content: %q", text)
	}
}

func TestSendBodyImage(t *testing.T) {
	fx := newGatewayFixture(t, Config{})
	fx.client.AddContact("c1", "alice")
	url := fx.srv.URL + "/send/" + token.DeriveContactToken("alice")

	// bare image bodies post whole, no property needed
	bodies := []string{
		`{"type":"image","url":"https://img.example/a.png"}`,
		`{"msg":{"type":"image","url":"https://img.example/a.png"}}`,
	}
	for _, body := range bodies {
		res, err := http.Post(url, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		out := decodeStatus(t, res)
		if !out.Status {
			t.Fatalf("expected status true for %s, got %+v", body, out)
		}
	}
	said := fx.client.SaidTo("c1")
	if len(said) != len(bodies) {
		t.Fatalf("expected %d deliveries, got %d", len(bodies), len(said))
	}
	for _, s := range said {
		media, ok := s.Content.(chat.Media)
		if !ok || media.URL != "https://img.example/a.png" {
			t.Fatalf("unexpected content: %#v", s.Content)
		}
	}
}

func TestSendBodyFailures(t *testing.T) {
	fx := newGatewayFixture(t, Config{})
	fx.client.AddContact("c1", "alice")
	url := fx.srv.URL + "/send/" + token.DeriveContactToken("alice")

	cases := []struct {
		name, query, body, wantMsg string
	}{
		{"missing property", "?property=data.text", `{"other":"x"}`, "property not found"},
		{"partial path", "?property=data.text", `{"data":"flat"}`, "property not found"},
		{"unsupported type", "", `{"msg":42}`, "unsupported msg type"},
		{"plain body not sendable", "", `{"other":"x"}`, "unsupported msg type"},
		{"invalid json", "", `{not json`, "invalid json body"},
	}
	for _, tc := range cases {
		res, err := http.Post(url+tc.query, "application/json", strings.NewReader(tc.body))
		if err != nil {
			t.Fatalf("%s: POST: %v", tc.name, err)
		}
		out := decodeStatus(t, res)
		if out.Status || out.Msg != tc.wantMsg {
			t.Fatalf("%s: unexpected body: %+v", tc.name, out)
		}
	}
	if len(fx.client.SaidMessages()) != 0 {
		t.Fatalf("failed extraction must not deliver anything")
	}
}

func TestSendQueryWinsOverBody(t *testing.T) {
	fx := newGatewayFixture(t, Config{})
	fx.client.AddContact("c1", "alice")
	url := fx.srv.URL + "/send/" + token.DeriveContactToken("alice")

	res, err := http.Post(url+"?msg=query-wins", "application/json",
		strings.NewReader(`{"msg":"body loses"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	out := decodeStatus(t, res)
	if !out.Status {
		t.Fatalf("expected status true, got %+v", out)
	}
	said := fx.client.SaidTo("c1")
	if len(said) != 1 {
		t.Fatalf("expected one delivery, got %d", len(said))
	}
	if text := said[0].Content.(chat.Text); string(text) != "query-wins" {
		t.Fatalf("expected query parameter to win, got %q", text)
	}
}

func TestSendTransportFailure(t *testing.T) {
	fx := newGatewayFixture(t, Config{})
	fx.client.AddContact("c1", "alice")
	fx.client.SetSayErr(errors.New("bridge down"))

	res, err := http.Get(fx.srv.URL + "/send/" + token.DeriveContactToken("alice") + "?msg=hi")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("transport failures are logical outcomes, got HTTP %d", res.StatusCode)
	}
	out := decodeStatus(t, res)
	if out.Status || out.Error != "bridge down" {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestRateLimitPerToken(t *testing.T) {
	fx := newGatewayFixture(t, Config{RateMax: 10, RateWindow: time.Hour})
	fx.client.AddContact("c1", "alice")
	fx.client.AddContact("c2", "bob")
	aliceURL := fx.srv.URL + "/send/" + token.DeriveContactToken("alice") + "?msg=hi"

	for i := 0; i < 10; i++ {
		res, err := http.Get(aliceURL)
		if err != nil {
			t.Fatalf("GET %d: %v", i, err)
		}
		io.Copy(io.Discard, res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("request %d within limit got %d", i, res.StatusCode)
		}
	}

	res, err := http.Get(aliceURL)
	if err != nil {
		t.Fatalf("GET over limit: %v", err)
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over limit, got %d", res.StatusCode)
	}
	if got := len(fx.client.SaidTo("c1")); got != 10 {
		t.Fatalf("expected 10 deliveries before the limit, got %d", got)
	}

	// limits are per token, not global
	res2, err := http.Get(fx.srv.URL + "/send/" + token.DeriveContactToken("bob") + "?msg=hi")
	if err != nil {
		t.Fatalf("GET other token: %v", err)
	}
	io.Copy(io.Discard, res2.Body)
	res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("other token must not share the budget, got %d", res2.StatusCode)
	}
}
