package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selectqoma/eva-voice-bot/internal/auth"
	"github.com/selectqoma/eva-voice-bot/internal/config"
	"github.com/selectqoma/eva-voice-bot/internal/memory"
	"github.com/selectqoma/eva-voice-bot/internal/observability"
	"github.com/selectqoma/eva-voice-bot/internal/rag"
	"github.com/selectqoma/eva-voice-bot/internal/rooms"
	"github.com/selectqoma/eva-voice-bot/internal/session"
	"github.com/selectqoma/eva-voice-bot/internal/store"
	"github.com/selectqoma/eva-voice-bot/internal/voice"
)

type stubSTTSession struct{}

func (stubSTTSession) SendAudio(context.Context, []byte) error { return nil }
func (stubSTTSession) Close() error                            { return nil }

type stubTranscriber struct{}

func (stubTranscriber) Connect(context.Context, voice.AudioFormat) (voice.TranscriberSession, <-chan voice.TranscriptEvent, error) {
	return stubSTTSession{}, make(chan voice.TranscriptEvent), nil
}

type stubCompleter struct{}

func (stubCompleter) Complete(context.Context, []voice.Message, int, float64) (string, error) {
	return "stub reply", nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	return []byte("pcm:" + text), nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dataDir := t.TempDir()
	cfg := &config.Config{
		AllowAnyOrigin:    true,
		HistoryLimit:      20,
		MaxResponseTokens: 40,
		Temperature:       0.5,
		KeepAliveInterval: time.Hour,
		TokenSecret:       "test-secret",
		TokenTTL:          time.Hour,
	}
	cfg.DeepgramAPIKey = "dg-key"
	cfg.GroqAPIKey = "groq-key"

	st, err := store.New(dataDir)
	if err != nil {
		t.Fatalf("store.New error = %v", err)
	}
	retriever := rag.NewRetriever(dataDir, stubEmbedder{})
	pipeline := voice.NewPipeline(stubTranscriber{}, stubCompleter{}, stubSynthesizer{},
		retriever, memory.NewInMemoryStore(), observability.NewMetrics("test"))

	return NewServer(
		cfg,
		pipeline,
		session.NewManager(time.Minute),
		st,
		auth.NewManager(cfg.TokenSecret, cfg.TokenTTL),
		rag.NewIngestor(dataDir, stubEmbedder{}),
		retriever,
		nil,
		observability.NewMetrics("testapi"),
	)
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "ops@example.com",
		"name":     "Ops",
		"password": "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.Token
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t).Routes()
	rec := doJSON(t, handler, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListVoices(t *testing.T) {
	handler := newTestServer(t).Routes()
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/voice/voices", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp voicesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Default != voice.DefaultVoiceKey || len(resp.Voices) == 0 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAuthFlow(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body = %s", rec.Code, rec.Body)
	}
	var me userResponse
	json.Unmarshal(rec.Body.Bytes(), &me)
	if me.Email != "ops@example.com" {
		t.Fatalf("me = %+v", me)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ops@example.com",
		"password": "longenough",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ops@example.com",
		"password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/auth/me", "bogus-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token status = %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	handler := newTestServer(t).Routes()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "longenough",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid email status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "a@example.com", "password": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short password status = %d", rec.Code)
	}
}

func TestCustomersRequireAuth(t *testing.T) {
	handler := newTestServer(t).Routes()
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/customers", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCustomerLifecycle(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token, customerRequest{
		CompanyName: "Acme",
		BotName:     "Ava",
		Personality: "Cheerful and brief.",
		Greeting:    "Welcome to Acme!",
		VoiceID:     "bella",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	var created store.Customer
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatal("created customer has no ID")
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/customers/"+created.ID, token,
		customerRequest{Greeting: "Hello again!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body)
	}

	// The widget config endpoint is public.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+created.ID+"/config", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("config status = %d", rec.Code)
	}
	var cfg map[string]any
	json.Unmarshal(rec.Body.Bytes(), &cfg)
	if cfg["greeting"] != "Hello again!" || cfg["bot_name"] != "Ava" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg["has_knowledge_base"] != false {
		t.Fatalf("has_knowledge_base = %v, want false", cfg["has_knowledge_base"])
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/customers/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/customers/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestCreateCustomerRejectsUnknownVoice(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token, customerRequest{
		CompanyName: "Acme", VoiceID: "mystery",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDocumentIngestAndStatus(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token,
		customerRequest{CompanyName: "Acme"})
	var customer store.Customer
	json.Unmarshal(rec.Body.Bytes(), &customer)

	rec = doJSON(t, handler, http.MethodPost,
		"/api/v1/customers/"+customer.ID+"/documents/ingest-text", token,
		ingestTextRequest{Source: "faq.txt", Text: "We ship worldwide within two days."})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet,
		"/api/v1/customers/"+customer.ID+"/documents/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var status map[string]any
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status["has_knowledge_base"] != true {
		t.Fatalf("status = %+v", status)
	}
	sources, _ := status["sources"].([]any)
	if len(sources) != 1 || sources[0] != "faq.txt" {
		t.Fatalf("sources = %v", sources)
	}

	rec = doJSON(t, handler, http.MethodDelete,
		"/api/v1/customers/"+customer.ID+"/documents", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete documents status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet,
		"/api/v1/customers/"+customer.ID+"/documents/status", token, nil)
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status["has_knowledge_base"] != false {
		t.Fatalf("status after delete = %+v", status)
	}
}

func TestIngestUnknownCustomer(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)
	rec := doJSON(t, handler, http.MethodPost,
		"/api/v1/customers/missing/documents/ingest-text", token,
		ingestTextRequest{Text: "anything"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreateSessionUnconfigured(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sessions", token,
		createSessionRequest{CustomerID: "whatever"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestCreateSessionWithRooms(t *testing.T) {
	daily := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rooms":
			json.NewEncoder(w).Encode(map[string]string{
				"name": "room-1", "url": "https://example.daily.co/room-1",
			})
		case "/meeting-tokens":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer daily.Close()

	s := newTestServer(t)
	s.rooms = rooms.NewClient("daily-key", daily.URL)
	handler := s.Routes()
	token := registerAndLogin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token,
		customerRequest{CompanyName: "Acme"})
	var customer store.Customer
	json.Unmarshal(rec.Body.Bytes(), &customer)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sessions", token,
		createSessionRequest{CustomerID: customer.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["room_url"] == "" || resp["token"] != "tok-1" || resp["session_id"] == "" {
		t.Fatalf("resp = %+v", resp)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sessions", token,
		createSessionRequest{CustomerID: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown customer status = %d", rec.Code)
	}
}

func dialStream(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/voice/stream" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return msg
}

func TestVoiceStreamGreeting(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	conn := dialStream(t, srv, "")
	defer conn.Close()

	wantTypes := []string{"status", "response", "audio", "audio_end", "status"}
	for i, want := range wantTypes {
		msg := readEvent(t, conn)
		if msg["type"] != want {
			t.Fatalf("event %d type = %v, want %s", i, msg["type"], want)
		}
	}
}

func TestVoiceStreamUsesCustomerProfile(t *testing.T) {
	s := newTestServer(t)
	customer, err := s.store.CreateCustomer(store.Customer{
		CompanyName: "Acme",
		BotName:     "Ava",
		Greeting:    "Hello from Acme!",
		VoiceID:     "bella",
	})
	if err != nil {
		t.Fatalf("CreateCustomer error = %v", err)
	}
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	conn := dialStream(t, srv, "?customer_id="+customer.ID)
	defer conn.Close()

	readEvent(t, conn) // status: speaking
	resp := readEvent(t, conn)
	if resp["type"] != "response" || resp["text"] != "Hello from Acme!" {
		t.Fatalf("response = %v", resp)
	}
}

func TestVoiceStreamRejectsWithoutCredentials(t *testing.T) {
	s := newTestServer(t)
	s.cfg.DeepgramAPIKey = ""
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	conn := dialStream(t, srv, "")
	defer conn.Close()

	msg := readEvent(t, conn)
	if msg["type"] != "error" {
		t.Fatalf("event = %v, want error", msg)
	}

	// The server closes the socket after the error event.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var next map[string]any
	if err := conn.ReadJSON(&next); err == nil {
		t.Fatalf("expected close, got %v", next)
	}
}

func TestVoiceStreamTracksSessions(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	conn := dialStream(t, srv, "")
	readEvent(t, conn) // wait for the session to start

	if n := s.sessions.ActiveCount(); n != 1 {
		t.Fatalf("ActiveCount = %d, want 1", n)
	}
	conn.Close()

	deadline := time.After(2 * time.Second)
	for s.sessions.ActiveCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("session never ended after disconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(s.sessions.List()) != 1 {
		t.Fatalf("sessions = %d, want 1 record", len(s.sessions.List()))
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token,
		customerRequest{CompanyName: "Acme"})
	var customer store.Customer
	json.Unmarshal(rec.Body.Bytes(), &customer)

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "report.pdf", "binary-stuff")
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/customers/"+customer.ID+"/documents/upload", &buf)
	req.Header.Set("Content-Type", mw)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	handler.ServeHTTP(out, req)
	if out.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", out.Code, out.Body)
	}
}

func TestUploadTextDocument(t *testing.T) {
	handler := newTestServer(t).Routes()
	token := registerAndLogin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/customers", token,
		customerRequest{CompanyName: "Acme"})
	var customer store.Customer
	json.Unmarshal(rec.Body.Bytes(), &customer)

	var buf bytes.Buffer
	contentType := newMultipart(t, &buf, "notes.md", "Shipping takes two days.")
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/customers/"+customer.ID+"/documents/upload", &buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	handler.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", out.Code, out.Body)
	}
	var resp map[string]any
	json.Unmarshal(out.Body.Bytes(), &resp)
	if resp["source"] != "notes.md" {
		t.Fatalf("resp = %+v", resp)
	}
}

func newMultipart(t *testing.T, buf *bytes.Buffer, filename, content string) string {
	t.Helper()
	boundary := "testboundary"
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Disposition: form-data; name=\"file\"; filename=%q\r\n", filename)
	fmt.Fprintf(buf, "Content-Type: application/octet-stream\r\n\r\n")
	buf.WriteString(content)
	fmt.Fprintf(buf, "\r\n--%s--\r\n", boundary)
	return "multipart/form-data; boundary=" + boundary
}
