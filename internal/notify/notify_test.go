package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0x6d61/vulnprobe/internal/findings"
)

func TestTelegramSend(t *testing.T) {
	var gotPath, gotChat, gotText, gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		gotMode = r.PostForm.Get("parse_mode")
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc", "42", TelegramOptions{BaseURL: srv.URL})
	if err := tg.Send(context.Background(), "VULNERABILITY ALERT"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "42" || gotText != "VULNERABILITY ALERT" || gotMode != "HTML" {
		t.Errorf("form = chat %q text %q mode %q", gotChat, gotText, gotMode)
	}
}

func TestTelegramEscapesHTML(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotText = r.FormValue("text")
		if r.FormValue("parse_mode") == "HTML" && strings.Contains(gotText, "<script") {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"ok":false,"description":"Bad Request: can't parse entities"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	msg := findings.AlertMessage(findings.Finding{
		Type:     findings.ReflectedXSS,
		Severity: findings.High,
		URL:      "http://target/contact.php",
		Payload:  "<script>alert('XSS')</script>",
		Evidence: "<p>Hello <script>alert('XSS')</script></p>",
	})
	tg := NewTelegram("t", "0", TelegramOptions{BaseURL: srv.URL})
	if err := tg.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(gotText, "&lt;script&gt;") {
		t.Errorf("text = %q, want escaped markup", gotText)
	}

	// Other parse modes get the text untouched.
	plain := NewTelegram("t", "0", TelegramOptions{BaseURL: srv.URL, ParseMode: "MarkdownV2"})
	if err := plain.Send(context.Background(), "a < b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotText != "a < b" {
		t.Errorf("text = %q, want unescaped", gotText)
	}
}

func TestTelegramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	tg := NewTelegram("t", "0", TelegramOptions{BaseURL: srv.URL})
	err := tg.Send(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("err = %v, want chat not found", err)
	}
}

func TestTelegramOKFalseWith200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"flood"}`)
	}))
	defer srv.Close()

	if err := NewTelegram("t", "0", TelegramOptions{BaseURL: srv.URL}).Send(context.Background(), "x"); err == nil {
		t.Error("expected error when ok is false")
	}
}

func TestTelegramTimeoutRedactsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	tg := NewTelegram("secret-token", "0", TelegramOptions{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := tg.Send(context.Background(), "x")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("token leaked in error: %v", err)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	l := &Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := l.Send(context.Background(), "SCAN SUMMARY"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), "SCAN SUMMARY") {
		t.Errorf("log output = %q", buf.String())
	}
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Send(context.Context, string) error {
	s.calls++
	return s.err
}

func TestMultiTriesEverySink(t *testing.T) {
	errA := errors.New("a failed")
	a := &stubSink{err: errA}
	b := &stubSink{}
	m := Multi{a, b}

	err := m.Send(context.Background(), "x")
	if !errors.Is(err, errA) {
		t.Errorf("err = %v, want to wrap errA", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", a.calls, b.calls)
	}

	if err := (Multi{b}).Send(context.Background(), "x"); err != nil {
		t.Errorf("all-ok Multi returned %v", err)
	}
}
