package caption

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header: %v", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model field: %v", got)
		}
		file, head, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = file.Close() }()
		if head.Filename != "audio.webm" {
			t.Errorf("filename: %v", head.Filename)
		}
		if audio, _ := io.ReadAll(file); string(audio) != "fake-webm" {
			t.Errorf("audio body: %s", audio)
		}
		_, _ = w.Write([]byte(`{"text":" hello there "}`))
	}))
	defer srv.Close()

	tr := NewTranscriber(config.Transcribe{
		Endpoint: srv.URL, Key: "sk-test", Model: "whisper-large-v3", Language: "en",
	}, logger.Default())
	text, err := tr.Transcribe(context.Background(), []byte("fake-webm"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "hello there" {
		t.Errorf("text: %q", text)
	}
}

func TestTranscribeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"no quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewTranscriber(config.Transcribe{Endpoint: srv.URL, Key: "sk-test"}, logger.Default())
	if _, err := tr.Transcribe(context.Background(), []byte("x")); err == nil ||
		!strings.Contains(err.Error(), "429") {
		t.Errorf("error: %v", err)
	}
}

func TestTranscribeDisabled(t *testing.T) {
	tr := NewTranscriber(config.Transcribe{}, logger.Default())
	if tr.IsEnabled() {
		t.Error("enabled with no key")
	}
	if _, err := tr.Transcribe(context.Background(), []byte("x")); err == nil {
		t.Error("no error with no key")
	}
}

func TestTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "g-test" {
			t.Errorf("key param: %v", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"target":"es"`) {
			t.Errorf("request body: %s", body)
		}
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"hola"}]}}`))
	}))
	defer srv.Close()

	tr := NewTranslator(config.Translate{Endpoint: srv.URL, Key: "g-test"}, logger.Default())
	text, err := tr.Translate(context.Background(), "hello", "es")
	if err != nil {
		t.Fatal(err)
	}
	if text != "hola" {
		t.Errorf("text: %q", text)
	}
}

func TestTranslateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[]}}`))
	}))
	defer srv.Close()

	tr := NewTranslator(config.Translate{Endpoint: srv.URL, Key: "g-test"}, logger.Default())
	if _, err := tr.Translate(context.Background(), "hello", "es"); err == nil {
		t.Error("no error on an empty response")
	}
}
