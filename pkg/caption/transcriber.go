// Package caption wraps the external speech-to-text and text-translation
// endpoints used for live call captions. Both are plain request/response
// HTTP collaborators with no retries: a failed call is logged by the caller
// and the caption line is simply lost.
package caption

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/goccy/go-json"
)

const requestTimeout = 30 * time.Second

type Transcriber struct {
	conf   config.Transcribe
	client *http.Client
	log    *logger.Logger
}

func NewTranscriber(conf config.Transcribe, log *logger.Logger) *Transcriber {
	return &Transcriber{
		conf:   conf,
		client: &http.Client{Timeout: requestTimeout},
		log:    log.Extend(log.With().Str("s", "stt")),
	}
}

func (t *Transcriber) IsEnabled() bool { return t.conf.IsEnabled() }

// Transcribe posts one short audio segment to the speech-to-text endpoint
// and returns the recognized text, which may be empty.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !t.IsEnabled() {
		return "", fmt.Errorf("no speech-to-text api key")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	head := textproto.MIMEHeader{}
	head.Set("Content-Disposition", `form-data; name="file"; filename="audio.webm"`)
	head.Set("Content-Type", "audio/webm")
	part, err := form.CreatePart(head)
	if err != nil {
		return "", err
	}
	if _, err = part.Write(audio); err != nil {
		return "", err
	}
	_ = form.WriteField("model", t.conf.Model)
	_ = form.WriteField("response_format", "json")
	_ = form.WriteField("language", t.conf.Language)
	if err = form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.conf.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.conf.Key)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		mess, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("speech-to-text status %v: %s", resp.StatusCode, mess)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}
