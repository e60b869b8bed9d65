package caption

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/babelcall/babelcall/pkg/config"
	"github.com/babelcall/babelcall/pkg/logger"
	"github.com/goccy/go-json"
)

type Translator struct {
	conf   config.Translate
	client *http.Client
	log    *logger.Logger
}

func NewTranslator(conf config.Translate, log *logger.Logger) *Translator {
	return &Translator{
		conf:   conf,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.Extend(log.With().Str("s", "mt")),
	}
}

func (t *Translator) IsEnabled() bool { return t.conf.IsEnabled() }

// Translate converts text into the target language.
func (t *Translator) Translate(ctx context.Context, text string, targetLang string) (string, error) {
	if !t.IsEnabled() {
		return "", fmt.Errorf("no translation api key")
	}

	body, err := json.Marshal(struct {
		Q      string `json:"q"`
		Target string `json:"target"`
		Format string `json:"format"`
	}{Q: text, Target: targetLang, Format: "text"})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.conf.Endpoint+"?key="+t.conf.Key, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		mess, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("translation status %v: %s", resp.StatusCode, mess)
	}

	var out struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Data.Translations) == 0 {
		return "", fmt.Errorf("empty translation response")
	}
	return out.Data.Translations[0].TranslatedText, nil
}
