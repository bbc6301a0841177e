package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type httpTranslator struct {
	endpoint string
	client   *http.Client
}

type httpRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type httpResponse struct {
	TranslatedText string `json:"translated_text"`
}

// NewHTTPTranslator calls a JSON translation service. Timeouts come from the
// request context supplied by the caller.
func NewHTTPTranslator(endpoint string) Translator {
	return &httpTranslator{endpoint: endpoint, client: http.DefaultClient}
}

func (t *httpTranslator) Translate(ctx context.Context, req Request) (string, error) {
	payload := httpRequest{
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/v1/translate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation service returned status %s", resp.Status)
	}

	var decoded httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	return decoded.TranslatedText, nil
}
