package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Backend captures what differs between the supported chat-completion
// providers: how a request is authenticated and where the reply text lives
// in the response envelope. One Backend is selected at configuration time;
// the retry loop and wire format are shared.
type Backend interface {
	Name() string
	// RequestURL returns the full endpoint URL for one attempt.
	RequestURL(base string) string
	// ApplyAuth attaches the provider's authentication to the request.
	ApplyAuth(req *http.Request)
	// ExtractReply pulls the assistant text out of a decoded response body.
	ExtractReply(body []byte) (string, error)
}

// chatEnvelope is the OpenAI-compatible response shape shared by the
// primary providers (Volcano Ark, DashScope, Zhipu).
type chatEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func extractChoiceText(body []byte, provider string) (string, error) {
	var envelope chatEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("parsing %s response: %w", provider, err)
	}
	if len(envelope.Choices) == 0 {
		return "", fmt.Errorf("no choices in %s response", provider)
	}
	return strings.TrimSpace(envelope.Choices[0].Message.Content), nil
}

// OpenAIBackend talks to any OpenAI-compatible endpoint with a Bearer key.
type OpenAIBackend struct {
	APIKey string
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) RequestURL(base string) string { return base }

func (b *OpenAIBackend) ApplyAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+b.APIKey)
}

func (b *OpenAIBackend) ExtractReply(body []byte) (string, error) {
	return extractChoiceText(body, b.Name())
}

// ZhipuBackend uses the GLM auth scheme; the response envelope matches the
// OpenAI-compatible one.
type ZhipuBackend struct {
	APIKey string
}

func (b *ZhipuBackend) Name() string { return "zhipu" }

func (b *ZhipuBackend) RequestURL(base string) string { return base }

func (b *ZhipuBackend) ApplyAuth(req *http.Request) {
	req.Header.Set("Authorization", "glm-key "+b.APIKey)
}

func (b *ZhipuBackend) ExtractReply(body []byte) (string, error) {
	return extractChoiceText(body, b.Name())
}

const baiduTokenURL = "https://aip.baidubce.com/oauth/2.0/token"

// BaiduBackend authenticates with an OAuth access token carried as a query
// parameter and returns the reply in a flat "result" field.
type BaiduBackend struct {
	accessToken string
}

// NewBaiduBackend exchanges the key/secret pair for an access token once,
// at construction time. tokenURL is overridable for tests; pass "" for the
// production endpoint.
func NewBaiduBackend(client *http.Client, tokenURL, apiKey, apiSecret string) (*BaiduBackend, error) {
	if tokenURL == "" {
		tokenURL = baiduTokenURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	params := url.Values{}
	params.Set("grant_type", "client_credentials")
	params.Set("client_id", apiKey)
	params.Set("client_secret", apiSecret)

	resp, err := client.Get(tokenURL + "?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetching baidu access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading baidu token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("baidu token endpoint returned status %d", resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("parsing baidu token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("baidu token response missing access_token")
	}

	return &BaiduBackend{accessToken: token.AccessToken}, nil
}

func (b *BaiduBackend) Name() string { return "baidu" }

func (b *BaiduBackend) RequestURL(base string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "access_token=" + url.QueryEscape(b.accessToken)
}

func (b *BaiduBackend) ApplyAuth(req *http.Request) {
	// Authentication rides on the URL; no header to attach.
}

func (b *BaiduBackend) ExtractReply(body []byte) (string, error) {
	var envelope struct {
		Result *string `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("parsing baidu response: %w", err)
	}
	if envelope.Result == nil {
		return "", fmt.Errorf("no result in baidu response")
	}
	return strings.TrimSpace(*envelope.Result), nil
}
