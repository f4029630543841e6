package llm

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIBackendAuth(t *testing.T) {
	b := &OpenAIBackend{APIKey: "sk-test"}
	req := httptest.NewRequest(http.MethodPost, "http://api.example.com/v1/chat/completions", nil)
	b.ApplyAuth(req)

	if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer sk-test")
	}
	if got := b.RequestURL("http://api.example.com/v1/chat/completions"); got != "http://api.example.com/v1/chat/completions" {
		t.Errorf("RequestURL = %q", got)
	}
}

func TestZhipuBackendAuth(t *testing.T) {
	b := &ZhipuBackend{APIKey: "glm-test"}
	req := httptest.NewRequest(http.MethodPost, "http://api.example.com/v4/chat/completions", nil)
	b.ApplyAuth(req)

	if got := req.Header.Get("Authorization"); got != "glm-key glm-test" {
		t.Errorf("Authorization = %q, want %q", got, "glm-key glm-test")
	}
}

func TestChoiceEnvelopeExtraction(t *testing.T) {
	b := &OpenAIBackend{APIKey: "k"}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "reply text trimmed",
			body: `{"choices": [{"message": {"content": "  hello\n"}}]}`,
			want: "hello",
		},
		{
			name:    "empty choices",
			body:    `{"choices": []}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>bad gateway</html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.ExtractReply([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractReply: %v", err)
			}
			if got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBaiduBackend(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", q.Get("grant_type"))
		}
		if q.Get("client_id") != "ak" || q.Get("client_secret") != "sk" {
			t.Errorf("credentials = %q/%q", q.Get("client_id"), q.Get("client_secret"))
		}
		w.Write([]byte(`{"access_token": "tok-123", "expires_in": 2592000}`))
	}))
	defer tokenSrv.Close()

	b, err := NewBaiduBackend(tokenSrv.Client(), tokenSrv.URL, "ak", "sk")
	if err != nil {
		t.Fatalf("NewBaiduBackend: %v", err)
	}

	url := b.RequestURL("http://api.example.com/chat")
	if !strings.Contains(url, "access_token=tok-123") {
		t.Errorf("RequestURL missing access token: %q", url)
	}

	req := httptest.NewRequest(http.MethodPost, url, nil)
	b.ApplyAuth(req)
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("baidu must not set an auth header, got %q", got)
	}

	reply, err := b.ExtractReply([]byte(`{"id": "x", "result": " 生成的内容 "}`))
	if err != nil {
		t.Fatalf("ExtractReply: %v", err)
	}
	if reply != "生成的内容" {
		t.Errorf("reply = %q", reply)
	}

	if _, err := b.ExtractReply([]byte(`{"error_code": 110, "error_msg": "token invalid"}`)); err == nil {
		t.Error("expected error when result field is absent")
	}
}

func TestBaiduBackendTokenErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"empty token", `{"access_token": ""}`, http.StatusOK},
		{"error status", `{"error": "invalid_client"}`, http.StatusBadRequest},
		{"not json", `oops`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := NewBaiduBackend(srv.Client(), srv.URL, "ak", "sk"); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}
