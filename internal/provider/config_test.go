package provider

import (
	"strings"
	"testing"
)

func Test_Config_ValidateBackends(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "ollama needs no credentials",
			cfg:  Config{Backend: BackendOllama, Model: "llama3"},
		},
		{
			name:    "openai requires api key",
			cfg:     Config{Backend: BackendOpenAI, Model: "gpt-4o-mini"},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "openai with api key",
			cfg:  Config{Backend: BackendOpenAI, Model: "gpt-4o-mini", APIKey: "sk-test"},
		},
		{
			name:    "azure requires endpoint",
			cfg:     Config{Backend: BackendAzure, APIKey: "key", AzureDeployment: "dep"},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "azure requires deployment",
			cfg:     Config{Backend: BackendAzure, APIKey: "key", BaseURL: "https://r.openai.azure.com"},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},
		{
			name: "azure fully configured",
			cfg: Config{
				Backend:         BackendAzure,
				APIKey:          "key",
				BaseURL:         "https://r.openai.azure.com",
				AzureDeployment: "gpt-4.1",
			},
		},
		{
			name:    "bedrock requires model id",
			cfg:     Config{Backend: BackendBedrock},
			wantErr: "BEDROCK_MODEL_ID",
		},
		{
			name:    "gemini requires api key",
			cfg:     Config{Backend: BackendGemini, Model: "gemini-1.5-flash"},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "watsonx"},
			wantErr: "unknown backend",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("want no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("want error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("want error containing %q, got %q", tc.wantErr, err)
			}
		})
	}
}
