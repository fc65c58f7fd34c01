package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
llm:
  provider: openai
  api_key: sk-test
  model: gpt-4o-mini
embedding:
  provider: openai
  api_key: sk-test
  model: text-embedding-3-small
  dimensions: 1536
vectordb:
  provider: milvus
  host: localhost
  port: 19530
  collection: passages
legacydb:
  driver: sqlite3
  dsn: file:legacy.db
  allowed_objects:
    - invoices
    - orders
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queryhub.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8085" {
		t.Errorf("default addr = %q", cfg.Server.Addr)
	}
	if cfg.Engine.TopK != 8 || cfg.Engine.MinSimilarity != 0.2 {
		t.Errorf("engine defaults not applied: %+v", cfg.Engine)
	}
	if cfg.Engine.QueryTimeoutSeconds != 60 {
		t.Errorf("default query timeout = %d", cfg.Engine.QueryTimeoutSeconds)
	}
	if cfg.LegacyDB.Dialect != "sqlite" {
		t.Errorf("default dialect = %q", cfg.LegacyDB.Dialect)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("QUERYHUB_ENCRYPTION_KEY", "env-key")

	yaml := strings.ReplaceAll(validYAML, "  api_key: sk-test\n", "")
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-env" || cfg.Embedding.APIKey != "sk-env" {
		t.Errorf("OPENAI_API_KEY not applied: %q / %q", cfg.LLM.APIKey, cfg.Embedding.APIKey)
	}
	if cfg.Secrets.EncryptionKey != "env-key" {
		t.Errorf("QUERYHUB_ENCRYPTION_KEY not applied: %q", cfg.Secrets.EncryptionKey)
	}
}

func TestLoadEnvDoesNotClobberExplicitKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("explicit api key overridden: %q", cfg.LLM.APIKey)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("empty config should not validate")
	}
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{"llm.provider", "embedding.provider", "vectordb.provider", "legacydb.driver", "legacydb.allowed_objects"} {
		if !fields[want] {
			t.Errorf("missing validation error for %s (got %v)", want, fields)
		}
	}
	if !strings.Contains(err.Error(), "configuration error(s)") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidateFieldRanges(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, validYAML))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Engine.MinSimilarity = 1.5
	if cfg.Validate() == nil {
		t.Error("min_similarity above 1 should fail")
	}

	cfg = base()
	cfg.LLM.Temperature = 3
	if cfg.Validate() == nil {
		t.Error("temperature above 2 should fail")
	}

	cfg = base()
	cfg.LegacyDB.Dialect = "postgres"
	if cfg.Validate() == nil {
		t.Error("unknown dialect should fail")
	}

	cfg = base()
	cfg.Embedding.Dimensions = 0
	if cfg.Validate() == nil {
		t.Error("zero embedding dimensions should fail")
	}

	cfg = base()
	cfg.VectorDB.Provider = "memory"
	cfg.VectorDB.Host = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("memory provider needs no host: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
