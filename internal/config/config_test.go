package config

import "testing"

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 0}}
	cfg.Index.Backend = "memory"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_UnknownIndexBackend(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.Index.Backend = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown index backend")
	}

	expected := `index.backend must be "memory" or "redis", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_RedisBackendRequiresAddrs(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.Index.Backend = "redis"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis backend without addrs")
	}

	cfg.Index.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with addrs set: %v", err)
	}
}

func TestValidate_NegativeWeights(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.Index.Backend = "memory"
	cfg.Retrieval.RecencyWeight = -0.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative recency weight")
	}

	cfg.Retrieval.RecencyWeight = 0
	cfg.Retrieval.ProviderBoost = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative provider boost")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Index.Backend != "memory" {
		t.Errorf("default index backend = %q, want memory", cfg.Index.Backend)
	}
	if cfg.Retrieval.K != 5 {
		t.Errorf("default retrieval k = %d, want 5", cfg.Retrieval.K)
	}
	if cfg.Chunking.ChunkSize != 500 {
		t.Errorf("default chunk size = %d, want 500", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.Overlap != 50 {
		t.Errorf("default overlap = %d, want 50", cfg.Chunking.Overlap)
	}
	if cfg.Embedding.BatchSize != 32 {
		t.Errorf("default batch size = %d, want 32", cfg.Embedding.BatchSize)
	}
}

func TestApplyDefaults_OverlapClampedToChunkSize(t *testing.T) {
	var cfg Config
	cfg.Chunking.ChunkSize = 100
	cfg.Chunking.Overlap = 150
	cfg.ApplyDefaults()

	if cfg.Chunking.Overlap != 10 {
		t.Errorf("overlap = %d, want 10 (chunk_size/10)", cfg.Chunking.Overlap)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("NEWSRAG_TEST_KEY", "secret")

	in := []byte("api_key: ${NEWSRAG_TEST_KEY}\nmodel: ${NEWSRAG_MISSING:-fallback}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: fallback\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
