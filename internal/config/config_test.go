package config

import "testing"

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("RATEX_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("RATEX_ENV", "development")
	t.Setenv("RATEX_GENERATION_URL", "http://gen:5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite || cfg.DBDSN == "" {
		t.Fatalf("expected sqlite defaults, got %q %q", cfg.DBBackend, cfg.DBDSN)
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.GenerationURL != "http://gen:5000" {
		t.Fatalf("unexpected generation URL: %q", cfg.GenerationURL)
	}
	if cfg.RatingFloor != 35 {
		t.Fatalf("expected default rating floor 35, got %g", cfg.RatingFloor)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("RATEX_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("RATEX_DB_BACKEND", "mongodb")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for unknown database backend")
	}
}

func TestLoadRejectsOutOfRangeRatingFloor(t *testing.T) {
	t.Setenv("RATEX_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("RATEX_RATING_FLOOR", "250")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for out-of-range rating floor")
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("RATEX_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("JWT_SIGNING_KEY", "legacy")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

func TestLoadProductionRequiresS3Credentials(t *testing.T) {
	t.Setenv("RATEX_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("RATEX_ENV", "production")
	t.Setenv("RATEX_S3_BUCKET", "ratings-media")
	t.Setenv("RATEX_S3_ACCESS_KEY_ID", "")
	t.Setenv("RATEX_S3_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail without S3 credentials")
	}

	t.Setenv("RATEX_S3_ACCESS_KEY_ID", "key")
	t.Setenv("RATEX_S3_SECRET_ACCESS_KEY", "secret")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load with S3 creds to succeed: %v", err)
	}
}
