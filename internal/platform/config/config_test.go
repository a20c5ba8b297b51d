package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"SHOP_FIRESTORE_PROJECT_ID": "foxglove-dev",
		"SHOP_STRIPE_API_KEY":       "sk_test_123",
		"SHOP_STRIPE_WEBHOOK_SECRET": "whsec_123",
		"SHOP_PUBLIC_BASE_URL":      "https://shop.example.com",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Shipping.FreeShippingThreshold != 5000 {
		t.Errorf("unexpected default free shipping threshold: %d", cfg.Shipping.FreeShippingThreshold)
	}
	if cfg.Shipping.StandardFee != 0 {
		t.Errorf("unexpected default standard fee: %d", cfg.Shipping.StandardFee)
	}
	if cfg.Shipping.NextDayFee != 599 {
		t.Errorf("unexpected default next day fee: %d", cfg.Shipping.NextDayFee)
	}
	if cfg.Orders.NumberAttempts != 5 {
		t.Errorf("unexpected default order number attempts: %d", cfg.Orders.NumberAttempts)
	}
	if cfg.RateLimits.DefaultPerMinute != 120 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.DefaultPerMinute)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupBatchSize != defaultIdempotencyBatchSize {
		t.Errorf("unexpected default cleanup batch size: %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"SHOP_SERVER_PORT":                  "9090",
		"SHOP_SERVER_READ_TIMEOUT":          "20s",
		"SHOP_SERVER_IDLE_TIMEOUT":          "2m",
		"SHOP_FIRESTORE_PROJECT_ID":         "foxglove-prod",
		"SHOP_FIRESTORE_EMULATOR_HOST":      "",
		"SHOP_STRIPE_API_KEY":               "secret://stripe/api",
		"SHOP_STRIPE_WEBHOOK_SECRET":        "secret://stripe/webhook",
		"SHOP_PUBLIC_BASE_URL":              "https://foxglove.example.com",
		"SHOP_SHIPPING_FREE_THRESHOLD":      "7500",
		"SHOP_SHIPPING_STANDARD_FEE":        "299",
		"SHOP_SHIPPING_NEXT_DAY_FEE":        "799",
		"SHOP_ORDER_NUMBER_ATTEMPTS":        "8",
		"SHOP_ADMIN_TOKEN":                  "secret://admin/token",
		"SHOP_NOTIFICATIONS_TOPIC":          "order-confirmations",
		"SHOP_RATELIMIT_DEFAULT_PER_MIN":    "150",
		"SHOP_RATELIMIT_WEBHOOK_BURST":      "80",
		"SHOP_IDEMPOTENCY_HEADER":           "X-Idem-Key",
		"SHOP_IDEMPOTENCY_TTL":              "48h",
		"SHOP_IDEMPOTENCY_CLEANUP_INTERVAL": "30m",
		"SHOP_IDEMPOTENCY_CLEANUP_BATCH":    "500",
	}

	secrets := map[string]string{
		"secret://stripe/api":     "sk_live_abc",
		"secret://stripe/webhook": "whsec_live",
		"secret://admin/token":    "admin-token",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Stripe.APIKey != "sk_live_abc" {
		t.Errorf("expected resolved stripe api key, got %s", cfg.Stripe.APIKey)
	}
	if cfg.Stripe.WebhookSecret != "whsec_live" {
		t.Errorf("expected resolved webhook secret, got %s", cfg.Stripe.WebhookSecret)
	}
	if cfg.Admin.Token != "admin-token" {
		t.Errorf("expected resolved admin token, got %s", cfg.Admin.Token)
	}
	if cfg.Checkout.PublicBaseURL != "https://foxglove.example.com" {
		t.Errorf("unexpected public base url %s", cfg.Checkout.PublicBaseURL)
	}
	if cfg.Shipping.FreeShippingThreshold != 7500 {
		t.Errorf("unexpected free shipping threshold %d", cfg.Shipping.FreeShippingThreshold)
	}
	if cfg.Shipping.StandardFee != 299 {
		t.Errorf("unexpected standard fee %d", cfg.Shipping.StandardFee)
	}
	if cfg.Shipping.NextDayFee != 799 {
		t.Errorf("unexpected next day fee %d", cfg.Shipping.NextDayFee)
	}
	if cfg.Orders.NumberAttempts != 8 {
		t.Errorf("unexpected order number attempts %d", cfg.Orders.NumberAttempts)
	}
	if cfg.Notifications.TopicID != "order-confirmations" {
		t.Errorf("unexpected notifications topic %s", cfg.Notifications.TopicID)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" {
		t.Errorf("unexpected idempotency header %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency ttl %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupBatchSize != 500 {
		t.Errorf("unexpected cleanup batch size %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "SHOP_SERVER_PORT=7070\n" +
		"SHOP_FIRESTORE_PROJECT_ID=foxglove-dot\n" +
		"SHOP_STRIPE_API_KEY=sk_test_dot\n" +
		"SHOP_STRIPE_WEBHOOK_SECRET=whsec_dot\n" +
		"SHOP_PUBLIC_BASE_URL=https://dot.example.com\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "foxglove-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validationErr.Fields()
	want := map[string]bool{
		"Firestore.ProjectID":   false,
		"Stripe.APIKey":         false,
		"Stripe.WebhookSecret":  false,
		"Checkout.PublicBaseURL": false,
	}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s reported missing, got %v", field, fields)
		}
	}
}

func TestLoadRejectsMalformedBaseURL(t *testing.T) {
	env := baseEnv()
	env["SHOP_PUBLIC_BASE_URL"] = "not-a-url"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error for malformed base url")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := baseEnv()
	env["SHOP_STRIPE_API_KEY"] = "secret://missing"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "SHOP_FIRESTORE_PROJECT_ID=dot-project\nSHOP_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("SHOP_FIRESTORE_PROJECT_ID", "os-project")
	t.Setenv("SHOP_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"SHOP_FIRESTORE_PROJECT_ID": "override-project",
		"SHOP_SECRET_VERSION_PINS":  "secret://stripe/api=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["SHOP_FIRESTORE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["SHOP_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["SHOP_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["SHOP_SECRET_VERSION_PINS"]; got != "secret://stripe/api=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Admin.Token"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Admin.Token")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Admin.Token" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Admin.Token"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := baseEnv()
	env["SHOP_STRIPE_WEBHOOK_SECRET"] = "sm://stripe/webhook"

	secrets := map[string]string{
		"secret://stripe/webhook": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Stripe.WebhookSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Stripe.WebhookSecret)
	}
}
