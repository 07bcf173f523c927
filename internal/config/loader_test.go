package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// clearPetalscanEnvVars unsets every PETALSCAN_ variable for the test.
func clearPetalscanEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, EnvPrefix+"_") {
			key := strings.SplitN(env, "=", 2)[0]
			value := os.Getenv(key)
			_ = os.Unsetenv(key)
			t.Cleanup(func() { _ = os.Setenv(key, value) })
		}
	}
}

// inTempDir runs the test from an empty directory so no stray config or
// .env file is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.GetViper() != viper.GetViper() {
		t.Fatal("NewLoader() must use the global viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	clearPetalscanEnvVars(t)
	inTempDir(t)

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	want := DefaultConfig()
	if cfg.Log.Level != want.Log.Level {
		t.Errorf("log level = %s, want %s", cfg.Log.Level, want.Log.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Pipeline.Zoom != 2.0 {
		t.Errorf("zoom = %v, want 2", cfg.Pipeline.Zoom)
	}
	if cfg.Pipeline.Language != "eng+ara" {
		t.Errorf("language = %s, want eng+ara", cfg.Pipeline.Language)
	}
	if cfg.Azure.Language != "unk" {
		t.Errorf("azure language = %s, want unk", cfg.Azure.Language)
	}
	if cfg.Server.Timeout != 120*time.Second {
		t.Errorf("timeout = %s, want 2m0s", cfg.Server.Timeout)
	}
}

func TestLoadFromSearchPath(t *testing.T) {
	clearPetalscanEnvVars(t)
	dir := inTempDir(t)

	content := `
log:
  level: debug
pipeline:
  strategy: auto
  min_text_layer_chars: 80
  recognize_timeout: 45s
server:
  port: 9090
`
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "petalscan.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := newTestLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Pipeline.Strategy != "auto" || cfg.Pipeline.MinTextLayerChars != 80 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.RecognizeTimeout != 45*time.Second {
		t.Errorf("recognize timeout = %s, want 45s", cfg.Pipeline.RecognizeTimeout)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if !strings.HasSuffix(loader.GetConfigFileUsed(), filepath.Join("config", "petalscan.yaml")) {
		t.Errorf("config file used = %s", loader.GetConfigFileUsed())
	}
}

func TestLoadWithFile(t *testing.T) {
	clearPetalscanEnvVars(t)
	dir := inTempDir(t)

	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("output:\n  format: csv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("output format = %s, want csv", cfg.Output.Format)
	}

	if _, err := newTestLoader().LoadWithFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	clearPetalscanEnvVars(t)
	dir := inTempDir(t)

	path := filepath.Join(dir, "petalscan.yaml")
	if err := os.WriteFile(path, []byte("server: [port"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestLoader().Load(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	clearPetalscanEnvVars(t)
	dir := inTempDir(t)

	path := filepath.Join(dir, "petalscan.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  engine: paddle\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := newTestLoader().Load()
	if err == nil || !strings.Contains(err.Error(), "invalid engine") {
		t.Fatalf("Load() error = %v, want invalid engine", err)
	}

	cfg, err := newTestLoader().LoadWithoutValidation()
	if err != nil {
		t.Fatalf("LoadWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Pipeline.Engine != "paddle" {
		t.Errorf("engine = %s, want paddle", cfg.Pipeline.Engine)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearPetalscanEnvVars(t)
	inTempDir(t)

	t.Setenv("PETALSCAN_SERVER_PORT", "7070")
	t.Setenv("PETALSCAN_PIPELINE_ENGINE", "none")
	t.Setenv("PETALSCAN_STORAGE_DB_PATH", "/var/lib/petalscan/db.sqlite")

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Pipeline.Engine != "none" {
		t.Errorf("engine = %s, want none", cfg.Pipeline.Engine)
	}
	if cfg.Storage.DBPath != "/var/lib/petalscan/db.sqlite" {
		t.Errorf("db path = %s", cfg.Storage.DBPath)
	}
}

func TestDotEnvFile(t *testing.T) {
	clearPetalscanEnvVars(t)
	dir := inTempDir(t)

	t.Setenv("PETALSCAN_AZURE_ENDPOINT", "")
	t.Setenv("PETALSCAN_AZURE_KEY", "")
	_ = os.Unsetenv("PETALSCAN_AZURE_ENDPOINT")
	_ = os.Unsetenv("PETALSCAN_AZURE_KEY")

	env := "PETALSCAN_PIPELINE_ENGINE=azure\nPETALSCAN_AZURE_ENDPOINT=https://vision.example.com/\nPETALSCAN_AZURE_KEY=secret\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("PETALSCAN_PIPELINE_ENGINE")
	})

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Pipeline.Engine != "azure" || cfg.Azure.Key != "secret" {
		t.Errorf("azure settings not loaded from .env: %+v %+v", cfg.Pipeline, cfg.Azure)
	}
}

func TestGetAndSet(t *testing.T) {
	loader := newTestLoader()
	loader.Set("output.format", "text")
	if got := loader.GetString("output.format"); got != "text" {
		t.Errorf("GetString() = %s, want text", got)
	}
	if got := loader.Get("output.format"); got != "text" {
		t.Errorf("Get() = %v, want text", got)
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	dir := inTempDir(t)

	path := filepath.Join(dir, "generated.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pipeline:", "zoom: 2", "strategy: ocr", "port: 8080"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("generated config missing %q", want)
		}
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	want := []string{".", "config", filepath.Join("/xdg", "petalscan"), "/etc/petalscan"}
	if strings.Join(paths, "|") != strings.Join(want, "|") {
		t.Errorf("GetConfigSearchPaths() = %v, want %v", paths, want)
	}
}
