package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("WAYPOINT_TEST_NAME", "lisbon")
	cfg := sample{Port: 8080}
	if err := Load(writeFile(t, "name: ${WAYPOINT_TEST_NAME}\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "lisbon" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	cfg := sample{Port: 1}
	err := Load(writeFile(t, "nmae: typo\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "nmae") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_Validates(t *testing.T) {
	cfg := sample{}
	err := Load(writeFile(t, "name: x\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg := sample{Port: 3}
	if err := Load(writeFile(t, ""), &cfg); err != nil {
		t.Fatal(err)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg := sample{Port: 9}
	if err := LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if err := Load(filepath.Join(t.TempDir(), "none.yaml"), &cfg); err == nil {
		t.Error("Load should fail on a missing file")
	}
}
