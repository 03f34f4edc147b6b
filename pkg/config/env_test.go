package config

import (
	"os"
	"testing"
)

func setEnvironment(t *testing.T, value string) {
	t.Helper()
	original := os.Getenv("PHARMACY_SERVER_ENVIRONMENT")
	t.Cleanup(func() {
		if original != "" {
			os.Setenv("PHARMACY_SERVER_ENVIRONMENT", original)
		} else {
			os.Unsetenv("PHARMACY_SERVER_ENVIRONMENT")
		}
	})
	if value != "" {
		os.Setenv("PHARMACY_SERVER_ENVIRONMENT", value)
	} else {
		os.Unsetenv("PHARMACY_SERVER_ENVIRONMENT")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV_VAR", "test_value")
	defer os.Unsetenv("TEST_GET_ENV_VAR")

	got := GetEnv("TEST_GET_ENV_VAR", "default")
	if got != "test_value" {
		t.Errorf("GetEnv() = %v, want %v", got, "test_value")
	}

	got = GetEnv("NON_EXISTING_VAR", "default_value")
	if got != "default_value" {
		t.Errorf("GetEnv() = %v, want %v", got, "default_value")
	}
}

func TestGetEnvironment(t *testing.T) {
	tests := []struct {
		envValue string
		want     string
	}{
		{"development", "development"},
		{"DEVELOPMENT", "development"},
		{"staging", "staging"},
		{"PRODUCTION", "production"},
		{"", "development"}, // default
	}

	for _, tt := range tests {
		setEnvironment(t, tt.envValue)

		got := GetEnvironment()
		if got != tt.want {
			t.Errorf("GetEnvironment() with %q = %v, want %v", tt.envValue, got, tt.want)
		}
	}
}

func TestIsDevelopment(t *testing.T) {
	setEnvironment(t, "development")
	if !IsDevelopment() {
		t.Error("IsDevelopment() should return true for development environment")
	}

	setEnvironment(t, "production")
	if IsDevelopment() {
		t.Error("IsDevelopment() should return false for production environment")
	}
}

func TestIsProduction(t *testing.T) {
	setEnvironment(t, "production")
	if !IsProduction() {
		t.Error("IsProduction() should return true for production environment")
	}

	setEnvironment(t, "development")
	if IsProduction() {
		t.Error("IsProduction() should return false for development environment")
	}
}

func TestIsProductionLike(t *testing.T) {
	setEnvironment(t, "production")
	if !IsProductionLike() {
		t.Error("IsProductionLike() should return true for production")
	}

	setEnvironment(t, "staging")
	if !IsProductionLike() {
		t.Error("IsProductionLike() should return true for staging")
	}

	setEnvironment(t, "development")
	if IsProductionLike() {
		t.Error("IsProductionLike() should return false for development")
	}
}
