package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInfo_Success_Warn_Error_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	L().SetOutput(&buf)
	defer L().SetOutput(os.Stdout)

	Info("TAG", "message")
	Success("TAG", "message")
	Warn("TAG", "message")
	Error("TAG", "message")

	if !strings.Contains(buf.String(), "component=TAG") {
		t.Fatalf("output missing component tag: %q", buf.String())
	}
}

func TestBanner_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	L().SetOutput(&buf)
	defer L().SetOutput(os.Stdout)

	Banner("v1.0.0")
	Banner("")
}

func TestSectionAndStats_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	L().SetOutput(&buf)
	defer L().SetOutput(os.Stdout)

	Section("Test")
	Stats("key", 42)
	if !strings.Contains(buf.String(), "stat=key") {
		t.Fatalf("Stats output = %q", buf.String())
	}
}

func TestConfigure_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := Configure("debug", "json", path, 0); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer Configure("info", "text", "stdout", 0)

	With("CACHE", Fields{"chunks": 3}).Info("saved")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	if entry["component"] != "CACHE" || entry["message"] != "saved" {
		t.Errorf("entry = %v", entry)
	}
}

func TestConfigure_Invalid(t *testing.T) {
	if err := Configure("loud", "text", "stdout", 0); err == nil {
		t.Error("want error for invalid level")
	}
	if err := Configure("info", "xml", "stdout", 0); err == nil {
		t.Error("want error for invalid format")
	}
}
