package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestSetupEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("stakerd", "test", Options{Output: &buf, Level: "debug"})
	logger.Debug("hello", slog.String("op", "stake"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env", "op"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing %q in %v", key, line)
		}
	}
	if line["severity"] != "DEBUG" || line["message"] != "hello" || line["service"] != "stakerd" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestSetupRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("stakerd", "", Options{Output: &buf, Level: "warn"})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %s", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn line missing")
	}
}

func TestSetupWritesRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "stakerd.log")
	logger := Setup("stakerd", "", Options{Output: &buf, File: path})
	logger.Info("to file")
	if buf.Len() == 0 {
		t.Fatalf("stdout copy missing")
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("jwt_secret", "hunter2"); got.Value.String() != RedactedValue {
		t.Fatalf("secret not redacted: %v", got)
	}
	if got := MaskField("digest", "0xabc"); got.Value.String() != "0xabc" {
		t.Fatalf("allowlisted key redacted: %v", got)
	}
	if got := MaskField("password", ""); got.Value.String() != "" {
		t.Fatalf("empty value must pass through")
	}
	if MaskValue("x") != RedactedValue {
		t.Fatalf("MaskValue did not redact")
	}
}
