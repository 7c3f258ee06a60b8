package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_JSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("hitokoto", &buf)

	log.Info("serving", "addr", ":8000")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["service"] != "hitokoto" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["msg"] != "serving" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["addr"] != ":8000" {
		t.Errorf("addr = %v", entry["addr"])
	}
}

func TestLogger_DebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("hitokoto", &buf)

	log.Debug("noisy detail")
	if buf.Len() != 0 {
		t.Errorf("debug line emitted: %s", buf.String())
	}
}

func TestLogger_WithAddsPersistentField(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("hitokoto", &buf).With("engine", "sqlite")

	log.Info("first")
	log.Info("second")

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatal(err)
		}
		if entry["engine"] != "sqlite" {
			t.Errorf("engine = %v in %s", entry["engine"], line)
		}
	}
}
