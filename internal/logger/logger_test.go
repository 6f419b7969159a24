package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		Reset()
		SetFormat("text")
		SetVerbosity(int(Info))
	})
	return &buf
}

func TestSetVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		visible   []string
		hidden    []string
	}{
		{int(Error), []string{"err-line"}, []string{"info-line", "debug-line", "trace-line"}},
		{int(Info), []string{"err-line", "info-line"}, []string{"debug-line", "trace-line"}},
		{int(Debug), []string{"info-line", "debug-line"}, []string{"trace-line"}},
		{int(Trace), []string{"debug-line", "trace-line"}, nil},
		{-4, []string{"err-line"}, []string{"info-line"}},
		{9, []string{"trace-line"}, nil},
	}

	for _, test := range tests {
		buf := capture(t)
		SetVerbosity(test.verbosity)

		Errorf("err-line")
		Infof("info-line")
		Debugf("debug-line")
		Tracef("trace-line")

		out := buf.String()
		for _, s := range test.visible {
			if !strings.Contains(out, s) {
				t.Fatalf("verbosity %d: expected %q in output:\n%s", test.verbosity, s, out)
			}
		}
		for _, s := range test.hidden {
			if strings.Contains(out, s) {
				t.Fatalf("verbosity %d: unexpected %q in output:\n%s", test.verbosity, s, out)
			}
		}
	}
}

func TestJSONFormatWithField(t *testing.T) {
	buf := capture(t)
	SetFormat("json")
	SetVerbosity(int(Info))

	WithField("run", "abc")
	Infof("hello %s", "world")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "hello world" || line["run"] != "abc" {
		t.Fatalf("unexpected log line %v", line)
	}

	Reset()
	buf.Reset()
	Infof("again")
	if strings.Contains(buf.String(), "abc") {
		t.Fatalf("Reset must drop fields, got %q", buf.String())
	}
}
