package ble

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/logging"
)

type fakeAdvertiser struct {
	starts int
	err    error
}

func (f *fakeAdvertiser) Start() error {
	f.starts++
	return f.err
}

func TestReadvertise(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog bool
	}{
		{name: "restart succeeds", err: nil, wantLog: false},
		{name: "restart fails", err: errors.New("org.bluez.Error.Failed"), wantLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
			adv := &fakeAdvertiser{err: tt.err}

			readvertise(adv, logger)

			if adv.starts != 1 {
				t.Errorf("Start() calls = %d, want 1", adv.starts)
			}
			out := buf.String()
			if got := strings.Contains(out, "restarting advertisement failed"); got != tt.wantLog {
				t.Errorf("warning logged = %v, want %v (output %q)", got, tt.wantLog, out)
			}
			if tt.wantLog && !strings.Contains(out, "org.bluez.Error.Failed") {
				t.Errorf("log output %q missing the adapter error", out)
			}
		})
	}
}

func TestReadvertise_NilAdvertiser(t *testing.T) {
	readvertise(nil, logging.Discard())
}
