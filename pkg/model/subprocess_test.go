package model

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newPipeLoader(t *testing.T, fake *fakeMBart) (*SubprocessLoader, *string) {
	t.Helper()
	l := NewSubprocessLoader(SubprocessConfig{ScriptDir: t.TempDir()}, quietLogger())
	var script string
	l.spawn = func(scriptPath string) (*workerConn, io.Closer, error) {
		script = scriptPath
		conn := pipeWorker(fake)
		return conn, conn, nil
	}
	return l, &script
}

func TestSubprocessLoaderRoundTrip(t *testing.T) {
	fake := &fakeMBart{}
	l, script := newPipeLoader(t, fake)

	h, err := l.Load(context.Background(), "facebook/mbart-large-50-many-to-many-mmt", "/tmp/models")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer h.Close()

	if h.Backend != "subprocess" {
		t.Errorf("Backend = %q", h.Backend)
	}
	if got := translateWith(t, h, "hello world", "en_XX", "es_XX"); got != "HELLO WORLD" {
		t.Errorf("translation = %q", got)
	}

	want := []string{"load", "encode", "lang_id", "generate", "decode"}
	if got := fake.ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if fake.requests[0].CacheDir != "/tmp/models" {
		t.Errorf("cache_dir = %q", fake.requests[0].CacheDir)
	}
	if fake.requests[3].ForcedBOSTokenID != 250009 {
		t.Errorf("forced_bos_token_id = %d", fake.requests[3].ForcedBOSTokenID)
	}

	b, err := os.ReadFile(*script)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if filepath.Base(*script) != WorkerScriptName {
		t.Errorf("script name = %s", filepath.Base(*script))
	}
	for _, needle := range []string{"MBart50TokenizerFast", "MBartForConditionalGeneration", "torch.no_grad", "flush=True"} {
		if !strings.Contains(string(b), needle) {
			t.Errorf("worker script missing %q", needle)
		}
	}
}

func TestSubprocessLoaderLoadFailure(t *testing.T) {
	fake := &fakeMBart{failLoad: true}
	l, _ := newPipeLoader(t, fake)

	_, err := l.Load(context.Background(), "missing/model", "")
	if err == nil {
		t.Fatal("expected load error")
	}
	if !strings.Contains(err.Error(), "cannot download missing/model") {
		t.Errorf("error = %v", err)
	}
}

func TestWorkerErrorEnvelope(t *testing.T) {
	fake := &fakeMBart{}
	l, _ := newPipeLoader(t, fake)
	h, err := l.Load(context.Background(), "m", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer h.Close()

	_, err = h.Tokenizer.LangCodeToID(context.Background(), "xx_XX")
	if err == nil || !strings.Contains(err.Error(), "lang_id failed") {
		t.Fatalf("expected lang_id failure, got %v", err)
	}
}

func TestWorkerConnHonoursCancelledContext(t *testing.T) {
	conn := pipeWorker(&fakeMBart{})
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := conn.call(ctx, workerRequest{Op: opPing}); err != context.Canceled {
		t.Fatalf("call error = %v, want context.Canceled", err)
	}
}

func TestWorkerConnClosedStream(t *testing.T) {
	conn := pipeWorker(&fakeMBart{})
	conn.Close()
	if _, err := conn.call(context.Background(), workerRequest{Op: opPing}); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestHandlePingDetectsDeadWorker(t *testing.T) {
	fake := &fakeMBart{}
	l, _ := newPipeLoader(t, fake)

	h, err := l.Load(context.Background(), "facebook/mbart-large-50-many-to-many-mmt", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := h.Ping(context.Background()); err != nil {
		t.Fatalf("Ping on a live worker: %v", err)
	}
	if got := fake.ops(); got[len(got)-1] != "ping" {
		t.Fatalf("ops = %v, want a trailing ping", got)
	}

	h.Close()
	if err := h.Ping(context.Background()); err == nil {
		t.Fatal("Ping succeeded after the worker went away")
	}
}

func TestHandlePingWithoutPinger(t *testing.T) {
	h := NewHandle("m", "fake", nil, nil, nil)
	if err := h.Ping(context.Background()); err != nil {
		t.Fatalf("Ping = %v, want nil for a model without liveness checks", err)
	}
}
