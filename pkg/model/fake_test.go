package model

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var fakeLangIDs = map[string]int{"en_XX": 250004, "es_XX": 250009, "fr_XX": 250008}

// fakeMBart answers worker requests the way the Python worker would, with a
// tiny deterministic "model": the output is the upper-cased input.
type fakeMBart struct {
	mu       sync.Mutex
	loaded   bool
	failLoad bool
	requests []workerRequest
	lastText string
}

func (f *fakeMBart) handle(req workerRequest) workerResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	ok := func(v any) workerResponse {
		b, _ := json.Marshal(v)
		return workerResponse{Success: true, Result: b}
	}
	fail := func(msg string) workerResponse {
		return workerResponse{Success: false, Error: msg}
	}

	switch req.Op {
	case opLoad:
		if f.failLoad {
			return fail("cannot download " + req.Model)
		}
		f.loaded = true
		return ok(map[string]string{"model": req.Model})
	case opPing:
		return ok(map[string]bool{"loaded": f.loaded})
	}
	if !f.loaded {
		return fail("model not loaded")
	}
	switch req.Op {
	case opEncode:
		f.lastText = req.Text
		ids := []int{fakeLangIDs[req.SrcLang]}
		mask := []int{1}
		for range strings.Fields(req.Text) {
			ids = append(ids, 100)
			mask = append(mask, 1)
		}
		return ok(encodeResult{InputIDs: [][]int{ids}, AttentionMask: [][]int{mask}})
	case opLangID:
		id, found := fakeLangIDs[req.Tag]
		if !found {
			return fail("KeyError: '" + req.Tag + "'")
		}
		return ok(langIDResult{ID: id})
	case opGenerate:
		return ok(generateResult{Sequences: [][]int{{2, req.ForcedBOSTokenID, 7, 2}}})
	case opDecode:
		return ok(decodeResult{Texts: []string{strings.ToUpper(f.lastText)}})
	}
	return fail("unknown op: " + req.Op)
}

func (f *fakeMBart) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Op)
	}
	return out
}

// pipeWorker serves fake over an in-memory stdin/stdout pair.
func pipeWorker(fake *fakeMBart) *workerConn {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		defer respW.Close()
		sc := bufio.NewScanner(reqR)
		for sc.Scan() {
			var req workerRequest
			if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
				return
			}
			b, _ := json.Marshal(fake.handle(req))
			if _, err := respW.Write(append(b, '\n')); err != nil {
				return
			}
		}
	}()
	return newWorkerConn(reqW, respR)
}

// translateWith runs the full encode, lang id, generate, decode sequence.
func translateWith(t *testing.T, h *Handle, text, src, tgt string) string {
	t.Helper()
	ctx := context.Background()
	enc, err := h.Tokenizer.Encode(ctx, text, src, 512)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	id, err := h.Tokenizer.LangCodeToID(ctx, tgt)
	if err != nil {
		t.Fatalf("LangCodeToID: %v", err)
	}
	seqs, err := h.Model.Generate(ctx, enc, GenerateOptions{ForcedBOSTokenID: id, MaxLength: 512, NumBeams: 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	texts, err := h.Tokenizer.Decode(ctx, seqs, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(texts) != 1 {
		t.Fatalf("Decode returned %d texts", len(texts))
	}
	return texts[0]
}
