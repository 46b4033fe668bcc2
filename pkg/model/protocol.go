package model

import (
	"context"
	"encoding/json"
	"fmt"
)

// Operation names understood by the worker script and the inference server.
const (
	opLoad     = "load"
	opPing     = "ping"
	opEncode   = "encode"
	opLangID   = "lang_id"
	opGenerate = "generate"
	opDecode   = "decode"
)

// workerRequest is one operation sent to a backend.
type workerRequest struct {
	Op string `json:"op"`

	// load
	Model    string `json:"model,omitempty"`
	CacheDir string `json:"cache_dir,omitempty"`

	// encode
	Text      string `json:"text,omitempty"`
	SrcLang   string `json:"src_lang,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`

	// lang_id
	Tag string `json:"tag,omitempty"`

	// generate
	InputIDs         [][]int `json:"input_ids,omitempty"`
	AttentionMask    [][]int `json:"attention_mask,omitempty"`
	ForcedBOSTokenID int     `json:"forced_bos_token_id"`
	NumBeams         int     `json:"num_beams,omitempty"`

	// decode
	Sequences         [][]int `json:"sequences,omitempty"`
	SkipSpecialTokens bool    `json:"skip_special_tokens"`
}

// workerResponse is the envelope every backend answers with.
type workerResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type encodeResult struct {
	InputIDs      [][]int `json:"input_ids"`
	AttentionMask [][]int `json:"attention_mask"`
}

type langIDResult struct {
	ID int `json:"id"`
}

type generateResult struct {
	Sequences [][]int `json:"sequences"`
}

type decodeResult struct {
	Texts []string `json:"texts"`
}

// unpack checks a response envelope and decodes its result into out.
func unpack(op string, resp workerResponse, out any) error {
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%s failed: %s", op, msg)
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("%s: empty result", op)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", op, err)
	}
	return nil
}

// callFunc sends one operation over a backend transport.
type callFunc func(ctx context.Context, req workerRequest) (workerResponse, error)

// remote implements Tokenizer and Model on top of a backend transport. The
// model and tokenizer live in the backend process; Go only ships token ids.
type remote struct {
	call callFunc
}

func (r *remote) do(ctx context.Context, req workerRequest, out any) error {
	resp, err := r.call(ctx, req)
	if err != nil {
		return err
	}
	return unpack(req.Op, resp, out)
}

// Encode implements Tokenizer.
func (r *remote) Encode(ctx context.Context, text, srcLang string, maxLength int) (Encoding, error) {
	var res encodeResult
	err := r.do(ctx, workerRequest{Op: opEncode, Text: text, SrcLang: srcLang, MaxLength: maxLength}, &res)
	if err != nil {
		return Encoding{}, err
	}
	return Encoding{InputIDs: res.InputIDs, AttentionMask: res.AttentionMask}, nil
}

// LangCodeToID implements Tokenizer.
func (r *remote) LangCodeToID(ctx context.Context, langTag string) (int, error) {
	var res langIDResult
	if err := r.do(ctx, workerRequest{Op: opLangID, Tag: langTag}, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

// Decode implements Tokenizer.
func (r *remote) Decode(ctx context.Context, sequences [][]int, skipSpecialTokens bool) ([]string, error) {
	var res decodeResult
	err := r.do(ctx, workerRequest{Op: opDecode, Sequences: sequences, SkipSpecialTokens: skipSpecialTokens}, &res)
	if err != nil {
		return nil, err
	}
	return res.Texts, nil
}

// Generate implements Model.
func (r *remote) Generate(ctx context.Context, enc Encoding, opts GenerateOptions) ([][]int, error) {
	var res generateResult
	err := r.do(ctx, workerRequest{
		Op:               opGenerate,
		InputIDs:         enc.InputIDs,
		AttentionMask:    enc.AttentionMask,
		ForcedBOSTokenID: opts.ForcedBOSTokenID,
		MaxLength:        opts.MaxLength,
		NumBeams:         opts.NumBeams,
	}, &res)
	if err != nil {
		return nil, err
	}
	return res.Sequences, nil
}

// Ping implements Pinger.
func (r *remote) Ping(ctx context.Context) error {
	return r.do(ctx, workerRequest{Op: opPing}, nil)
}
