package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/polyglot/pkg/pipeline"
)

// Client calls TranslationService over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any, out any, opts ...grpc.CallOption) error {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, resp, opts...); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

// Translate calls TranslationService.Translate.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string, opts ...grpc.CallOption) (pipeline.TranslationResult, error) {
	var out pipeline.TranslationResult
	err := c.invoke(ctx, "Translate", map[string]any{
		"text":        text,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	}, &out, opts...)
	return out, err
}

// Localize calls TranslationService.Localize. Empty currency and units take
// the server defaults.
func (c *Client) Localize(ctx context.Context, text, sourceLang, targetLang, currency, units string, opts ...grpc.CallOption) (pipeline.LocalizationResult, error) {
	req := map[string]any{
		"text":        text,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	}
	if currency != "" {
		req["currency"] = currency
	}
	if units != "" {
		req["units"] = units
	}
	var out pipeline.LocalizationResult
	err := c.invoke(ctx, "Localize", req, &out, opts...)
	return out, err
}

// Languages calls TranslationService.Languages.
func (c *Client) Languages(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	var out struct {
		SupportedLanguages []string `json:"supported_languages"`
	}
	err := c.invoke(ctx, "Languages", map[string]any{}, &out, opts...)
	return out.SupportedLanguages, err
}

// TranslateBatch calls TranslationService.TranslateBatch.
func (c *Client) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string, opts ...grpc.CallOption) ([]string, error) {
	list := make([]any, len(texts))
	for i, t := range texts {
		list[i] = t
	}
	var out struct {
		Translations []string `json:"translations"`
	}
	err := c.invoke(ctx, "TranslateBatch", map[string]any{
		"texts":       list,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	}, &out, opts...)
	return out.Translations, err
}

// JobStatus calls TranslationService.JobStatus.
func (c *Client) JobStatus(ctx context.Context, jobID string, opts ...grpc.CallOption) (JobSnapshot, error) {
	var out JobSnapshot
	err := c.invoke(ctx, "JobStatus", map[string]any{"job_id": jobID}, &out, opts...)
	return out, err
}
