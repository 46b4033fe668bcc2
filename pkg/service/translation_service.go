package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/polyglot/pkg/batch"
	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/pipeline"
	"github.com/dasmlab/polyglot/pkg/translate"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "polyglot.v1.TranslationService"

// TranslationServiceServer is the server API. Requests and responses are
// google.protobuf.Struct messages whose fields mirror the HTTP JSON bodies.
type TranslationServiceServer interface {
	Translate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Localize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Languages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TranslateBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JobStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// TranslationService implements TranslationServiceServer on top of the pipelines.
type TranslationService struct {
	Translator   translate.Translator
	Translation  *pipeline.TranslationPipeline
	Localization *pipeline.LocalizationPipeline
	Batch        *batch.Processor
	Jobs         *JobQueue
	Logger       *logrus.Logger
}

// Deps groups the collaborators of TranslationService.
type Deps struct {
	Translator   translate.Translator
	Translation  *pipeline.TranslationPipeline
	Localization *pipeline.LocalizationPipeline
	Batch        *batch.Processor
	Jobs         *JobQueue
}

// NewTranslationService creates a new TranslationService instance.
func NewTranslationService(deps Deps, logger *logrus.Logger) *TranslationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TranslationService{
		Translator:   deps.Translator,
		Translation:  deps.Translation,
		Localization: deps.Localization,
		Batch:        deps.Batch,
		Jobs:         deps.Jobs,
		Logger:       logger,
	}
}

// Translate translates {text, source_lang, target_lang}.
func (s *TranslationService) Translate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, err := requiredString(req, "text")
	if err != nil {
		return nil, err
	}
	src, tgt := optionalString(req, "source_lang"), optionalString(req, "target_lang")

	s.Logger.WithFields(logrus.Fields{
		"source_lang": src,
		"target_lang": tgt,
		"text_length": len(text),
	}).Debug("[gRPC] Translate request received")

	res, err := s.Translation.Translate(ctx, text, src, tgt)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(res)
}

// Localize translates and localizes {text, source_lang, target_lang, currency?, units?}.
func (s *TranslationService) Localize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, err := requiredString(req, "text")
	if err != nil {
		return nil, err
	}

	res, err := s.Localization.Localize(ctx, text,
		optionalString(req, "source_lang"),
		optionalString(req, "target_lang"),
		stringOr(req, "currency", pipeline.DefaultCurrency),
		stringOr(req, "units", pipeline.DefaultUnits))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(res)
}

// Languages lists the supported language codes.
func (s *TranslationService) Languages(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	langs, err := s.Translator.SupportedLanguages(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(map[string]any{"supported_languages": langs})
}

// TranslateBatch translates {texts: [...], source_lang, target_lang} in order.
func (s *TranslationService) TranslateBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	field, ok := req.GetFields()["texts"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "texts is required")
	}
	list := field.GetListValue()
	if list == nil {
		return nil, status.Error(codes.InvalidArgument, "texts must be a list of strings")
	}
	texts := make([]string, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		sv, isString := v.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return nil, status.Errorf(codes.InvalidArgument, "texts[%d] must be a string", i)
		}
		texts = append(texts, sv.StringValue)
	}

	start := time.Now()
	out, err := s.Batch.ProcessList(ctx, texts, optionalString(req, "source_lang"), optionalString(req, "target_lang"))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.Logger.WithFields(logrus.Fields{
		"rows":     len(texts),
		"duration": time.Since(start).Seconds(),
	}).Info("[gRPC] TranslateBatch completed")
	return toStruct(map[string]any{"translations": out})
}

// JobStatus returns the state of a batch job {job_id}.
func (s *TranslationService) JobStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "job_id")
	if err != nil {
		return nil, err
	}
	job, err := s.Jobs.GetJob(id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrJobNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(job.Snapshot())
}

func requiredString(req *structpb.Struct, key string) (string, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	sv, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", key)
	}
	return sv.StringValue, nil
}

func optionalString(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// stringOr returns the string field key, or def when the field is absent.
// A present field is used as is, even when empty.
func stringOr(req *structpb.Struct, key, def string) string {
	v, ok := req.GetFields()[key]
	if !ok {
		return def
	}
	return v.GetStringValue()
}

// toStruct converts a JSON-serializable value to a Struct using its JSON tags.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

// fromStruct decodes a Struct into v using v's JSON tags.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func unaryHandler(method string, call func(TranslationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TranslationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TranslationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes TranslationService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranslationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Translate", Handler: unaryHandler("Translate", TranslationServiceServer.Translate)},
		{MethodName: "Localize", Handler: unaryHandler("Localize", TranslationServiceServer.Localize)},
		{MethodName: "Languages", Handler: unaryHandler("Languages", TranslationServiceServer.Languages)},
		{MethodName: "TranslateBatch", Handler: unaryHandler("TranslateBatch", TranslationServiceServer.TranslateBatch)},
		{MethodName: "JobStatus", Handler: unaryHandler("JobStatus", TranslationServiceServer.JobStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "polyglot/v1/translation.proto",
}

// Register registers srv on s.
func Register(s grpc.ServiceRegistrar, srv TranslationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
