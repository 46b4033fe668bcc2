package service

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dasmlab/polyglot/pkg/batch"
	"github.com/dasmlab/polyglot/pkg/localize"
	"github.com/dasmlab/polyglot/pkg/pipeline"
	"github.com/dasmlab/polyglot/pkg/translate/translatetest"
)

func startServer(t *testing.T, fake *translatetest.Fake) (*Client, *JobQueue, *grpc.ClientConn) {
	t.Helper()
	logger := quietLogger()
	queue := NewJobQueue(t.TempDir(), logger)
	processor := batch.NewProcessor(fake, logger)
	NewJobProcessor(processor, queue, time.Minute, logger)

	svc := NewTranslationService(Deps{
		Translator:   fake,
		Translation:  pipeline.NewTranslationPipeline(fake, logger),
		Localization: pipeline.NewLocalizationPipeline(localize.NewLocalizer(fake, logger), logger),
		Batch:        processor,
		Jobs:         queue,
	}, logger)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, svc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn), queue, conn
}

func TestGRPCTranslate(t *testing.T) {
	client, _, _ := startServer(t, &translatetest.Fake{})

	res, err := client.Translate(context.Background(), "Hello", "en", "hi")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := pipeline.TranslationResult{Success: true, Original: "Hello", Translated: "[hi] Hello", SourceLang: "en", TargetLang: "hi"}
	if res != want {
		t.Fatalf("Translate = %+v, want %+v", res, want)
	}
}

func TestGRPCLocalizeDefaults(t *testing.T) {
	client, _, _ := startServer(t, &translatetest.Fake{})

	res, err := client.Localize(context.Background(), "$9.99 for 10 miles", "en", "fr", "", "")
	if err != nil {
		t.Fatalf("Localize: %v", err)
	}
	if !res.Success || res.Currency != "USD" || res.Units != "metric" || res.Translated != "[fr] $9.99 for 16.0 km" {
		t.Fatalf("Localize = %+v", res)
	}

	res, err = client.Localize(context.Background(), "$9.99", "en", "fr", "GBP", "imperial")
	if err != nil {
		t.Fatal(err)
	}
	if res.Translated != "[fr] £9.99" {
		t.Fatalf("Translated = %q", res.Translated)
	}
}

func TestGRPCLanguagesAndBatch(t *testing.T) {
	client, _, _ := startServer(t, &translatetest.Fake{})

	langs, err := client.Languages(context.Background())
	if err != nil || len(langs) != 10 || langs[0] != "en" {
		t.Fatalf("Languages = %v, %v", langs, err)
	}

	out, err := client.TranslateBatch(context.Background(), []string{"a", "b", "c"}, "en", "de")
	if err != nil {
		t.Fatalf("TranslateBatch: %v", err)
	}
	if !reflect.DeepEqual(out, []string{"[de] a", "[de] b", "[de] c"}) {
		t.Fatalf("TranslateBatch = %v", out)
	}
}

func TestGRPCInvalidArgument(t *testing.T) {
	_, _, conn := startServer(t, &translatetest.Fake{})

	call := func(method string, fields map[string]any) error {
		in, err := structpb.NewStruct(fields)
		if err != nil {
			t.Fatal(err)
		}
		return conn.Invoke(context.Background(), "/"+ServiceName+"/"+method, in, new(structpb.Struct))
	}

	cases := []struct {
		method string
		fields map[string]any
	}{
		{"Translate", map[string]any{"source_lang": "en"}},
		{"Translate", map[string]any{"text": 12.0}},
		{"Localize", map[string]any{}},
		{"TranslateBatch", map[string]any{"texts": "not a list"}},
		{"TranslateBatch", map[string]any{"texts": []any{"ok", true}}},
		{"JobStatus", map[string]any{}},
	}
	for _, tc := range cases {
		err := call(tc.method, tc.fields)
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("%s(%v) code = %v, want InvalidArgument", tc.method, tc.fields, status.Code(err))
		}
	}
}

func TestGRPCInternalOnPipelineError(t *testing.T) {
	client, _, _ := startServer(t, &translatetest.Fake{Err: errors.New("model unavailable")})

	_, err := client.Translate(context.Background(), "Hello", "en", "fr")
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}

func TestGRPCJobStatus(t *testing.T) {
	client, queue, _ := startServer(t, &translatetest.Fake{})

	if _, err := client.JobStatus(context.Background(), "missing"); status.Code(err) != codes.NotFound {
		t.Fatalf("JobStatus(missing) code = %v, want NotFound", status.Code(err))
	}

	id, err := queue.CreateJob(BatchRequest{Column: "text", SourceLang: "en", TargetLang: "es", Table: sampleTable()})
	if err != nil {
		t.Fatal(err)
	}
	job, _ := queue.GetJob(id)
	waitFinished(t, job)

	snap, err := client.JobStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if snap.ID != id || snap.Status != JobStatusCompleted || snap.RowsDone != 2 {
		t.Fatalf("JobStatus = %+v", snap)
	}
}
