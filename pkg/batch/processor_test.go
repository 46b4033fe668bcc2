package batch

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/translate/translatetest"
)

func newTestProcessor(fake *translatetest.Fake) *Processor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewProcessor(fake, logger)
}

func TestProcessListKeepsOrder(t *testing.T) {
	fake := &translatetest.Fake{}
	p := newTestProcessor(fake)

	var progress []int
	got, err := p.ProcessList(context.Background(), []string{"a", "b", "c"}, "en", "fr",
		WithProgress(func(done, total int) {
			if total != 3 {
				t.Errorf("total = %d", total)
			}
			progress = append(progress, done)
		}))
	if err != nil {
		t.Fatalf("ProcessList: %v", err)
	}
	want := []string{"[fr] a", "[fr] b", "[fr] c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ProcessList = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(progress, []int{1, 2, 3}) {
		t.Fatalf("progress = %v", progress)
	}
}

func TestProcessListAbortsOnFirstError(t *testing.T) {
	fake := &translatetest.Fake{FailOn: "b"}
	p := newTestProcessor(fake)

	_, err := p.ProcessList(context.Background(), []string{"a", "b", "c"}, "en", "fr")
	if err == nil {
		t.Fatal("expected error")
	}
	var domainErr *apperrors.Error
	if !apperrors.As(err, &domainErr) {
		t.Fatalf("error %v is not a domain error", err)
	}
	if n := len(fake.Calls()); n != 2 {
		t.Fatalf("translator called %d times, want 2", n)
	}
}

func TestProcessListEmpty(t *testing.T) {
	got, err := newTestProcessor(&translatetest.Fake{}).ProcessList(context.Background(), nil, "en", "fr")
	if err != nil || len(got) != 0 {
		t.Fatalf("ProcessList(nil) = %v, %v", got, err)
	}
}

func TestProcessListCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &translatetest.Fake{}
	if _, err := newTestProcessor(fake).ProcessList(ctx, []string{"a"}, "en", "fr"); !apperrors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatal("translator called after cancellation")
	}
}

func TestProcessTable(t *testing.T) {
	in, err := ReadCSV(strings.NewReader("\ufeffid,text\n1,Hello\n2,\n3,\"Good, morning\"\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	fake := &translatetest.Fake{}
	out, err := newTestProcessor(fake).ProcessTable(context.Background(), in, "text", "en", "es")
	if err != nil {
		t.Fatalf("ProcessTable: %v", err)
	}

	wantHeader := []string{"id", "text", "translation", "source_lang", "target_lang"}
	if !reflect.DeepEqual(out.Header, wantHeader) {
		t.Fatalf("header = %v, want %v", out.Header, wantHeader)
	}
	wantRows := [][]string{
		{"1", "Hello", "[es] Hello", "en", "es"},
		{"2", "", "[es] ", "en", "es"},
		{"3", "Good, morning", "[es] Good, morning", "en", "es"},
	}
	if !reflect.DeepEqual(out.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", out.Rows, wantRows)
	}
	if len(in.Header) != 2 {
		t.Fatal("input table was modified")
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, out); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	wantCSV := "id,text,translation,source_lang,target_lang\n" +
		"1,Hello,[es] Hello,en,es\n" +
		"2,,[es] ,en,es\n" +
		"3,\"Good, morning\",\"[es] Good, morning\",en,es\n"
	if buf.String() != wantCSV {
		t.Fatalf("CSV =\n%s\nwant\n%s", buf.String(), wantCSV)
	}
}

func TestProcessTableOverwritesTranslationColumn(t *testing.T) {
	in := &Table{Header: []string{"text", "translation"}, Rows: [][]string{{"Hi", "stale"}}}
	out, err := newTestProcessor(&translatetest.Fake{}).ProcessTable(context.Background(), in, "text", "en", "de")
	if err != nil {
		t.Fatal(err)
	}
	want := &Table{
		Header: []string{"text", "translation", "source_lang", "target_lang"},
		Rows:   [][]string{{"Hi", "[de] Hi", "en", "de"}},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("ProcessTable = %+v, want %+v", out, want)
	}
}

func TestProcessTableMissingColumn(t *testing.T) {
	in := &Table{Header: []string{"body"}, Rows: [][]string{{"x"}}}
	_, err := newTestProcessor(&translatetest.Fake{}).ProcessTable(context.Background(), in, "text", "en", "de")
	if !apperrors.Is(err, apperrors.ErrColumnNotFound) {
		t.Fatalf("error = %v, want ErrColumnNotFound", err)
	}
}

func TestReadCSVPadsShortRows(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b,c\n1\n1,2,3,4\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"1", "", ""}, {"1", "2", "3"}}
	if !reflect.DeepEqual(tbl.Rows, want) {
		t.Fatalf("rows = %v, want %v", tbl.Rows, want)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty document")
	}
}
