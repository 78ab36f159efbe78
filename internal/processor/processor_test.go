package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nkoval/scriptum/internal/domain"
	"github.com/nkoval/scriptum/internal/telemetry"
)

const (
	writerID    = "asst_writer"
	moderatorID = "asst_moderator"
	briefID     = "asst_brief"
)

type assistantCall struct {
	assistantID string
	message     string
}

// fakeAssistants отдаёт заранее заготовленные ответы по каждому
// ассистенту и записывает все вызовы.
type fakeAssistants struct {
	replies map[string][]string
	calls   []assistantCall
	failOn  string // assistantID, на котором вернуть ошибку
}

func (f *fakeAssistants) RunAssistant(_ context.Context, assistantID, message string) (string, error) {
	f.calls = append(f.calls, assistantCall{assistantID, message})
	if assistantID == f.failOn {
		return "", errors.New("assistant unavailable")
	}
	queue := f.replies[assistantID]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted reply for %s", assistantID)
	}
	reply := queue[0]
	f.replies[assistantID] = queue[1:]
	return reply, nil
}

func (f *fakeAssistants) callsTo(assistantID string) int {
	n := 0
	for _, c := range f.calls {
		if c.assistantID == assistantID {
			n++
		}
	}
	return n
}

// fakeRows журналирует обновления и зеркалирует их в снимок строки.
type fakeRows struct {
	journal []map[string]string
	failErr error
}

func (f *fakeRows) UpdateRow(_ context.Context, row *domain.Row, updates map[string]string) error {
	if f.failErr != nil {
		return f.failErr
	}
	copied := make(map[string]string, len(updates))
	for k, v := range updates {
		copied[k] = v
		row.Values[k] = v
	}
	f.journal = append(f.journal, copied)
	return nil
}

func (f *fakeRows) wroteStatus() bool {
	for _, u := range f.journal {
		if _, ok := u[domain.ColumnStatus]; ok {
			return true
		}
	}
	return false
}

type fakeImages struct {
	url      string
	err      error
	gotBrief string
	gotTitle string
	calls    int
}

func (f *fakeImages) GenerateAndUpload(_ context.Context, brief, title string) (string, error) {
	f.calls++
	f.gotBrief = brief
	f.gotTitle = title
	return f.url, f.err
}

func newRow(title string) *domain.Row {
	return &domain.Row{
		Tab:   "Articles",
		Index: 2,
		Values: map[string]string{
			domain.ColumnTitle:  title,
			domain.ColumnStatus: string(domain.RowStatusPrepared),
		},
	}
}

func TestProcess_ApprovedFirstTry(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"Draft"},
		moderatorID: {" Ok "},
	}}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 3})

	row := newRow("How Go works")
	err := p.Process(context.Background(), RowTask{
		Row:                  row,
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := row.Values[domain.ColumnStatus]; got != string(domain.RowStatusWritten) {
		t.Errorf("status = %q, want %q", got, domain.RowStatusWritten)
	}
	if got := row.Values[domain.ColumnContent]; got != "Draft" {
		t.Errorf("content = %q, want %q", got, "Draft")
	}
	// Вердикт модератора сохраняется дословно, с пробелами
	if got := row.Values[domain.ColumnModeratorNote]; got != " Ok " {
		t.Errorf("moderator note = %q, want %q", got, " Ok ")
	}
	if got := row.Values[domain.ColumnIteration]; got != "0" {
		t.Errorf("iteration = %q, want %q", got, "0")
	}

	final := rows.journal[len(rows.journal)-1]
	if len(final) != 5 {
		t.Errorf("final write must set 5 fields at once, got %v", final)
	}
}

func TestProcess_CeilingReached(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"draft one", "draft two"},
		moderatorID: {"needs work", "still bad"},
	}}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 2})

	row := newRow("Title")
	err := p.Process(context.Background(), RowTask{
		Row:                  row,
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
	})
	if err != nil {
		t.Fatalf("ceiling termination must not be an error, got %v", err)
	}

	if got := row.Values[domain.ColumnStatus]; got != string(domain.RowStatusWrittenNotModerated) {
		t.Errorf("status = %q, want %q", got, domain.RowStatusWrittenNotModerated)
	}
	if got := row.Values[domain.ColumnContent]; got != "draft two" {
		t.Errorf("content = %q, want second draft", got)
	}
	if got := row.Values[domain.ColumnIteration]; got != "2" {
		t.Errorf("iteration = %q, want %q", got, "2")
	}
	if got := row.Values[domain.ColumnModeratorNote]; got != "still bad" {
		t.Errorf("moderator note = %q, want final rejection", got)
	}

	// Второй запрос писателю несёт предыдущий черновик и комментарий дословно
	wantPrompt := "Text:\ndraft one\n\nComment:\nneeds work"
	if got := ai.calls[2]; got.assistantID != writerID || got.message != wantPrompt {
		t.Errorf("revision request = %+v, want writer with %q", got, wantPrompt)
	}
}

func TestProcess_InvocationBound(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"d1", "d2", "d3", "d4", "d5"},
		moderatorID: {"no", "no", "no", "no", "no"},
	}}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 3})

	err := p.Process(context.Background(), RowTask{
		Row:                  newRow("Title"),
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := ai.callsTo(writerID); n > 4 {
		t.Errorf("writer invoked %d times, bound is maxRevisions+1", n)
	}
	if n := ai.callsTo(moderatorID); n > 4 {
		t.Errorf("moderator invoked %d times, bound is maxRevisions+1", n)
	}
}

func TestProcess_ZeroMaxRevisions_FirstVerdictFinal(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"draft"},
		moderatorID: {"bad"},
	}}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 0})

	row := newRow("Title")
	err := p.Process(context.Background(), RowTask{
		Row:                  row,
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := ai.callsTo(writerID); n != 1 {
		t.Errorf("writer invoked %d times, want 1", n)
	}
	if got := row.Values[domain.ColumnStatus]; got != string(domain.RowStatusWrittenNotModerated) {
		t.Errorf("status = %q, want %q", got, domain.RowStatusWrittenNotModerated)
	}
}

func TestProcess_IterationSeedFromRow(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"draft"},
		moderatorID: {"bad"},
	}}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 3})

	row := newRow("Title")
	row.Values[domain.ColumnIteration] = "5"

	err := p.Process(context.Background(), RowTask{
		Row:                  row,
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Унаследованный счётчик 5 сразу за потолком: один круг и стоп
	if got := row.Values[domain.ColumnIteration]; got != "6" {
		t.Errorf("iteration = %q, want %q", got, "6")
	}
	if first := rows.journal[0]; first[domain.ColumnIteration] != "5" {
		t.Errorf("seed iteration must be persisted immediately, got %v", first)
	}
}

func TestProcess_EmptyTitle(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{}}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 3})

	err := p.Process(context.Background(), RowTask{
		Row:                  newRow("   "),
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
	})
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}

	var pe *ProcessingError
	if !errors.As(err, &pe) || pe.Stage != StageValidation {
		t.Errorf("expected validation stage, got %v", err)
	}
	if len(ai.calls) != 0 {
		t.Errorf("no assistants may be invoked for an empty title")
	}
	if len(rows.journal) != 0 {
		t.Errorf("nothing may be persisted for an empty title")
	}
}

func TestProcess_MissingImageDependency(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{}}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 3})

	err := p.Process(context.Background(), RowTask{
		Row:                  newRow("Title"),
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
		ImageEnabled:         true,
	})
	if !errors.Is(err, ErrMissingImageDependency) {
		t.Fatalf("expected ErrMissingImageDependency, got %v", err)
	}
	if len(ai.calls) != 0 {
		t.Errorf("no assistants may be invoked without image dependencies")
	}
}

func TestProcess_ImageStage(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"Final text"},
		moderatorID: {"ok"},
		briefID:     {"a sunrise over mountains"},
	}}
	rows := &fakeRows{}
	images := &fakeImages{url: "https://freeimage.host/i/pic.png"}

	p := New(Config{
		Assistants:       ai,
		Rows:             rows,
		Images:           images,
		BriefAssistantID: briefID,
		MaxRevisions:     3,
	})

	row := newRow("Mountains")
	err := p.Process(context.Background(), RowTask{
		Row:                  row,
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
		ImageEnabled:         true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if images.gotBrief != "a sunrise over mountains" {
		t.Errorf("pipeline received brief %q", images.gotBrief)
	}
	if images.gotTitle != "Mountains" {
		t.Errorf("pipeline received title %q", images.gotTitle)
	}
	if got := row.Values[domain.ColumnImageURL]; got != "https://freeimage.host/i/pic.png" {
		t.Errorf("image URL = %q", got)
	}

	// Бриф-ассистент получает финальный текст, не заголовок
	last := ai.calls[len(ai.calls)-1]
	if last.assistantID != briefID || last.message != "Final text" {
		t.Errorf("brief request = %+v", last)
	}
}

func TestProcess_ImageFailureAbortsRow(t *testing.T) {
	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"Final text"},
		moderatorID: {"ok"},
		briefID:     {"brief"},
	}}
	rows := &fakeRows{}
	images := &fakeImages{err: errors.New("host down")}

	p := New(Config{
		Assistants:       ai,
		Rows:             rows,
		Images:           images,
		BriefAssistantID: briefID,
		MaxRevisions:     3,
	})

	err := p.Process(context.Background(), RowTask{
		Row:                  newRow("Title"),
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
		ImageEnabled:         true,
	})

	var pe *ProcessingError
	if !errors.As(err, &pe) || pe.Stage != StageImage {
		t.Fatalf("expected image stage error, got %v", err)
	}
	// Статус не записан: строка остаётся в состоянии до стадии изображения
	if rows.wroteStatus() {
		t.Errorf("status must not be written after image failure")
	}
}

func TestProcess_CountsAssistantCalls(t *testing.T) {
	role := func(name string) float64 {
		return testutil.ToFloat64(telemetry.AssistantCalls.WithLabelValues(name))
	}
	writerBefore := role("writer")
	moderatorBefore := role("moderator")
	briefBefore := role("brief")

	ai := &fakeAssistants{replies: map[string][]string{
		writerID:    {"draft one", "draft two"},
		moderatorID: {"needs work", "still bad"},
		briefID:     {"a brief"},
	}}
	rows := &fakeRows{}
	images := &fakeImages{url: "https://freeimage.host/i/pic.png"}

	p := New(Config{
		Assistants:       ai,
		Rows:             rows,
		Images:           images,
		BriefAssistantID: briefID,
		MaxRevisions:     2,
	})

	err := p.Process(context.Background(), RowTask{
		Row:                  newRow("Title"),
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
		ImageEnabled:         true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := role("writer") - writerBefore; got != 2 {
		t.Errorf("writer calls metric += %v, want 2", got)
	}
	if got := role("moderator") - moderatorBefore; got != 2 {
		t.Errorf("moderator calls metric += %v, want 2", got)
	}
	if got := role("brief") - briefBefore; got != 1 {
		t.Errorf("brief calls metric += %v, want 1", got)
	}
}

func TestProcess_ModeratorFailure(t *testing.T) {
	ai := &fakeAssistants{
		replies: map[string][]string{writerID: {"draft"}},
		failOn:  moderatorID,
	}
	rows := &fakeRows{}

	p := New(Config{Assistants: ai, Rows: rows, MaxRevisions: 3})

	err := p.Process(context.Background(), RowTask{
		Row:                  newRow("Title"),
		WriterAssistantID:    writerID,
		ModeratorAssistantID: moderatorID,
	})

	var pe *ProcessingError
	if !errors.As(err, &pe) || pe.Stage != StageModerator {
		t.Fatalf("expected moderator stage error, got %v", err)
	}
}
