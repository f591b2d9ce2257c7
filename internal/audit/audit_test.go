package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestJournalRecent tests append order, kind filtering and the limit.
func TestJournalRecent(t *testing.T) {
	ctx := context.Background()

	j, err := OpenJournal(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer j.Close()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, j.Emit(ctx, Event{Kind: KindPaused, At: at, Attrs: map[string]string{"caller": "0x01"}}))
	require.NoError(t, j.Emit(ctx, Event{Kind: KindCapacityIncreased, At: at.Add(time.Second), Attrs: map[string]string{"delta": "5"}}))
	require.NoError(t, j.Emit(ctx, Event{Kind: KindUnpauseRequested, At: at.Add(2 * time.Second)}))

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, KindUnpauseRequested, all[0].Kind, "newest first")
	require.Equal(t, KindPaused, all[2].Kind)
	require.True(t, all[2].At.Equal(at))
	require.Equal(t, "0x01", all[2].Attrs["caller"])
	require.Greater(t, all[0].Seq, all[2].Seq)

	increased, err := j.Recent(ctx, KindCapacityIncreased, 10)
	require.NoError(t, err)
	require.Len(t, increased, 1)
	require.Equal(t, "5", increased[0].Attrs["delta"])

	limited, err := j.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

// TestJournalPersists tests that events survive a reopen.
func TestJournalPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.db")

	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Emit(ctx, Event{Kind: KindUnpaused, At: time.Now()}))
	require.NoError(t, j.Close())

	require.ErrorIs(t, j.Emit(ctx, Event{Kind: KindPaused}), ErrJournalClosed)

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, KindUnpaused, events[0].Kind)
}

// failingSink always fails.
type failingSink struct{}

func (failingSink) Emit(context.Context, Event) error { return errors.New("sink down") }

// recordingSink keeps every event.
type recordingSink struct{ got []Event }

func (r *recordingSink) Emit(_ context.Context, ev Event) error {
	r.got = append(r.got, ev)
	return nil
}

// TestMultiContinuesPastFailure tests that one failing sink does not starve the rest.
func TestMultiContinuesPastFailure(t *testing.T) {
	rec := &recordingSink{}
	m := Multi{failingSink{}, rec}

	err := m.Emit(context.Background(), Event{Kind: KindPaused})
	require.Error(t, err)
	require.Len(t, rec.got, 1)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := LogSink{Log: slog.New(slog.NewTextHandler(&buf, nil))}

	err := s.Emit(context.Background(), Event{Kind: KindRoleGranted, Attrs: map[string]string{"role": "admin", "account": "0x02"}})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "event role_granted")
	require.Less(t, strings.Index(out, "account="), strings.Index(out, "role="), "attrs sorted by key")
}
