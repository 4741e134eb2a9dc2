package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmatch/internal/domain"
)

type fakeThoughtRows struct {
	rows [][]any
	pos  int
	err  error
}

func (f *fakeThoughtRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeThoughtRows) Scan(dest ...interface{}) error {
	row := f.rows[f.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d columns, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *[]string:
			*p = row[i].([]string)
		case *bool:
			*p = row[i].(bool)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported dest %T", d)
		}
	}
	return nil
}

func (f *fakeThoughtRows) Err() error { return f.err }
func (f *fakeThoughtRows) Close()     {}

func TestScanThoughts(t *testing.T) {
	now := time.Now().UTC()
	rows := &fakeThoughtRows{rows: [][]any{
		{"t1", "u1", "hola", "positive", []string{"ai"}, true, now},
		{"t2", "u1", "chau", "", []string{}, false, now.Add(-time.Minute)},
	}}

	got, err := scanThoughts(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.SentimentPositive, got[0].Sentiment)
	assert.Equal(t, []string{"ai"}, got[0].Topics)
	assert.False(t, got[1].Classified)
	assert.Equal(t, domain.Sentiment(""), got[1].Sentiment)
}

func TestScanThoughtsEmptyAndError(t *testing.T) {
	got, err := scanThoughts(&fakeThoughtRows{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	boom := errors.New("conn reset")
	_, err = scanThoughts(&fakeThoughtRows{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestIsRetryablePgError(t *testing.T) {
	assert.True(t, isRetryablePgError(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, isRetryablePgError(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"})))
	assert.False(t, isRetryablePgError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryablePgError(errors.New("plain")))
}
