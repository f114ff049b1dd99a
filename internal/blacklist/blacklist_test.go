package blacklist

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsanta/internal/participant"
	dErrors "secretsanta/pkg/domain-errors"
)

func TestParse(t *testing.T) {
	t.Run("comments blanks and entries", func(t *testing.T) {
		src := strings.Join([]string{
			"# siblings",
			"",
			"1001 1002",
			"   # indented comment",
			"1002\t1001",
			"1001 1002",
			"  1003   1004  ",
		}, "\n")

		s, err := Parse(strings.NewReader(src))
		require.NoError(t, err)
		assert.Equal(t, 3, s.Len())
		assert.True(t, s.IsForbidden("1001", "1002"))
		assert.True(t, s.IsForbidden("1002", "1001"))
		assert.True(t, s.IsForbidden("1003", "1004"))
		assert.False(t, s.IsForbidden("1004", "1003"), "pairs are directed")
		assert.Equal(t, []string{"1001", "1002", "1003", "1004"}, s.IDs())
	})

	t.Run("malformed line names its number", func(t *testing.T) {
		_, err := Parse(strings.NewReader("# ok\n1 2\n1 2 3\n"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedConstraintFile))
		assert.Contains(t, err.Error(), "line 3")
		assert.Contains(t, err.Error(), `"1 2 3"`)
	})

	t.Run("single id is malformed", func(t *testing.T) {
		_, err := Parse(strings.NewReader("lonely\n"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedConstraintFile))
	})

	t.Run("empty input forbids nothing", func(t *testing.T) {
		s, err := Parse(strings.NewReader(""))
		require.NoError(t, err)
		assert.Zero(t, s.Len())
		assert.False(t, s.IsForbidden("a", "b"))
	})
}

func TestNilStoreForbidsNothing(t *testing.T) {
	var s *Store
	assert.False(t, s.IsForbidden("a", "b"))
	assert.Zero(t, s.Len())
	assert.Empty(t, s.IDs())
	assert.False(t, Empty().IsForbidden("a", "b"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads a file", func(t *testing.T) {
		path := filepath.Join(dir, "blacklist.txt")
		require.NoError(t, os.WriteFile(path, []byte("a b\n"), 0o600))
		s, err := LoadFile(path)
		require.NoError(t, err)
		assert.True(t, s.IsForbidden("a", "b"))
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "absent.txt"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedConstraintFile))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

type stubLookup map[string]*participant.Participant

func (l stubLookup) Get(_ context.Context, id string) (*participant.Participant, error) {
	if id == "boom" {
		return nil, errors.New("store offline")
	}
	p, ok := l[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant "+id+" not found")
	}
	return p, nil
}

func TestHealthcheck(t *testing.T) {
	s, err := Parse(strings.NewReader("a b\nb ghost\nmute a\nboom a\n"))
	require.NoError(t, err)

	lookup := stubLookup{
		"a":    {ID: "a", Description: "tea"},
		"b":    {ID: "b", Description: "socks"},
		"mute": {ID: "mute"},
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	warnings := s.Healthcheck(context.Background(), lookup, logger)

	require.Len(t, warnings, 3)
	assert.Equal(t, Warning{ID: "ghost", Reason: "unknown participant"}, warnings[0])
	assert.Equal(t, Warning{ID: "mute", Reason: "participant has no description"}, warnings[1])
	assert.Equal(t, "boom", warnings[2].ID)
	assert.Contains(t, warnings[2].Reason, "store offline")
	assert.Equal(t, 3, strings.Count(buf.String(), "blacklist entry looks wrong"))

	assert.True(t, s.IsForbidden("a", "b"), "warnings never drop constraints")
}
