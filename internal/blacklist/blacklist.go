// Package blacklist loads the forbidden giver→recipient pairs that matching
// must avoid.
//
// File format, one entry per line:
//
//	# comment
//	<giver-id> <forbidden-recipient-id>
//
// Blank lines are ignored. Anything else fails the load.
package blacklist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"secretsanta/internal/participant"
	dErrors "secretsanta/pkg/domain-errors"
)

// Pair is a forbidden directed assignment.
type Pair struct {
	Giver     string
	Recipient string
}

// Store is the immutable constraint store. The zero value forbids nothing.
type Store struct {
	forbidden map[string]map[string]struct{}
	pairs     []Pair
}

// Empty returns a store without constraints.
func Empty() *Store {
	return &Store{}
}

// IsForbidden reports whether giver must never be assigned recipient.
func (s *Store) IsForbidden(giver, recipient string) bool {
	if s == nil {
		return false
	}
	_, ok := s.forbidden[giver][recipient]
	return ok
}

// Pairs returns the forbidden pairs in file order, duplicates removed.
func (s *Store) Pairs() []Pair {
	if s == nil {
		return nil
	}
	return append([]Pair(nil), s.pairs...)
}

// Len is the number of distinct forbidden pairs.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pairs)
}

// IDs returns every participant id mentioned, in first-seen order.
func (s *Store) IDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range s.Pairs() {
		for _, id := range []string{p.Giver, p.Recipient} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Parse reads a constraint file. Any malformed line fails the whole load
// with a CodeMalformedConstraintFile error naming the line.
func Parse(r io.Reader) (*Store, error) {
	s := &Store{forbidden: make(map[string]map[string]struct{})}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) != 2 {
			return nil, dErrors.New(dErrors.CodeMalformedConstraintFile,
				fmt.Sprintf("line %d: expected entry or comment, found %q", lineNo, line))
		}
		s.add(fields[0], fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedConstraintFile, "failed to read constraint file")
	}
	return s, nil
}

// LoadFile parses the constraint file at path. A missing file is an error.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, dErrors.Wrap(err, dErrors.CodeMalformedConstraintFile, "no constraint file present")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedConstraintFile, "failed to open constraint file")
	}
	defer f.Close()
	return Parse(f)
}

func (s *Store) add(giver, recipient string) {
	if s.IsForbidden(giver, recipient) {
		return
	}
	if s.forbidden[giver] == nil {
		s.forbidden[giver] = make(map[string]struct{})
	}
	s.forbidden[giver][recipient] = struct{}{}
	s.pairs = append(s.pairs, Pair{Giver: giver, Recipient: recipient})
}

// Lookup resolves participant records for the load-time healthcheck.
type Lookup interface {
	Get(ctx context.Context, id string) (*participant.Participant, error)
}

// Warning flags a constraint id that does not resolve to a described participant.
type Warning struct {
	ID     string
	Reason string
}

// Healthcheck verifies every mentioned id resolves to a participant with a
// description. Findings are warnings: a blacklist may legitimately name
// people who have not registered yet.
func (s *Store) Healthcheck(ctx context.Context, lookup Lookup, logger *slog.Logger) []Warning {
	var warnings []Warning
	for _, id := range s.IDs() {
		p, err := lookup.Get(ctx, id)
		switch {
		case err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound):
			warnings = append(warnings, Warning{ID: id, Reason: "lookup failed: " + err.Error()})
		case err != nil:
			warnings = append(warnings, Warning{ID: id, Reason: "unknown participant"})
		case p.Description == "":
			warnings = append(warnings, Warning{ID: id, Reason: "participant has no description"})
		}
	}
	if logger != nil {
		for _, w := range warnings {
			logger.WarnContext(ctx, "blacklist entry looks wrong",
				"participant_id", w.ID,
				"reason", w.Reason,
			)
		}
	}
	return warnings
}
