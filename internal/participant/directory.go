// Package participant holds participant records and their assignment links
// in a kv.Store.
package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"secretsanta/internal/kv"
	"secretsanta/internal/lifecycle"
	dErrors "secretsanta/pkg/domain-errors"
	"secretsanta/pkg/platform/sentinel"
)

const keyPrefix = "participant:"

// Gate asserts the live phase permits an operation.
type Gate interface {
	Require(ctx context.Context, op lifecycle.Operation) error
}

// Directory is the registry of participants.
type Directory interface {
	Register(ctx context.Context, id, description string) (*Participant, error)
	Confirm(ctx context.Context, id string) error
	Unregister(ctx context.Context, id string) error
	SetAssignment(ctx context.Context, giverID, recipientID string) error
	ClearAssignments(ctx context.Context) error
	PurgeProvisional(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (*Participant, error)
	List(ctx context.Context) ([]Participant, error)
	ListConfirmed(ctx context.Context) ([]string, error)
}

// KVDirectory implements Directory over a kv.Store. One coarse lock
// serializes every mutation; readers share it so a half-written assignment
// pair is never observable. Mutations check the phase gate while holding the
// lock, so a reader that lists after a phase change sees every write the old
// phase admitted.
type KVDirectory struct {
	mu     sync.RWMutex
	store  kv.Store
	gate   Gate
	logger *slog.Logger
}

type Option func(*KVDirectory)

func WithLogger(logger *slog.Logger) Option {
	return func(d *KVDirectory) {
		d.logger = logger
	}
}

// NewDirectory constructs a KVDirectory. gate guards every mutation.
func NewDirectory(store kv.Store, gate Gate, opts ...Option) (*KVDirectory, error) {
	if store == nil {
		return nil, errors.New("kv store is required")
	}
	if gate == nil {
		return nil, errors.New("phase gate is required")
	}
	d := &KVDirectory{store: store, gate: gate, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *KVDirectory) Register(ctx context.Context, id, description string) (*Participant, error) {
	id = normalizeID(id)
	description = strings.TrimSpace(description)
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "participant id is required")
	}
	if description == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "participant description is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.Require(ctx, lifecycle.OpRegister); err != nil {
		return nil, err
	}

	existing, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, dErrors.New(dErrors.CodeAlreadyRegistered, fmt.Sprintf("participant %s is already registered", id))
	}

	p := &Participant{ID: id, Description: description, Membership: MembershipProvisional}
	if err := d.save(ctx, p); err != nil {
		return nil, err
	}
	d.logger.InfoContext(ctx, "participant registered", "participant_id", id)
	return p, nil
}

func (d *KVDirectory) Confirm(ctx context.Context, id string) error {
	id = normalizeID(id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.Require(ctx, lifecycle.OpConfirm); err != nil {
		return err
	}

	p, err := d.load(ctx, id)
	if err != nil {
		return err
	}
	if p == nil || !p.IsProvisional() {
		return dErrors.New(dErrors.CodeNotProvisional, fmt.Sprintf("participant %s has no pending registration", id))
	}
	p.Membership = MembershipConfirmed
	if err := d.save(ctx, p); err != nil {
		return err
	}
	d.logger.InfoContext(ctx, "participant confirmed", "participant_id", id)
	return nil
}

// Unregister removes a provisional registration. Confirmed registrations are
// never removed.
func (d *KVDirectory) Unregister(ctx context.Context, id string) error {
	id = normalizeID(id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.Require(ctx, lifecycle.OpUnregister); err != nil {
		return err
	}

	p, err := d.load(ctx, id)
	if err != nil {
		return err
	}
	if p == nil || !p.IsProvisional() {
		return dErrors.New(dErrors.CodeNotProvisional, fmt.Sprintf("participant %s has no pending registration", id))
	}
	if err := d.store.Remove(ctx, keyPrefix+id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove registration")
	}
	d.logger.InfoContext(ctx, "participant unregistered", "participant_id", id)
	return nil
}

// SetAssignment writes giver.GiftsTo and recipient.ReceivesFrom as a pair.
// If the second write fails the first is restored.
func (d *KVDirectory) SetAssignment(ctx context.Context, giverID, recipientID string) error {
	giverID, recipientID = normalizeID(giverID), normalizeID(recipientID)
	if giverID == recipientID {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("participant %s cannot be assigned to themselves", giverID))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.Require(ctx, lifecycle.OpSetAssignment); err != nil {
		return err
	}

	giver, err := d.loadConfirmed(ctx, giverID)
	if err != nil {
		return err
	}
	recipient, err := d.loadConfirmed(ctx, recipientID)
	if err != nil {
		return err
	}

	before := *giver
	giver.GiftsTo = recipientID
	if err := d.save(ctx, giver); err != nil {
		return err
	}
	recipient.ReceivesFrom = giverID
	if err := d.save(ctx, recipient); err != nil {
		if rbErr := d.save(ctx, &before); rbErr != nil {
			d.logger.ErrorContext(ctx, "failed to restore giver after partial assignment",
				"participant_id", giverID,
				"error", rbErr,
			)
		}
		return err
	}
	return nil
}

// ClearAssignments drops every assignment link so matching can run again.
func (d *KVDirectory) ClearAssignments(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.Require(ctx, lifecycle.OpClearAssignments); err != nil {
		return err
	}

	all, err := d.list(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		p := &all[i]
		if !p.HasLinks() {
			continue
		}
		p.GiftsTo, p.ReceivesFrom = "", ""
		if err := d.save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// PurgeProvisional removes every still-provisional registration and returns
// the purged ids.
func (d *KVDirectory) PurgeProvisional(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.Require(ctx, lifecycle.OpCancelPending); err != nil {
		return nil, err
	}

	all, err := d.list(ctx)
	if err != nil {
		return nil, err
	}
	var purged []string
	for _, p := range all {
		if !p.IsProvisional() {
			continue
		}
		if err := d.store.Remove(ctx, keyPrefix+p.ID); err != nil {
			return purged, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge provisional registration")
		}
		purged = append(purged, p.ID)
	}
	return purged, nil
}

// Get returns the participant or a CodeNotFound error.
func (d *KVDirectory) Get(ctx context.Context, id string) (*Participant, error) {
	id = normalizeID(id)
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("participant %s not found", id))
	}
	return p, nil
}

// List returns every participant with any registration state, in key order.
func (d *KVDirectory) List(ctx context.Context) ([]Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.list(ctx)
}

// ListConfirmed enumerates confirmed participant ids in directory order.
// The order carries no meaning.
func (d *KVDirectory) ListConfirmed(ctx context.Context) ([]string, error) {
	all, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, p := range all {
		if p.IsConfirmed() {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (d *KVDirectory) list(ctx context.Context) ([]Participant, error) {
	keys, err := d.store.ListKeys(ctx, keyPrefix)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	out := make([]Participant, 0, len(keys))
	for _, key := range keys {
		p, err := d.load(ctx, strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// normalizeID trims surrounding whitespace so every operation resolves the
// same key Register stored.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func (d *KVDirectory) loadConfirmed(ctx context.Context, id string) (*Participant, error) {
	p, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsConfirmed() {
		return nil, dErrors.New(dErrors.CodeUnknownParticipant, fmt.Sprintf("participant %s is not confirmed", id))
	}
	return p, nil
}

// load returns nil, nil when id has no record.
func (d *KVDirectory) load(ctx context.Context, id string) (*Participant, error) {
	raw, err := d.store.Get(ctx, keyPrefix+id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	var p Participant
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("corrupt record for participant %s", id))
	}
	return &p, nil
}

func (d *KVDirectory) save(ctx context.Context, p *Participant) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode participant")
	}
	if err := d.store.Set(ctx, keyPrefix+p.ID, string(raw)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist participant")
	}
	return nil
}
