// Package notes implements note authoring against the engine, with local
// validation before anything touches the wire.
package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ankitui/internal/anki"
	"ankitui/internal/modelcache"
	"ankitui/pkg/models"
)

// Engine is the subset of the bridge client the notes service depends on.
type Engine interface {
	AddNote(ctx context.Context, note anki.NoteInput) (int64, error)
	UpdateNoteFields(ctx context.Context, noteID int64, fields map[string]string) error
	DeleteNotes(ctx context.Context, ids []int64) error
	NotesInfo(ctx context.Context, ids []int64) ([]models.Note, error)
	NoteTypes(ctx context.Context) ([]models.NoteType, error)
}

// NewNoteRequest describes a note to be created.
type NewNoteRequest struct {
	Deck   string            `validate:"required"`
	Model  string            `validate:"required"`
	Fields map[string]string `validate:"required"`
	Tags   []string          `validate:"dive,excludesall=0x20"`
}

// Service creates and updates notes.
type Service struct {
	engine   Engine
	registry *modelcache.Registry
	validate *validator.Validate
	log      *zap.Logger
}

// NewService creates a notes service. registry may be nil, in which case
// field-order validation against the note type is skipped.
func NewService(engine Engine, registry *modelcache.Registry, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		engine:   engine,
		registry: registry,
		validate: validator.New(),
		log:      log,
	}
}

// Create validates req locally and creates the note. Validation failures are
// returned as *anki.ValidationError and never reach the engine.
func (s *Service) Create(ctx context.Context, req NewNoteRequest) (int64, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return 0, &anki.ValidationError{
				Field:   strings.ToLower(verrs[0].Field()),
				Message: validationMessage(verrs[0]),
			}
		}
		return 0, err
	}
	if err := s.checkFields(ctx, req); err != nil {
		return 0, err
	}

	id, err := s.engine.AddNote(ctx, anki.NoteInput{
		DeckName:  req.Deck,
		ModelName: req.Model,
		Fields:    req.Fields,
		Tags:      req.Tags,
	})
	if err != nil {
		return 0, fmt.Errorf("add note: %w", err)
	}
	s.log.Info("note created", zap.Int64("note", id), zap.String("deck", req.Deck))
	return id, nil
}

// checkFields verifies the required first field against the cached note type.
func (s *Service) checkFields(ctx context.Context, req NewNoteRequest) error {
	if s.registry != nil {
		if err := s.registry.Ensure(ctx, s.engine.NoteTypes); err != nil {
			return fmt.Errorf("load note types: %w", err)
		}
		nt, ok := s.registry.Get(req.Model)
		if !ok {
			return &anki.ValidationError{Field: "model", Message: fmt.Sprintf("unknown note type %q", req.Model)}
		}
		for _, def := range nt.Fields {
			if def.Order == 0 {
				if strings.TrimSpace(req.Fields[def.Name]) == "" {
					return &anki.ValidationError{
						Field:   def.Name,
						Message: "first field must not be empty",
					}
				}
				return nil
			}
		}
		return nil
	}
	// Without the registry, require at least one non-empty field value.
	for _, v := range req.Fields {
		if strings.TrimSpace(v) != "" {
			return nil
		}
	}
	return &anki.ValidationError{Field: "fields", Message: "at least one field must not be empty"}
}

// Update replaces field values on an existing note.
func (s *Service) Update(ctx context.Context, noteID int64, fields map[string]string) error {
	if len(fields) == 0 {
		return &anki.ValidationError{Field: "fields", Message: "no fields to update"}
	}
	if err := s.engine.UpdateNoteFields(ctx, noteID, fields); err != nil {
		return fmt.Errorf("update note %d: %w", noteID, err)
	}
	return nil
}

// Delete removes the given notes and all of their cards.
func (s *Service) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.engine.DeleteNotes(ctx, ids); err != nil {
		return fmt.Errorf("delete notes: %w", err)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "excludesall":
		return "must not contain spaces"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
