package anki

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ankitui/pkg/models"
)

// Version probes the engine and returns its protocol version. Used as the
// liveness check before entering any feature that needs the engine.
func (c *Client) Version(ctx context.Context) (int, error) {
	var v int
	if err := c.invoke(ctx, "version", nil, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Sync triggers a collection sync on the engine side.
func (c *Client) Sync(ctx context.Context) error {
	return c.invoke(ctx, "sync", nil, nil)
}

// DeckNames lists all deck names.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// DeckNamesAndIds maps deck name to deck id.
func (c *Client) DeckNamesAndIds(ctx context.Context) (map[string]int64, error) {
	ids := make(map[string]int64)
	if err := c.invoke(ctx, "deckNamesAndIds", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetDeckStats returns per-deck statistics for the named decks, keyed by
// deck id rendered as a string (engine quirk).
func (c *Client) GetDeckStats(ctx context.Context, decks []string) (map[string]models.DeckStats, error) {
	stats := make(map[string]models.DeckStats)
	params := map[string]any{"decks": decks}
	if err := c.invoke(ctx, "getDeckStats", params, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// FindCards returns the ids of all cards matching the search query.
func (c *Client) FindCards(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	params := map[string]any{"query": query}
	if err := c.invoke(ctx, "findCards", params, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// FindNotes returns the ids of all notes matching the search query.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	params := map[string]any{"query": query}
	if err := c.invoke(ctx, "findNotes", params, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CardsInfo fetches full snapshots for the given card ids, in input order.
func (c *Client) CardsInfo(ctx context.Context, ids []int64) ([]models.Card, error) {
	var cards []models.Card
	params := map[string]any{"cards": ids}
	if err := c.invoke(ctx, "cardsInfo", params, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// CardInfo fetches a single card snapshot.
func (c *Client) CardInfo(ctx context.Context, id int64) (*models.Card, error) {
	cards, err := c.CardsInfo(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, &APIError{Action: "cardsInfo", Message: fmt.Sprintf("card %d not found", id)}
	}
	return &cards[0], nil
}

// NotesInfo fetches full snapshots for the given note ids.
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]models.Note, error) {
	var notes []models.Note
	params := map[string]any{"notes": ids}
	if err := c.invoke(ctx, "notesInfo", params, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// NoteInput is the payload for creating a note.
type NoteInput struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
}

// AddNote creates a note and returns the new note id.
func (c *Client) AddNote(ctx context.Context, note NoteInput) (int64, error) {
	var id int64
	params := map[string]any{"note": note}
	if err := c.invoke(ctx, "addNote", params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateNoteFields replaces field values of an existing note.
func (c *Client) UpdateNoteFields(ctx context.Context, noteID int64, fields map[string]string) error {
	params := map[string]any{
		"note": map[string]any{
			"id":     noteID,
			"fields": fields,
		},
	}
	return c.invoke(ctx, "updateNoteFields", params, nil)
}

// DeleteNotes removes the given notes and all of their cards.
func (c *Client) DeleteNotes(ctx context.Context, ids []int64) error {
	params := map[string]any{"notes": ids}
	return c.invoke(ctx, "deleteNotes", params, nil)
}

// Suspend suspends the given cards.
func (c *Client) Suspend(ctx context.Context, ids []int64) error {
	params := map[string]any{"cards": ids}
	return c.invoke(ctx, "suspend", params, nil)
}

// Unsuspend unsuspends the given cards.
func (c *Client) Unsuspend(ctx context.Context, ids []int64) error {
	params := map[string]any{"cards": ids}
	return c.invoke(ctx, "unsuspend", params, nil)
}

// AreSuspended reports the suspension status for each given card id.
func (c *Client) AreSuspended(ctx context.Context, ids []int64) ([]bool, error) {
	var out []bool
	params := map[string]any{"cards": ids}
	if err := c.invoke(ctx, "areSuspended", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Bury buries the given cards until the next day rollover.
func (c *Client) Bury(ctx context.Context, ids []int64) error {
	params := map[string]any{"cards": ids}
	return c.invoke(ctx, "bury", params, nil)
}

// AddTags adds a space-separated tag string to the given notes.
func (c *Client) AddTags(ctx context.Context, noteIDs []int64, tags string) error {
	params := map[string]any{"notes": noteIDs, "tags": tags}
	return c.invoke(ctx, "addTags", params, nil)
}

// RemoveTags removes a space-separated tag string from the given notes.
func (c *Client) RemoveTags(ctx context.Context, noteIDs []int64, tags string) error {
	params := map[string]any{"notes": noteIDs, "tags": tags}
	return c.invoke(ctx, "removeTags", params, nil)
}

// SetFlag applies a color flag (0 clears, 1-4 are color codes) to a card.
// Engines predating native flag support reject the setFlag action; those fall
// back to writing the card's flags column directly.
func (c *Client) SetFlag(ctx context.Context, cardID int64, flag int) error {
	if flag < 0 || flag > 4 {
		return &ValidationError{Field: "flag", Message: fmt.Sprintf("flag %d out of range 0-4", flag)}
	}
	params := map[string]any{"cards": []int64{cardID}, "flag": flag}
	err := c.invoke(ctx, "setFlag", params, nil)
	if err == nil || !isUnsupportedAction(err) {
		return err
	}
	fallback := map[string]any{
		"card":          cardID,
		"keys":          []string{"flags"},
		"newValues":     []string{strconv.Itoa(flag)},
		"warning_check": true,
	}
	return c.invoke(ctx, "setSpecificValueOfCard", fallback, nil)
}

// isUnsupportedAction matches the engine's rejection of an unknown action.
func isUnsupportedAction(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "unsupported action") || strings.Contains(msg, "is not supported")
}

// AreDue reports the due status for each given card id.
func (c *Client) AreDue(ctx context.Context, ids []int64) ([]bool, error) {
	var out []bool
	params := map[string]any{"cards": ids}
	if err := c.invoke(ctx, "areDue", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AnswerCard submits a grade (1=again, 2=hard, 3=good, 4=easy) for one card.
func (c *Client) AnswerCard(ctx context.Context, cardID int64, ease int) error {
	if ease < 1 || ease > 4 {
		return &ValidationError{Field: "ease", Message: fmt.Sprintf("ease %d out of range 1-4", ease)}
	}
	params := map[string]any{
		"answers": []map[string]any{
			{"cardId": cardID, "ease": ease},
		},
	}
	return c.invoke(ctx, "answerCards", params, nil)
}

// GetIntervals previews the next review intervals (in days) for the given
// cards without answering them.
func (c *Client) GetIntervals(ctx context.Context, ids []int64) ([]int, error) {
	var out []int
	params := map[string]any{"cards": ids}
	if err := c.invoke(ctx, "getIntervals", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ModelNames lists all note-type names.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelNamesAndIds maps note-type name to id.
func (c *Client) ModelNamesAndIds(ctx context.Context) (map[string]int64, error) {
	ids := make(map[string]int64)
	if err := c.invoke(ctx, "modelNamesAndIds", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// FindModelsByID fetches full note-type definitions for the given model ids.
func (c *Client) FindModelsByID(ctx context.Context, ids []int64) ([]models.NoteType, error) {
	var raw []struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		SortF  int    `json:"sortf"`
		Fields []struct {
			Name string `json:"name"`
			Ord  int    `json:"ord"`
		} `json:"flds"`
	}
	params := map[string]any{"modelIds": ids}
	if err := c.invoke(ctx, "findModelsById", params, &raw); err != nil {
		return nil, err
	}
	out := make([]models.NoteType, 0, len(raw))
	for _, m := range raw {
		nt := models.NoteType{
			ID:        m.ID,
			Name:      m.Name,
			SortField: m.SortF,
		}
		for _, f := range m.Fields {
			nt.Fields = append(nt.Fields, models.FieldDef{Name: f.Name, Order: f.Ord})
		}
		out = append(out, nt)
	}
	return out, nil
}

// NoteTypes fetches all note-type definitions in one pass. This is the fetch
// behind the process-wide model cache.
func (c *Client) NoteTypes(ctx context.Context) ([]models.NoteType, error) {
	ids, err := c.ModelNamesAndIds(ctx)
	if err != nil {
		return nil, err
	}
	modelIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		modelIDs = append(modelIDs, id)
	}
	return c.FindModelsByID(ctx, modelIDs)
}

// RetrieveMediaFile fetches a media asset by filename. The second return is
// false when the engine has no such file.
func (c *Client) RetrieveMediaFile(ctx context.Context, filename string) ([]byte, bool, error) {
	var raw json.RawMessage
	params := map[string]any{"filename": filename}
	if err := c.invoke(ctx, "retrieveMediaFile", params, &raw); err != nil {
		return nil, false, err
	}
	// The engine returns base64 bytes, or false/null when the file is absent.
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "false" || trimmed == "null" {
		return nil, false, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, false, fmt.Errorf("decode media payload for %s: %w", filename, err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("decode media base64 for %s: %w", filename, err)
	}
	return data, true, nil
}

// GetMediaFilesNames lists media filenames matching a glob pattern.
func (c *Client) GetMediaFilesNames(ctx context.Context, pattern string) ([]string, error) {
	var names []string
	params := map[string]any{"pattern": pattern}
	if err := c.invoke(ctx, "getMediaFilesNames", params, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetMediaDirPath returns the engine's media directory path.
func (c *Client) GetMediaDirPath(ctx context.Context) (string, error) {
	var path string
	if err := c.invoke(ctx, "getMediaDirPath", nil, &path); err != nil {
		return "", err
	}
	return path, nil
}

// GetClipboard reads the engine host's clipboard contents.
func (c *Client) GetClipboard(ctx context.Context) (string, error) {
	var text string
	if err := c.invoke(ctx, "getClipboard", nil, &text); err != nil {
		return "", err
	}
	return text, nil
}

// SetClipboard writes text to the engine host's clipboard.
func (c *Client) SetClipboard(ctx context.Context, text string) error {
	params := map[string]any{"text": text}
	return c.invoke(ctx, "setClipboard", params, nil)
}
