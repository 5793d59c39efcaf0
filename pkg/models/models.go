package models

// NoteField is a single field value on a note, with its display order.
type NoteField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// Card is an immutable snapshot of a single card as reported by the engine.
// Every state change is round-tripped through the engine and the snapshot
// refetched; nothing here is mutated locally.
type Card struct {
	CardID    int64                `json:"cardId"`
	NoteID    int64                `json:"note"`
	DeckName  string               `json:"deckName"`
	ModelName string               `json:"modelName"`
	Template  string               `json:"template"`
	Question  string               `json:"question"`
	Answer    string               `json:"answer"`
	Front     string               `json:"front"`
	Back      string               `json:"back"`
	CSS       string               `json:"css"`
	Interval  int                  `json:"interval"`
	Ease      int                  `json:"factor"`
	Reps      int                  `json:"reps"`
	Lapses    int                  `json:"lapses"`
	Left      int                  `json:"left"`
	Flags     int                  `json:"flags"`
	Suspended bool                 `json:"suspended"`
	Tags      []string             `json:"tags"`
	Fields    map[string]NoteField `json:"fields"`
}

// Note represents a note with its fields and owning cards.
type Note struct {
	NoteID    int64                `json:"noteId"`
	ModelName string               `json:"modelName"`
	Fields    map[string]NoteField `json:"fields"`
	Tags      []string             `json:"tags"`
	Cards     []int64              `json:"cards"`
}

// FieldDef describes one field of a note type.
type FieldDef struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// NoteType (a "model" in engine terms) describes the shape of a note.
type NoteType struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Fields    []FieldDef `json:"fields"`
	SortField int        `json:"sortf"`
}

// DeckStats holds aggregate counts for one deck.
type DeckStats struct {
	DeckID      int64  `json:"deck_id"`
	Name        string `json:"name"`
	NewCount    int    `json:"new_count"`
	LearnCount  int    `json:"learn_count"`
	ReviewCount int    `json:"review_count"`
	TotalInDeck int    `json:"total_in_deck"`
}

// CardListEntry pairs a card id with its truncated sort-field preview,
// computed once at session start for the card list display.
type CardListEntry struct {
	CardID  int64
	Preview string
}

// SessionStats tracks per-session grading counts. Total is fixed when the
// session is created; the remaining counters only ever grow.
type SessionStats struct {
	Total   int
	Studied int
	Again   int
	Hard    int
	Good    int
	Easy    int
}
