package anki

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCardsSendsQuery(t *testing.T) {
	server, seen := newBridge(t, func(req echoRequest) (any, *string) {
		return []int64{11, 22}, nil
	})

	client := NewClient(server.URL)
	ids, err := client.FindCards(context.Background(), "deck:Spanish is:due")

	require.NoError(t, err)
	assert.Equal(t, []int64{11, 22}, ids)

	var params struct {
		Query string `json:"query"`
	}
	require.NoError(t, json.Unmarshal((*seen)[0].Params, &params))
	assert.Equal(t, "deck:Spanish is:due", params.Query)
}

func TestCardsInfoDecodesFields(t *testing.T) {
	server, _ := newBridge(t, func(req echoRequest) (any, *string) {
		return []map[string]any{
			{
				"cardId":    int64(42),
				"deckName":  "Spanish",
				"modelName": "Basic",
				"question":  "<b>hola</b>",
				"answer":    "hello",
				"flags":     2,
				"fields": map[string]any{
					"Front": map[string]any{"value": "hola", "order": 0},
					"Back":  map[string]any{"value": "hello", "order": 1},
				},
			},
		}, nil
	})

	client := NewClient(server.URL)
	cards, err := client.CardsInfo(context.Background(), []int64{42})

	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, int64(42), cards[0].CardID)
	assert.Equal(t, "Spanish", cards[0].DeckName)
	assert.Equal(t, 2, cards[0].Flags)
	assert.Equal(t, "hola", cards[0].Fields["Front"].Value)
	assert.Equal(t, 1, cards[0].Fields["Back"].Order)
}

func TestCardInfoMissing(t *testing.T) {
	server, _ := newBridge(t, func(req echoRequest) (any, *string) {
		return []any{}, nil
	})

	client := NewClient(server.URL)
	_, err := client.CardInfo(context.Background(), 99)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "99")
}

func TestSetFlagValidatesRange(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	err := client.SetFlag(context.Background(), 1, 7)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "flag", vErr.Field)
}

func TestSetFlagFallback(t *testing.T) {
	server, seen := newBridge(t, func(req echoRequest) (any, *string) {
		if req.Action == "setFlag" {
			msg := "unsupported action"
			return nil, &msg
		}
		return []bool{true}, nil
	})

	client := NewClient(server.URL)
	require.NoError(t, client.SetFlag(context.Background(), 42, 3))

	require.Len(t, *seen, 2)
	assert.Equal(t, "setFlag", (*seen)[0].Action)
	assert.Equal(t, "setSpecificValueOfCard", (*seen)[1].Action)

	var params struct {
		Card      int64    `json:"card"`
		Keys      []string `json:"keys"`
		NewValues []string `json:"newValues"`
	}
	require.NoError(t, json.Unmarshal((*seen)[1].Params, &params))
	assert.Equal(t, int64(42), params.Card)
	assert.Equal(t, []string{"flags"}, params.Keys)
	assert.Equal(t, []string{"3"}, params.NewValues)
}

func TestSetFlagDoesNotFallBackOnOtherErrors(t *testing.T) {
	server, seen := newBridge(t, func(req echoRequest) (any, *string) {
		msg := "database locked"
		return nil, &msg
	})

	client := NewClient(server.URL)
	err := client.SetFlag(context.Background(), 42, 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, *seen, 1)
}

func TestAnswerCardValidatesEase(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	var vErr *ValidationError
	require.ErrorAs(t, client.AnswerCard(context.Background(), 1, 0), &vErr)
	require.ErrorAs(t, client.AnswerCard(context.Background(), 1, 5), &vErr)
}

func TestAnswerCardPayload(t *testing.T) {
	server, seen := newBridge(t, func(req echoRequest) (any, *string) {
		return []bool{true}, nil
	})

	client := NewClient(server.URL)
	require.NoError(t, client.AnswerCard(context.Background(), 7, 3))

	assert.Equal(t, "answerCards", (*seen)[0].Action)
	var params struct {
		Answers []struct {
			CardID int64 `json:"cardId"`
			Ease   int   `json:"ease"`
		} `json:"answers"`
	}
	require.NoError(t, json.Unmarshal((*seen)[0].Params, &params))
	require.Len(t, params.Answers, 1)
	assert.Equal(t, int64(7), params.Answers[0].CardID)
	assert.Equal(t, 3, params.Answers[0].Ease)
}

func TestRetrieveMediaFile(t *testing.T) {
	payload := []byte{0x49, 0x44, 0x33, 0x04}

	tests := []struct {
		name     string
		result   any
		wantData []byte
		wantOK   bool
	}{
		{"present", base64.StdEncoding.EncodeToString(payload), payload, true},
		{"absent", false, nil, false},
		{"null", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newBridge(t, func(req echoRequest) (any, *string) {
				return tt.result, nil
			})

			client := NewClient(server.URL)
			data, ok, err := client.RetrieveMediaFile(context.Background(), "a.mp3")

			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestRetrieveMediaFileBadBase64(t *testing.T) {
	server, _ := newBridge(t, func(req echoRequest) (any, *string) {
		return "not!!base64", nil
	})

	client := NewClient(server.URL)
	_, _, err := client.RetrieveMediaFile(context.Background(), "a.mp3")
	assert.Error(t, err)
}

func TestNoteTypes(t *testing.T) {
	server, _ := newBridge(t, func(req echoRequest) (any, *string) {
		switch req.Action {
		case "modelNamesAndIds":
			return map[string]int64{"Basic": 1001}, nil
		case "findModelsById":
			return []map[string]any{
				{
					"id":    int64(1001),
					"name":  "Basic",
					"sortf": 0,
					"flds": []map[string]any{
						{"name": "Front", "ord": 0},
						{"name": "Back", "ord": 1},
					},
				},
			}, nil
		}
		return nil, nil
	})

	client := NewClient(server.URL)
	types, err := client.NoteTypes(context.Background())

	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Basic", types[0].Name)
	require.Len(t, types[0].Fields, 2)
	assert.Equal(t, "Back", types[0].Fields[1].Name)
	assert.Equal(t, 1, types[0].Fields[1].Order)
}

func TestGetDeckStatsKeyedByID(t *testing.T) {
	server, _ := newBridge(t, func(req echoRequest) (any, *string) {
		return map[string]any{
			"1651445861967": map[string]any{
				"deck_id":       int64(1651445861967),
				"name":          "Spanish",
				"new_count":     4,
				"learn_count":   2,
				"review_count":  9,
				"total_in_deck": 300,
			},
		}, nil
	})

	client := NewClient(server.URL)
	stats, err := client.GetDeckStats(context.Background(), []string{"Spanish"})

	require.NoError(t, err)
	got, ok := stats["1651445861967"]
	require.True(t, ok)
	assert.Equal(t, "Spanish", got.Name)
	assert.Equal(t, 9, got.ReviewCount)
}
