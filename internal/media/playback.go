package media

import (
	"context"

	"go.uber.org/zap"
)

// Player plays a single resolved asset. Play returns once playback has ended
// or errored; PlayAll relies on that to serialize the queue.
type Player interface {
	Play(ctx context.Context, p Playable) error
}

// PlayAll plays the resolved assets strictly sequentially in document order:
// each element's end-or-error is awaited before the next one starts. Playback
// failures are logged and do not block the rest of the queue.
func PlayAll(ctx context.Context, player Player, playables []Playable, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, p := range playables {
		if ctx.Err() != nil {
			return
		}
		if err := player.Play(ctx, p); err != nil {
			log.Warn("playback failed", zap.String("file", p.Filename), zap.Error(err))
		}
	}
}

// NopPlayer discards playback requests. It stands in when no audio backend
// is available; the queue still advances element by element.
type NopPlayer struct{}

// Play implements Player.
func (NopPlayer) Play(ctx context.Context, p Playable) error { return nil }
