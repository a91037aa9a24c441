package podcast

import "context"

// Transcriber turns downloaded audio into text. Implementations live outside
// this module; a nil Transcriber leaves transcript_path empty.
type Transcriber interface {
	Transcribe(ctx context.Context, ep Episode, audioPath string) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, ep Episode, audioPath string) (string, error)

// Transcribe implements Transcriber.
func (f TranscriberFunc) Transcribe(ctx context.Context, ep Episode, audioPath string) (string, error) {
	return f(ctx, ep, audioPath)
}
