package narrate

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/tcolgate/mp3"
)

// audioDuration sums MP3 frame durations to get the true playback length.
// Trailing garbage after at least one valid frame is tolerated; ID3 and other
// junk before the first frame is not.
func audioDuration(data []byte) (time.Duration, error) {
	dec := mp3.NewDecoder(bytes.NewReader(data))

	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for {
		err := dec.Decode(&frame, &skipped)
		if err == io.EOF {
			break
		}
		if err != nil {
			if frames > 0 {
				break
			}
			return 0, fmt.Errorf("narrate: decode mp3 frame: %w", err)
		}
		total += frame.Duration()
		frames++
	}
	if frames == 0 {
		return 0, fmt.Errorf("narrate: no mp3 frames in %d bytes", len(data))
	}
	return total, nil
}
