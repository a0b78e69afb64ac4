package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxCaptionBytes bounds how much caption payload we are willing to read.
const maxCaptionBytes = 8 << 20

// captionFormatRank orders caption payload formats by how well the
// normalizer handles them.
var captionFormatRank = map[string]int{
	"vtt": 3,
	"srt": 2,
	"txt": 1,
}

// SelectCaption picks the best track from a list: manually authored beats
// auto-generated, English beats other languages, and better-supported payload
// formats beat obscure ones. Returns nil when the list is empty.
func SelectCaption(tracks []CaptionTrack) *CaptionTrack {
	var best *CaptionTrack
	bestScore := -1

	for i := range tracks {
		t := &tracks[i]
		score := 0
		if !t.Auto {
			score += 100
		}
		if t.Language == "en" || strings.HasPrefix(t.Language, "en-") {
			score += 10
		}
		score += captionFormatRank[strings.ToLower(t.Format)]

		if score > bestScore {
			best = t
			bestScore = score
		}
	}
	return best
}

// FetchCaptionText downloads one caption payload as raw text.
func FetchCaptionText(ctx context.Context, track CaptionTrack) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build caption request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption download failed: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read caption payload: %w", err)
	}
	return string(data), nil
}
