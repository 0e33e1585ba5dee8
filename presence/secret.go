package presence

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Join-secret format constants. The secret is an opaque token that round-
// trips through the remote peer unmodified; it must stay within the peer's
// 128-byte secret limit.
const (
	// SecretScheme is the URI scheme a remote instance's listener handles.
	SecretScheme = "eternalrp"
	// MaxSecretBytes is the hard cap on the encoded secret.
	MaxSecretBytes = 128
	// maxTrackRunes and maxArtistRunes cap each field before escaping.
	maxTrackRunes  = 50
	maxArtistRunes = 30
)

// BuildJoinSecret encodes track, artist, and position as
// eternalrp://sync?track=..&artist=..&pos=.. with each field URL-escaped.
// A negative pos omits the position. The result is hard-truncated to
// MaxSecretBytes; the truncated tail may split an escape sequence, which
// the defensive parser on the receiving side tolerates.
func BuildJoinSecret(track, artist string, pos int) string {
	s := fmt.Sprintf("%s://sync?track=%s&artist=%s",
		SecretScheme,
		url.QueryEscape(truncateRunes(track, maxTrackRunes)),
		url.QueryEscape(truncateRunes(artist, maxArtistRunes)))
	if pos >= 0 {
		s += "&pos=" + strconv.Itoa(pos)
	}
	if len(s) > MaxSecretBytes {
		s = s[:MaxSecretBytes]
	}
	return s
}

// SyncRequest is the playback state recovered from a join secret.
type SyncRequest struct {
	Track  string
	Artist string
	// Position is the playback position in seconds; -1 when absent.
	Position int
}

// ParseJoinSecret re-parses a join secret defensively: any field may be
// absent or mangled by truncation, and the result degrades to a best-effort
// display rather than failing.
func ParseJoinSecret(uri string) SyncRequest {
	req := SyncRequest{Track: "Unknown Track", Position: -1}

	rest, ok := strings.CutPrefix(uri, SecretScheme+"://")
	if !ok {
		return req
	}

	_, query, found := strings.Cut(rest, "?")
	if !found {
		// Allow the bare form eternalrp://Something.
		if name, err := url.PathUnescape(strings.Trim(rest, "/")); err == nil && name != "" {
			req.Track = name
		}
		return req
	}

	// url.ParseQuery errors on a mangled tail but still returns what it
	// could parse; use the partial result.
	values, _ := url.ParseQuery(query)
	if track := values.Get("track"); track != "" {
		req.Track = track
	}
	if artist := values.Get("artist"); artist != "" {
		req.Artist = artist
	}
	if pos := values.Get("pos"); pos != "" {
		if n, err := strconv.Atoi(pos); err == nil && n >= 0 {
			req.Position = n
		}
	}
	return req
}

// truncateRunes caps s at n runes without splitting a multi-byte character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
