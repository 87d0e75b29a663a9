// Package tagging reads ID3 metadata off fetched source audio so ingested
// tracks carry their title/artist/album in the index.
package tagging

import (
	"bytes"

	"github.com/bogem/id3v2/v2"

	"github.com/emoteam/emopipe/internal/domain"
)

// ReadMP3 extracts ID3 metadata from MP3 bytes into the track record.
// Untagged or unreadable tags are not an error; the fields stay empty.
func ReadMP3(mp3Bytes []byte, track *domain.Track) {
	tag, err := id3v2.ParseReader(bytes.NewReader(mp3Bytes), id3v2.Options{Parse: true})
	if err != nil {
		return
	}
	defer tag.Close()

	track.Title = tag.Title()
	track.Artist = tag.Artist()
	track.Album = tag.Album()
	track.Genre = tag.Genre()
	track.Year = tag.Year()
}
