package chat

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ErrInvalidVideo is returned for identifiers that name no YouTube video.
var ErrInvalidVideo = errors.New("not a YouTube video URL or id")

// VideoID extracts the video id from a youtu.be, watch?v=, /live/ or
// /shorts/ URL, or accepts a bare id.
func VideoID(identifier string) (string, error) {
	s := strings.TrimSpace(identifier)
	if videoIDPattern.MatchString(s) {
		return s, nil
	}

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", ErrInvalidVideo
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.Trim(u.Path, "/")

	var id string
	switch host {
	case "youtu.be":
		id, _, _ = strings.Cut(path, "/")
	case "youtube.com", "music.youtube.com":
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(path, "live/"), strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "embed/"):
			_, rest, _ := strings.Cut(path, "/")
			id, _, _ = strings.Cut(rest, "/")
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", ErrInvalidVideo
	}
	return id, nil
}
