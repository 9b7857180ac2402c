package videos

import "errors"

var (
	// ErrNotVideo indicates the declared media type is outside the video category.
	ErrNotVideo = errors.New("file must be a video")
)
