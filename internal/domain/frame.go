package domain

// Frame is one image sample extracted from a reel, with its ordinal index.
// Frames are immutable once extracted; the pipeline only holds a read-only
// reference for the duration of one run.
type Frame struct {
	Index int    `json:"index"`
	MIME  string `json:"mime"`
	Data  []byte `json:"-"`
}
