// Package language normalizes operator-supplied language identifiers to the
// ISO 639-2 three-letter codes ffmpeg expects in stream metadata.
//
// Input may be a 2-letter code ("en"), a 3-letter code ("eng"), a BCP 47 tag
// ("en-US"), or a full English word ("English"). Unresolvable input maps to
// "und" so a bad edit never aborts a remux.
package language
