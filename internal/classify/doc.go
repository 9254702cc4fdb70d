// Package classify derives a media identity from a filename.
//
// Classification is a pure function over the name: an ordered table of TV
// episode patterns is tried first, and anything that matches none of them is
// a movie whose title is the cleaned-up name. No filesystem or catalog access
// happens here, so the rules are directly unit-testable on strings.
package classify
