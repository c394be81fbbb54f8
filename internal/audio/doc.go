// Package audio plays raw 16-bit little-endian PCM through the system
// output device using oto. Play blocks until the clip has finished, which
// is what keeps utterances from overlapping.
package audio
