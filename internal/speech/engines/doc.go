// Package engines holds the PCM synthesizers behind speech.SynthSpeaker:
// Piper for offline voices and gTTS for Google Translate voices. Both run
// external programs and return 16-bit little-endian mono PCM.
package engines
