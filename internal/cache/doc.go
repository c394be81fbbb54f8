// Package cache keeps synthesized PCM clips so a phrase that is spoken
// again (canned rule responses, the fallback line) skips synthesis. A small
// in-memory LRU sits in front of a zstd-compressed directory that survives
// restarts.
package cache
