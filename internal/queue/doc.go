// Package queue holds utterances waiting to be spoken. It is an unbounded
// FIFO with a blocking Dequeue, so producers never wait on the speaker.
package queue
