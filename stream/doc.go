/*
Package stream provides a pull-based byte stream and the contract a live
producer must satisfy to feed one.

# Readable

Readable is the consumer-facing side. Data enters through Push and the stream
is terminated with PushEOF. Consumers pull with ReadChunk (non-blocking) or Read
(io.Reader, blocking), or switch to flowing mode with Resume and receive chunks
through OnData.

When the buffer drops below its high water mark and a reader asks for more, the
Readable calls its pull hook, the implementation-supplied "provide more data
now" callback. Push reports false once the buffered bytes reach the high water
mark; a well-behaved pull hook stops pushing when that happens and waits for
the next pull.

Lifecycle notifications:

  - readable: data was pushed, or EOF was reached, while not flowing
  - data: a chunk delivered in flowing mode
  - end: EOF was pushed and the buffer has been drained by a reader
  - close: Close was called
  - error: Fail was called

Each subscription returns an *event.Subscription so callers can detach.

# Producer

Producer is the producer-facing contract: a non-blocking ReadChunk, a readable
notification, data/end/close/error notifications and Resume. Readable satisfies
Producer, so one Readable can feed another.
*/
package stream
