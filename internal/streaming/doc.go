/*
Package streaming sends finished clips to HTTP clients with protection
against slow or vanished readers.

[Send] copies a known number of bytes and only returns nil when every byte
was accepted by the client. The download handler uses that to decide whether
a clip was delivered and may be deleted:

	res, err := streaming.Send(r.Context(), w, file, a.Size, streaming.DefaultConfig())
	store.Release(a, err == nil)

A [Writer] bounds each write with WriteTimeout and the whole transfer with
IdleTimeout. Failures are reported as [ErrWriteTimeout], [ErrClientGone] or
[ErrIncomplete].
*/
package streaming
