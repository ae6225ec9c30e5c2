/*
Package streaming delivers rendered outputs to HTTP clients without letting a
slow or vanished client pin a handler goroutine.

Writer wraps an http.ResponseWriter. Every write is bounded by
Config.WriteTimeout, the gap between writes by Config.IdleTimeout and the
whole transfer by Config.MaxDuration. Large writes are split into
Config.ChunkSize pieces with a flush after each one.

	f, err := os.Open(info.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := streaming.Copy(r.Context(), w, f, streaming.DefaultConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		return nil
	}

The sentinel errors ErrWriteTimeout, ErrClientGone and ErrStreamCanceled tell
the caller why a transfer stopped. Only ErrWriteTimeout and ErrStreamCanceled
point at a misbehaving client; ErrClientGone is an ordinary disconnect.
*/
package streaming
