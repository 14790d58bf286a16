// Package server wraps http.Server with graceful shutdown, environment
// configuration, and errgroup-friendly lifecycle management.
//
// Both gateway binaries run their servers the same way:
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	eg, ctx := errgroup.WithContext(ctx)
//	eg.Go(srv.Run(ctx, router))
//	return eg.Wait()
//
// Run starts the server, watches the context, and shuts down gracefully
// within the configured timeout when the context is cancelled.
package server
