package main

import (
	"context"
	"log/slog"

	"github.com/lancerhub/marketplace/libs/grpcx"
)

const grpcServiceName = "marketplace.booking.v1"

// startGRPC exposes the standard health service for orchestrators and
// service meshes.
func startGRPC(ctx context.Context, logger *slog.Logger, addr string) error {
	srv := grpcx.NewServer(logger)
	if err := srv.Start(ctx, addr); err != nil {
		return err
	}
	srv.SetServing(grpcServiceName, true)
	return nil
}
