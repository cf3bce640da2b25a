package native

import (
	"context"

	"eddisonso.com/go-qfs/internal/metaserver"
	"eddisonso.com/go-qfs/pkg/kfs"
)

// localService serves sessions straight from a namespace. The namespace
// outlives its sessions, so Close does nothing.
type localService struct {
	*metaserver.Namespace
}

func (localService) Close() error { return nil }

// LocalDialer opens sessions on an in-process namespace. Host and port are
// ignored.
func LocalDialer(ns *metaserver.Namespace, opts SessionOptions) kfs.Dialer {
	return kfs.DialerFunc(func(ctx context.Context, host string, port int) (kfs.Client, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewSession(localService{ns}, opts), nil
	})
}
