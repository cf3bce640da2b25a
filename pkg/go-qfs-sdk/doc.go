// Package qfs provides a Go SDK for interacting with a QFS metaserver.
//
// A Client is one session with the metaserver. Files and directory
// iterators opened through it borrow that session and stop working once the
// client is released:
//
//	err := qfs.WithClient(ctx, "metaserver", qfs.DefaultPort, func(c *qfs.Client) error {
//		return c.WithFile("/x.txt", qfs.O_WRONLY|qfs.O_CREATE, func(f *qfs.File) error {
//			_, err := f.Write([]byte("hello"))
//			return err
//		})
//	})
//
// Every failure is an *Error whose kind can be tested with errors.Is against
// the Err* sentinels.
package qfs
