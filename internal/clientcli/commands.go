package clientcli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	qfs "eddisonso.com/go-qfs/pkg/go-qfs-sdk"
)

// readChunk is the size of each read issued by cat, get and put.
const readChunk = 1 << 20

func (a *App) cmdLs(args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	attr, err := a.client.Stat(target)
	if err != nil {
		return err
	}
	if !attr.IsDir() {
		renderAttrTable(a.out, []qfs.Attr{attr})
		return nil
	}

	var entries []qfs.Attr
	if _, err := a.client.Readdir(target, func(e qfs.Attr) {
		entries = append(entries, e)
	}); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No files found")
		return nil
	}
	renderAttrTable(a.out, entries)
	return nil
}

func (a *App) cmdCat(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <path>")
	}
	f, err := a.client.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := copyFromRemote(a.out, f); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *App) cmdGet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get <remote> <local>")
	}
	remote, local := args[0], args[1]

	attr, err := a.client.Stat(remote)
	if err != nil {
		return err
	}
	f, err := a.client.Open(remote)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	var w io.Writer = out
	finish := func() {}
	if attr.Size() > 0 {
		t := newTransfer("Downloading", attr.Size())
		w, finish = t.writer(out), t.finish
	}

	n, err := copyFromRemote(w, f)
	finish()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", n, local)
	return nil
}

func (a *App) cmdPut(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: put <local> <remote>")
	}
	local, remote := args[0], args[1]

	in, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer in.Close()
	stat, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	var r io.Reader = in
	finish := func() {}
	if stat.Size() > 0 {
		t := newTransfer("Uploading", stat.Size())
		r, finish = t.reader(in), t.finish
	}

	var n int64
	err = a.client.WithFile(remote, qfs.O_WRONLY|qfs.O_CREATE|qfs.O_TRUNC, func(f *qfs.File) error {
		var err error
		n, err = copyToRemote(f, r)
		return err
	})
	finish()
	if err != nil {
		return fmt.Errorf("put failed: %w", err)
	}
	fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", n, remote)
	return nil
}

func (a *App) cmdWrite(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: write <path> <data>")
	}
	p := args[0]
	data := []byte(strings.Join(args[1:], " "))

	err := a.client.WithFile(p, qfs.O_WRONLY|qfs.O_CREATE|qfs.O_TRUNC, func(f *qfs.File) error {
		return writeFull(f, data)
	})
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", len(data), p)
	return nil
}

func (a *App) cmdRm(args []string) error {
	force, rest := extractFlag(args, "-f")
	if len(rest) != 1 {
		return fmt.Errorf("usage: rm [-f] <path>")
	}
	remove := a.client.Remove
	if force {
		remove = a.client.RemoveIfExists
	}
	if err := remove(rest[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", rest[0])
	return nil
}

func (a *App) cmdMkdir(args []string) error {
	parents, rest := extractFlag(args, "-p")
	if len(rest) != 1 {
		return fmt.Errorf("usage: mkdir [-p] <path>")
	}
	mkdir := a.client.Mkdir
	if parents {
		mkdir = a.client.MkdirAll
	}
	return mkdir(rest[0], 0755)
}

func (a *App) cmdRmdir(args []string) error {
	recursive, rest := extractFlag(args, "-r")
	if len(rest) != 1 {
		return fmt.Errorf("usage: rmdir [-r] <path>")
	}
	if recursive {
		return a.client.RmdirAll(rest[0])
	}
	return a.client.Rmdir(rest[0])
}

func (a *App) cmdMv(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: mv <source> <destination>")
	}
	if err := a.client.Rename(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Renamed %s -> %s\n", args[0], args[1])
	return nil
}

func (a *App) cmdChmod(args []string) error {
	recursive, rest := extractFlag(args, "-R")
	if len(rest) != 2 {
		return fmt.Errorf("usage: chmod [-R] <mode> <path>")
	}
	perm, err := parseMode(rest[0])
	if err != nil {
		return err
	}
	if recursive {
		return a.client.ChmodAll(rest[1], perm)
	}
	return a.client.Chmod(rest[1], perm)
}

func (a *App) cmdStat(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stat <path>")
	}
	attr, err := a.client.Stat(args[0])
	if err != nil {
		return err
	}
	renderAttr(a.out, attr)
	return nil
}

func (a *App) cmdCd(args []string) error {
	target := "/"
	if len(args) > 0 {
		target = args[0]
	}
	return a.client.Cd(target)
}

func (a *App) cmdPwd() error {
	wd, err := a.client.Getwd(qfs.DefaultMaxPathLen)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, wd)
	return nil
}

// copyFromRemote reads f to the end into w.
func copyFromRemote(w io.Writer, f *qfs.File) (int64, error) {
	var total int64
	for {
		data, err := f.Read(readChunk)
		if err != nil {
			return total, err
		}
		if len(data) == 0 {
			return total, nil
		}
		if _, err := w.Write(data); err != nil {
			return total, err
		}
		total += int64(len(data))
	}
}

// copyToRemote writes everything from r into f.
func copyToRemote(f *qfs.File, r io.Reader) (int64, error) {
	buf := make([]byte, readChunk)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := writeFull(f, buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// writeFull retries partial writes until p is stored.
func writeFull(f *qfs.File, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

func parseMode(s string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(s, 8, 32)
	if err != nil || mode > 0777 {
		return 0, fmt.Errorf("invalid mode %q: want octal permission bits like 755", s)
	}
	return os.FileMode(mode), nil
}
