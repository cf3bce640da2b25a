package kfs

import "path"

// Resolve makes p absolute against cwd and cleans it.
func Resolve(cwd, p string) string {
	if p == "" {
		p = "."
	}
	if !path.IsAbs(p) {
		if cwd == "" {
			cwd = "/"
		}
		p = path.Join(cwd, p)
	}
	return path.Clean(p)
}

// Split returns the parent directory and final element of an absolute path.
// The root splits into "/" and "".
func Split(p string) (dir, name string) {
	p = path.Clean(p)
	if p == "/" {
		return "/", ""
	}
	return path.Dir(p), path.Base(p)
}
