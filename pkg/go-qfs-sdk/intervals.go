package qfs

import (
	"iter"
	"path"
	"regexp"
)

var (
	yearName     = regexp.MustCompile(`\d{4}`)
	twoDigitName = regexp.MustCompile(`\d\d`)
	intervalName = regexp.MustCompile(`\.s\d+\.e\d+`)
)

// Intervals walks root laid out as year/month/day directories and yields the
// path of every interval file, named like "name.s<start>.e<end>", in listing
// order. Entries that do not look like a year, month or day directory are
// skipped. The walk stops at the first error, which is yielded.
func (c *Client) Intervals(root string) iter.Seq2[string, error] {
	levels := []*regexp.Regexp{yearName, twoDigitName, twoDigitName}
	return func(yield func(string, error) bool) {
		c.walkIntervals(root, levels, yield)
	}
}

// walkIntervals reports false once the walk must stop.
func (c *Client) walkIntervals(dir string, levels []*regexp.Regexp, yield func(string, error) bool) bool {
	for attr, err := range c.Entries(dir) {
		if err != nil {
			yield("", err)
			return false
		}
		name := attr.Name()
		p := path.Join(dir, name)

		if len(levels) == 0 {
			if intervalName.MatchString(name) && !yield(p, nil) {
				return false
			}
			continue
		}
		if !attr.IsDir() || !levels[0].MatchString(name) {
			continue
		}
		if !c.walkIntervals(p, levels[1:], yield) {
			return false
		}
	}
	return true
}
