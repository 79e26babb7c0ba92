// Package size parses human readable byte sizes such as "2mb" on the command line.
package size

import (
	"fmt"
	"regexp"
	"strconv"
)

// Size represents size that implements flag.Var
type Size int64

// the following regexes follow Go semantics https://golang.org/ref/spec#Letters_and_digits
var (
	rB  = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+$`)
	rKB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+kb$`)
	rMB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+mb$`)
	rGB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+gb$`)
	rTB = regexp.MustCompile(`(?i)^(?:0b|0x|0o)?[\da-f_]+tb$`)
)

const (
	_ = 1 << (iota * 10)
	KB
	MB
	GB
	TB
)

// Set parses size to integer from different bases and data units
func (siz *Size) Set(size string) (err error) {
	if size == "" {
		return
	}

	var (
		unit int64 = 1
		num        = size
	)
	s := []byte(size)
	switch {
	case rB.Match(s):
	case rKB.Match(s):
		unit, num = KB, size[:len(size)-2]
	case rMB.Match(s):
		unit, num = MB, size[:len(size)-2]
	case rGB.Match(s):
		unit, num = GB, size[:len(size)-2]
	case rTB.Match(s):
		unit, num = TB, size[:len(size)-2]
	default:
		return fmt.Errorf("invalid size %q", size)
	}

	n, err := strconv.ParseInt(num, 0, 64)
	if err != nil {
		return err
	}
	*siz = Size(n * unit)
	return nil
}

func (siz *Size) String() string {
	return fmt.Sprintf("%d", *siz)
}

// UnmarshalText lets yaml config files carry sizes as strings.
func (siz *Size) UnmarshalText(text []byte) error {
	return siz.Set(string(text))
}
