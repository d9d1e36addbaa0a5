package raster

import (
	"strconv"
	"strings"
)

// DecodePageCount decodes the self-describing output of "identify -format %n":
// the decimal text of the page count N, printed once per frame with no
// separator (a 3-page document prints "333", a 12-page one prints "12"
// twelve times).
//
// The candidate prefix is grown left to right and tested by reconstruction,
// because the count itself may be multi-digit; reading a single character
// would misparse "101010..." as 1.
func DecodePageCount(output string) (int, error) {
	for end := 1; end <= len(output); end++ {
		prefix := output[:end]
		n, err := strconv.Atoi(prefix)
		if err != nil || n < 1 {
			continue
		}
		if n*len(prefix) != len(output) {
			continue
		}
		if strings.Repeat(prefix, n) == output {
			return n, nil
		}
	}
	return 0, ErrPageCountUndetermined
}
