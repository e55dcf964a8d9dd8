package core

import "strconv"

// utoa formats n in decimal for debug lines
func utoa(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}
