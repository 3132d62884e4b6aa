package database

import "strconv"

// ParseID: path/query'den gelen kayıt id'si. "1abc", "-1" ve "0" geçersizdir.
func ParseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
