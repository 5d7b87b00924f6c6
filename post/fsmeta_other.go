//go:build !linux

package post

import "time"

func birthTime(string) time.Time {
	return time.Time{}
}
