//go:build !linux && !darwin && !freebsd

package filesystem

import "time"

func birthTime(string) time.Time { return time.Time{} }
