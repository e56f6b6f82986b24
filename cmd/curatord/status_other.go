//go:build !unix

package main

import "errors"

func diskUsage(string) (uint64, uint64, error) {
	return 0, 0, errors.New("disk usage not supported on this platform")
}
