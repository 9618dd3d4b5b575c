// Package util contains small helpers shared across the module
package util

import (
	"strconv"
	"strings"
	"time"
)

// IntSliceToCSV converts a slice of ints to a comma separated string
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// SecsToDuration converts a number of seconds to a time.Duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs * 1e9)
}

// UniqueInt removes duplicates from a slice of ints, preserving order
func UniqueInt(is []int) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(is))
	for _, v := range is {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
