package main

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// containerFiles lists the containers in dir in block order.
func containerFiles(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		ni, nj := blockNumber(files[i]), blockNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

func blockNumber(path string) int {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if pos := strings.LastIndexByte(name, '_'); pos > -1 {
		if n, err := strconv.Atoi(name[pos+1:]); err == nil {
			return n
		}
	}
	return -1
}
