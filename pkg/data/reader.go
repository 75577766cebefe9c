// Package data loads the whitespace-delimited training/test matrices,
// label files, and MRMR permutation files the CLI takes as input (spec
// §6), grounded on original_source/src/db.cpp's CSVReader: every row must
// have the same column count, and a mismatch is fatal rather than a
// silently truncated read.
package data

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/efficomp/hpknn/pkg/knn"
)

// ReadMatrix loads a whitespace-separated table of float32 values into a
// knn.Matrix. Every line must have the same number of fields; a mismatch
// is reported as an error (original_source exits the whole process on
// this condition — callers here are expected to treat it the same way via
// spec §7's "malformed input" row).
func ReadMatrix(path string) (*knn.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var data []float32
	cols := -1
	rows := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if cols == -1 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, fmt.Errorf("%s: line %d has %d columns, expected %d", path, rows+1, len(fields), cols)
		}

		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: line %d: %w", path, rows+1, err)
			}
			data = append(data, float32(v))
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	return &knn.Matrix{Data: data, Rows: rows, Cols: cols}, nil
}

// ReadLabels loads one unsigned integer label per line.
func ReadLabels(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var labels []uint32
	line := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		line++
		if text == "" {
			continue
		}
		v, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		labels = append(labels, uint32(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	return labels, nil
}

// ReadPermutation loads the MRMR feature-importance permutation: one
// 0-based column index per line, most important feature first. It
// validates that the result is a bijection on [0, nFeatures) — a
// malformed permutation (duplicate or out-of-range index) is an error
// rather than a silently accepted partial reorder.
func ReadPermutation(path string, nFeatures int) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var perm []int
	line := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		line++
		if text == "" {
			continue
		}
		v, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, line, err)
		}
		perm = append(perm, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := validatePermutation(perm, nFeatures); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return perm, nil
}

func validatePermutation(perm []int, nFeatures int) error {
	if len(perm) != nFeatures {
		return fmt.Errorf("permutation has %d entries, expected %d", len(perm), nFeatures)
	}
	seen := make([]bool, nFeatures)
	for _, idx := range perm {
		if idx < 0 || idx >= nFeatures {
			return fmt.Errorf("index %d out of range [0,%d)", idx, nFeatures)
		}
		if seen[idx] {
			return fmt.Errorf("index %d repeated, not a bijection", idx)
		}
		seen[idx] = true
	}
	return nil
}
