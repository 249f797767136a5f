// SPDX-License-Identifier: Apache-2.0

package apilist

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Canonicalize rewrites a raw API list so that repeated generations of the
// same content are byte-identical: the header line is kept in place and every
// following line is sorted lexicographically. The transformation is purely
// line-based so the generator's own quoting and spacing survive untouched.
func Canonicalize(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var header string
	var rows []string
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			header = line
			first = false
			continue
		}
		if line == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("apilist: scan: %w", err)
	}
	if first {
		return ErrEmptyList
	}

	sort.Strings(rows)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(header + "\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := bw.WriteString(row + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SortEntries orders the in-memory list the same way Canonicalize orders raw
// lines, so a decoded list and the canonical file agree on ordering.
func SortEntries(list *List) {
	sort.Slice(list.Entries, func(i, j int) bool {
		return strings.Join(encodeRecord(list.Entries[i]), ",") <
			strings.Join(encodeRecord(list.Entries[j]), ",")
	})
}
