package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type bookRecord struct {
	Code   string
	Title  string
	Author string
	Stock  int
}

// parseBookRecords reads code,title,author,stock rows. A first row starting
// with "code" is treated as a header.
func parseBookRecords(r io.Reader) ([]bookRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("book file could not be read: %w", err)
	}

	records := make([]bookRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "code") {
			continue
		}

		stock, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("line %d: invalid stock %q", i+1, row[3])
		}

		records = append(records, bookRecord{
			Code:   strings.TrimSpace(row[0]),
			Title:  strings.TrimSpace(row[1]),
			Author: strings.TrimSpace(row[2]),
			Stock:  stock,
		})
	}
	return records, nil
}
