package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/domain"
)

func TestParseBookRecords(t *testing.T) {
	input := "code,title,author,stock\nB1, Dune, Frank Herbert, 3\nB2,Emma,Jane Austen,0\n"

	records, err := parseBookRecords(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []bookRecord{
		{Code: "B1", Title: "Dune", Author: "Frank Herbert", Stock: 3},
		{Code: "B2", Title: "Emma", Author: "Jane Austen", Stock: 0},
	}, records)
}

func TestParseBookRecordsRejectsBadRows(t *testing.T) {
	for name, input := range map[string]string{
		"negative stock": "B1,Dune,Frank Herbert,-1\n",
		"text stock":     "B1,Dune,Frank Herbert,many\n",
		"missing column": "B1,Dune,3\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseBookRecords(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

type recordingBooks struct {
	domain.BookService
	nextID  int64
	created []string
	stocks  map[int64]int
}

func (b *recordingBooks) Create(_ context.Context, caller domain.Caller, req domain.CreateBookRequest) (*domain.Book, error) {
	if !caller.IsAdmin() {
		return nil, domain.Forbidden("Forbidden!")
	}
	for _, code := range b.created {
		if code == req.Code {
			return nil, domain.BadRequest("Book code already exists!")
		}
	}
	b.nextID++
	b.created = append(b.created, req.Code)
	return &domain.Book{ID: b.nextID, Code: req.Code}, nil
}

func (b *recordingBooks) Update(_ context.Context, _ domain.Caller, id int64, req domain.UpdateBookRequest) (*domain.Book, error) {
	b.stocks[id] = *req.Stock
	return &domain.Book{ID: id, Stock: *req.Stock}, nil
}

func TestImportBooksSkipsFailures(t *testing.T) {
	books := &recordingBooks{stocks: map[int64]int{}}
	var out bytes.Buffer

	imported, failed := importBooks(context.Background(), books, []bookRecord{
		{Code: "B1", Title: "Dune", Author: "Frank Herbert", Stock: 3},
		{Code: "B1", Title: "Dune again", Author: "Frank Herbert", Stock: 1},
		{Code: "B2", Title: "Emma", Author: "Jane Austen", Stock: 2},
	}, &out)

	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, failed)
	assert.Equal(t, map[int64]int{1: 3, 2: 2}, books.stocks)
	assert.Contains(t, out.String(), "ERROR - Book code already exists!")
}
