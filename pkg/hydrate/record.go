package hydrate

import (
	"context"
	"iter"
	"strconv"

	"github.com/Sternrassler/rehydrate/pkg/artifact"
)

// User is the author of a Record.
type User struct {
	ID         string
	Name       string
	ScreenName string
}

// Record is one fetched item as returned by a Resolver.
type Record struct {
	ID            string
	Text          string
	CreatedAt     string
	Lang          string
	RetweetCount  int64
	FavoriteCount int64
	IsQuote       bool
	User          User
}

// Row projects the record onto the fixed output columns.
func (r Record) Row() artifact.Row {
	return artifact.Row{
		RetweetCount:   strconv.FormatInt(r.RetweetCount, 10),
		FavoriteCount:  strconv.FormatInt(r.FavoriteCount, 10),
		Text:           r.Text,
		ID:             r.ID,
		CreatedAt:      r.CreatedAt,
		Lang:           r.Lang,
		IsQuoteStatus:  strconv.FormatBool(r.IsQuote),
		UserID:         r.User.ID,
		UserName:       r.User.Name,
		UserScreenName: r.User.ScreenName,
	}
}

// Resolver turns IDs into records.
//
// The returned sequence is single-pass. It may yield fewer records than IDs
// (deleted or private items are dropped silently) and in any order. A non-nil
// error ends the stream for the batch.
type Resolver interface {
	Resolve(ctx context.Context, ids []string) iter.Seq2[Record, error]
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, ids []string) iter.Seq2[Record, error]

// Resolve calls f(ctx, ids).
func (f ResolverFunc) Resolve(ctx context.Context, ids []string) iter.Seq2[Record, error] {
	return f(ctx, ids)
}
