package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestWrapErrorClassifiesDriverErrors(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

	cases := []struct {
		name        string
		err         error
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{name: "no documents", err: mongo.ErrNoDocuments, notFound: true},
		{name: "duplicate key", err: dup, conflict: true},
		{name: "deadline", err: context.DeadlineExceeded, unavailable: true},
		{name: "disconnected", err: mongo.ErrClientDisconnected, unavailable: true},
		{name: "other", err: errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var repoErr *Error
			require.ErrorAs(t, WrapError("orders.find", tc.err), &repoErr)
			assert.Equal(t, tc.notFound, repoErr.IsNotFound())
			assert.Equal(t, tc.conflict, repoErr.IsConflict())
			assert.Equal(t, tc.unavailable, repoErr.IsUnavailable())
		})
	}
}

func TestWrapErrorKeepsCancellation(t *testing.T) {
	assert.ErrorIs(t, WrapError("op", context.Canceled), context.Canceled)
	assert.Nil(t, WrapError("op", nil))
}
