package docstore

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
)

func TestSortByCreateTime(t *testing.T) {
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	snaps := []*firestore.DocumentSnapshot{
		{CreateTime: base.Add(2 * time.Minute)},
		{CreateTime: base},
		{CreateTime: base.Add(time.Minute)},
	}

	sortByCreateTime(snaps)

	for i, want := range []time.Duration{0, time.Minute, 2 * time.Minute} {
		assert.True(t, base.Add(want).Equal(snaps[i].CreateTime), "posição %d", i)
	}
}

func TestFirestoreUpdatesTranslateServerTimestamp(t *testing.T) {
	updates := firestoreUpdates(map[string]any{"updatedAt": ServerTimestamp})
	assert.Len(t, updates, 1)
	assert.Equal(t, firestore.FieldPath{"updatedAt"}, updates[0].FieldPath)
	assert.Equal(t, firestore.ServerTimestamp, updates[0].Value)
}
