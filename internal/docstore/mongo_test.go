package docstore

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeBSON(t *testing.T) {
	when := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	in := bson.M{
		"name":     "B1",
		"count":    int32(3),
		"when":     primitive.NewDateTimeFromTime(when),
		"shifts":   bson.A{bson.M{"entry": "08:00"}},
		"snapshot": bson.D{{Key: "id", Value: "p1"}},
	}

	out := normalizeBSON(in).(map[string]any)
	assert.Equal(t, int64(3), out["count"])
	assert.True(t, when.Equal(out["when"].(time.Time)))
	assert.Equal(t, []any{map[string]any{"entry": "08:00"}}, out["shifts"])
	assert.Equal(t, map[string]any{"id": "p1"}, out["snapshot"])
}

func TestPrefixPattern(t *testing.T) {
	p := prefixPattern("users/u.1/b_[x]/")
	assert.Equal(t, `^users/u\.1/b_\[x\]/`, p.Pattern)

	re := regexp.MustCompile(p.Pattern)
	assert.True(t, re.MatchString("users/u.1/b_[x]/phases/p1"))
	assert.False(t, re.MatchString("users/uX1/b_[x]/phases/p1"))
}
