package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFloorBucket(t *testing.T) {
	assert.Equal(t, int64(0), FloorBucket(299_999, BucketMs))
	assert.Equal(t, BucketMs, FloorBucket(BucketMs, BucketMs))
	assert.Equal(t, BucketMs, FloorBucket(BucketMs+1, BucketMs))
	assert.Equal(t, -BucketMs, FloorBucket(-1, BucketMs))
	assert.Equal(t, int64(42), FloorBucket(42, 0))
}

func TestCurrentAndNextBucket(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 7, 30, 0, time.UTC)
	bucket := CurrentBucket(now)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC).UnixMilli(), bucket)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli(), BucketsAgo(bucket, 1))
	assert.Equal(t, time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC).UnixMilli(), BucketsAgo(bucket, 12))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 10, 0, 0, time.UTC), NextBucketStart(now))
}

func TestLoadLocationFallback(t *testing.T) {
	loc, err := LoadLocation("Asia/Shanghai")
	assert.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*3600, offset)
}
