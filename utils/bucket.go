package utils

import "time"

// BucketInterval 原始指标表的采样粒度
const BucketInterval = 5 * time.Minute

// BucketMs 5 分钟桶宽（毫秒）
const BucketMs = int64(BucketInterval / time.Millisecond)

// FloorBucket 将毫秒时间戳向下对齐到 widthMs 的整数倍
func FloorBucket(tsMs, widthMs int64) int64 {
	if widthMs <= 0 {
		return tsMs
	}
	b := (tsMs / widthMs) * widthMs
	if tsMs < 0 && tsMs%widthMs != 0 {
		b -= widthMs
	}
	return b
}

// CurrentBucket 当前时间所在的 5 分钟桶
func CurrentBucket(now time.Time) int64 {
	return FloorBucket(now.UnixMilli(), BucketMs)
}

// BucketsAgo 当前桶往前 n 个桶的边界
func BucketsAgo(bucket int64, n int) int64 {
	return bucket - int64(n)*BucketMs
}

// NextBucketStart 下一个桶的起始时间
func NextBucketStart(now time.Time) time.Time {
	return time.UnixMilli(CurrentBucket(now) + BucketMs).In(now.Location())
}
