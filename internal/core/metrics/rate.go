package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ============================================================================
// RateMeter - 速率计算器
// ============================================================================

const rateWindow = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶来计算最近 60 秒的平均速率。
type RateMeter struct {
	mu       sync.Mutex
	clock    clock.Clock
	buckets  [rateWindow]int64 // 60 个 1 秒桶
	lastIdx  int               // 最后写入的桶索引
	lastTime time.Time         // 当前桶的起始时间
}

// NewRateMeter 创建速率计算器
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateMeter{
		clock:    clk,
		lastTime: clk.Now(),
	}
}

// Add 添加字节数到当前桶
func (r *RateMeter) Add(bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advanceLocked()
	r.buckets[r.lastIdx] += bytes
}

// Rate 返回平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advanceLocked()
	return float64(r.sumLocked()) / rateWindow
}

// Total 返回窗口内的总量
func (r *RateMeter) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advanceLocked()
	return r.sumLocked()
}

// Reset 清空窗口
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buckets = [rateWindow]int64{}
	r.lastIdx = 0
	r.lastTime = r.clock.Now()
}

// advanceLocked 按经过的时间移动窗口，清空过期的桶
func (r *RateMeter) advanceLocked() {
	elapsed := r.clock.Since(r.lastTime)
	if elapsed < time.Second {
		return
	}

	seconds := int(elapsed / time.Second)
	if seconds >= rateWindow {
		// 超过 60 秒没有数据
		r.buckets = [rateWindow]int64{}
		r.lastIdx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.lastIdx = (r.lastIdx + 1) % rateWindow
			r.buckets[r.lastIdx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}

func (r *RateMeter) sumLocked() int64 {
	var total int64
	for _, v := range r.buckets {
		total += v
	}
	return total
}
