package posting

import (
	"math/rand"
	"sync"
	"time"
)

// PingDayPicker выбирает будний день недели, в который меню публикуется с @everyone.
type PingDayPicker interface {
	PingDay(year, week int) time.Weekday
}

// RandomWeekday выбирает случайный будний день один раз на ISO-неделю.
type RandomWeekday struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	year   int
	week   int
	day    time.Weekday
	picked bool
}

// NewRandomWeekday создаёт выбор дня с заданным seed.
func NewRandomWeekday(seed int64) *RandomWeekday {
	return &RandomWeekday{rnd: rand.New(rand.NewSource(seed))}
}

// PingDay возвращает день для недели; внутри одной недели ответ не меняется.
func (r *RandomWeekday) PingDay(year, week int) time.Weekday {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.picked || r.year != year || r.week != week {
		r.day = time.Monday + time.Weekday(r.rnd.Intn(5))
		r.year, r.week, r.picked = year, week, true
	}
	return r.day
}
