package posting

// failureTracker считает неудачные срабатывания подряд. Оповещение
// выдаётся один раз за серию, при достижении порога.
type failureTracker struct {
	threshold int
	count     int
	alerted   bool
}

// failure регистрирует неудачу и сообщает, пора ли оповестить.
func (f *failureTracker) failure() bool {
	f.count++
	if f.threshold <= 0 || f.alerted || f.count < f.threshold {
		return false
	}
	f.alerted = true
	return true
}

// success сбрасывает серию и возвращает число неудач, если по ней было оповещение.
func (f *failureTracker) success() (recovered int) {
	if f.alerted {
		recovered = f.count
	}
	f.count = 0
	f.alerted = false
	return recovered
}
