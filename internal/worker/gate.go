package worker

import "time"

// secondGate пропускает не чаще одного входа на целую секунду
// монотонных часов.
//
// База устанавливается при создании, поэтому первый вызов в ту же
// секунду не срабатывает. Гейт не потокобезопасен — воркер
// однопоточный внутри цикла.
type secondGate struct {
	start time.Time
	last  int64
	now   func() time.Time
}

// newSecondGate создаёт гейт. now nil — time.Now.
func newSecondGate(now func() time.Time) *secondGate {
	if now == nil {
		now = time.Now
	}
	return &secondGate{start: now(), now: now}
}

// TryEnter возвращает true, если с прошлого входа сменилась
// целая секунда монотонных часов.
func (g *secondGate) TryEnter() bool {
	sec := int64(g.now().Sub(g.start) / time.Second)
	if sec == g.last {
		return false
	}
	g.last = sec
	return true
}
