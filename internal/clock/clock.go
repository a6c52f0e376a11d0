// Package clock — подменяемые часы для сервисов с таймерами.
// В проде используется Real(), в тестах — Fake() с ручным сдвигом времени.
package clock

import "time"

// Clock абстрагирует time.Now и time.AfterFunc.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer — отменяемый отложенный вызов.
type Timer struct {
	stopFunc func() bool
}

// Stop отменяет вызов. Возвращает false, если таймер уже сработал или остановлен.
func (t *Timer) Stop() bool {
	if t == nil || t.stopFunc == nil {
		return false
	}
	return t.stopFunc()
}

// Real возвращает часы на основе пакета time.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
