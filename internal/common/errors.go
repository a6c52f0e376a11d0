// Package common — errors.go определяет ошибки, общие для всех модулей бота.
// Обработчики различают их через errors.Is и отправляют пользователю
// понятное сообщение.
package common

import "errors"

// Ошибки репутации
var (
	// ErrInvalidLimit — некорректный лимит выборки
	ErrInvalidLimit = errors.New("лимит должен быть положительным")
	// ErrSelfThanks — попытка поблагодарить самого себя
	ErrSelfThanks = errors.New("нельзя благодарить самого себя")
)

// Ошибки эффектов
var (
	// ErrInvalidDuration — длительность эффекта не положительная
	ErrInvalidDuration = errors.New("длительность эффекта должна быть положительной")
	// ErrUnknownEffectType — тип эффекта вне перечисления
	ErrUnknownEffectType = errors.New("неизвестный тип эффекта")
	// ErrInvalidEffectMetadata — метаданные не подходят к типу эффекта
	ErrInvalidEffectMetadata = errors.New("некорректные метаданные эффекта")
	// ErrOnCooldown — действие на кулдауне
	ErrOnCooldown = errors.New("действие на перезарядке")
)

// Ошибки мониторинга каналов
var (
	// ErrUnknownChannelKind — неизвестный вид канала
	ErrUnknownChannelKind = errors.New("неизвестный вид канала (announce или quota)")
)

// Ошибки ивентов
var (
	// ErrInvalidCampaign — описание ивента не прошло валидацию
	ErrInvalidCampaign = errors.New("некорректное описание ивента")
	// ErrUnknownCampaignType — тип ивента не найден в каталоге
	ErrUnknownCampaignType = errors.New("неизвестный тип ивента")
)

// Ошибки заданий
var (
	// ErrNothingToReroll — нет открытого дневного задания для замены
	ErrNothingToReroll = errors.New("нет невыполненного дневного задания для замены")
)

// Ошибки генератора контента
var (
	// ErrGeneratorDisabled — генератор выключен в настройках
	ErrGeneratorDisabled = errors.New("генератор контента выключен")
	// ErrMalformedResponse — ответ генератора не удалось разобрать
	ErrMalformedResponse = errors.New("некорректный ответ генератора")
	// ErrTransient — временная ошибка генератора (rate limit, таймаут, 5xx)
	ErrTransient = errors.New("временная ошибка генератора")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)
