package domain

import (
	"errors"
	"fmt"
)

// ErrStateNotFound возвращается хранилищем, если дата публикации ещё не сохранялась.
var ErrStateNotFound = errors.New("состояние публикации не найдено")

// ConfigError: отсутствует или некорректна обязательная настройка.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ChannelResolutionError: не удалось найти канал ни в кэше, ни через API.
type ChannelResolutionError struct {
	ChannelID string
	Err       error
}

func (e *ChannelResolutionError) Error() string {
	return fmt.Sprintf("channel %s not found: %v", e.ChannelID, e.Err)
}

func (e *ChannelResolutionError) Unwrap() error { return e.Err }

// FetchError: страница меню ответила не 200 или запрос не выполнился.
// Status равен 0 для сетевых ошибок.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to fetch menu: HTTP %d", e.Status)
	}
	return fmt.Sprintf("failed to fetch menu: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError: тело страницы не раскладывается в меню.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse menu: %s: %v", e.Reason, e.Err)
	}
	return "failed to parse menu: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// SendError: сообщение не отправлено. Forbidden выставляется при нехватке прав.
type SendError struct {
	Forbidden bool
	Err       error
}

func (e *SendError) Error() string {
	if e.Forbidden {
		return fmt.Sprintf("missing permission to send message: %v", e.Err)
	}
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReactionError объединяет ошибки добавления реакций к одному сообщению.
type ReactionError struct {
	MessageID string
	Err       error
}

func (e *ReactionError) Error() string {
	return fmt.Sprintf("reactions on message %s: %v", e.MessageID, e.Err)
}

func (e *ReactionError) Unwrap() error { return e.Err }
